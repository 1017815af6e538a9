package relay

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// DisconnectScope decides who hears about a session leaving.
type DisconnectScope string

const (
	// DisconnectGlobal notifies every connected session, matching the
	// behavior existing clients were built against.
	DisconnectGlobal DisconnectScope = "global"
	// DisconnectWorkspace notifies only the groups the session had joined.
	DisconnectWorkspace DisconnectScope = "workspace"
)

type HubConfig struct {
	DisconnectScope DisconnectScope
	Registerer      prometheus.Registerer
}

type inboundKind int

const (
	kindRegister inboundKind = iota
	kindEvent
	kindLeave
)

// inbound carries registration, client events and departures through one
// FIFO queue so a session's lifecycle is seen in the order it happened.
type inbound struct {
	kind   inboundKind
	client *Client
	env    Envelope
}

// Hub is the workspace-scoped broker. Group membership is owned by the
// hub and only mutated from Run, so every inbound event is handled to
// completion before the next one. Delivery is best effort: a recipient
// whose buffer is full is disconnected and the event is lost.
type Hub struct {
	groups   map[string]map[*Client]bool // workspaceID -> members
	sessions map[*Client]bool
	mu       sync.RWMutex

	inbound chan inbound
	// stopMu orders enqueue against shutdown: once stopped is set no
	// further message can land in inbound.
	stopMu  sync.RWMutex
	stopped bool

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	scope   DisconnectScope
	logger  *zap.Logger
	metrics *Metrics
}

func NewHub(logger *zap.Logger, cfg HubConfig) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	if cfg.DisconnectScope == "" {
		cfg.DisconnectScope = DisconnectGlobal
	}

	return &Hub{
		groups:   make(map[string]map[*Client]bool),
		sessions: make(map[*Client]bool),
		inbound:  make(chan inbound, 1000),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
		scope:    cfg.DisconnectScope,
		logger:   logger,
		metrics:  NewMetrics(cfg.Registerer),
	}
}

// Run is the hub event loop. It returns after Stop.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.logger.Info("Relay hub shutting down")
			h.stopMu.Lock()
			h.stopped = true
			h.stopMu.Unlock()
			h.drainInbound()
			h.closeAll()
			return

		case msg := <-h.inbound:
			switch msg.kind {
			case kindRegister:
				h.addClient(msg.client)
			case kindLeave:
				h.removeClient(msg.client)
			default:
				h.handle(msg.client, msg.env)
			}
		}
	}
}

// enqueue hands msg to the event loop unless the hub has stopped.
func (h *Hub) enqueue(msg inbound) bool {
	h.stopMu.RLock()
	defer h.stopMu.RUnlock()
	if h.stopped || h.ctx.Err() != nil {
		return false
	}
	select {
	case h.inbound <- msg:
		return true
	case <-h.ctx.Done():
		return false
	}
}

// Stop ends Run and closes every session.
func (h *Hub) Stop() {
	h.cancel()
	<-h.done
}

// GroupSize reports how many sessions have joined workspaceID.
func (h *Hub) GroupSize(workspaceID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[workspaceID])
}

// SessionCount reports the number of open sessions.
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

func (h *Hub) addClient(c *Client) {
	h.mu.Lock()
	h.sessions[c] = true
	h.mu.Unlock()
	h.metrics.ActiveConnections.Inc()

	h.sendTo(c, EventConnected, Connected{SessionID: c.id})

	h.logger.Info("Session connected", zap.String("sessionID", c.id))
}

func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	if !h.sessions[c] {
		h.mu.Unlock()
		return
	}
	delete(h.sessions, c)
	joined := make([]string, 0, len(c.groups))
	for ws := range c.groups {
		joined = append(joined, ws)
		if members := h.groups[ws]; members != nil {
			delete(members, c)
			if len(members) == 0 {
				delete(h.groups, ws)
				h.metrics.ActiveGroups.Dec()
			}
		}
	}
	close(c.send)
	h.mu.Unlock()
	h.metrics.ActiveConnections.Dec()

	h.logger.Info("Session disconnected",
		zap.String("sessionID", c.id),
		zap.Strings("workspaces", joined),
	)

	h.notifyDisconnect(c.id, joined)
}

func (h *Hub) notifyDisconnect(sessionID string, joined []string) {
	data, err := h.marshal(EventUserDisconnected, sessionID)
	if err != nil {
		return
	}

	h.mu.RLock()
	recipients := make([]*Client, 0, len(h.sessions))
	if h.scope == DisconnectWorkspace {
		seen := make(map[*Client]bool)
		for _, ws := range joined {
			for member := range h.groups[ws] {
				if !seen[member] {
					seen[member] = true
					recipients = append(recipients, member)
				}
			}
		}
	} else {
		for member := range h.sessions {
			recipients = append(recipients, member)
		}
	}
	h.mu.RUnlock()

	h.deliver(EventUserDisconnected, data, recipients)
}

func (h *Hub) join(c *Client, workspaceID string) {
	if workspaceID == "" {
		h.metrics.Dropped.WithLabelValues(EventJoinWorkspace).Inc()
		return
	}

	h.mu.Lock()
	if !h.sessions[c] {
		h.mu.Unlock()
		return
	}
	members := h.groups[workspaceID]
	if members == nil {
		members = make(map[*Client]bool)
		h.groups[workspaceID] = members
		h.metrics.ActiveGroups.Inc()
	}
	members[c] = true
	c.groups[workspaceID] = true
	size := len(members)
	h.mu.Unlock()

	h.logger.Info("Session joined workspace",
		zap.String("sessionID", c.id),
		zap.String("workspaceID", workspaceID),
		zap.Int("groupSize", size),
	)
}

// handle routes one client event. Payloads are not validated beyond
// finding the target group; change lists and nodes pass through as sent.
func (h *Hub) handle(c *Client, env Envelope) {
	h.metrics.Received.WithLabelValues(eventLabel(env.Event)).Inc()

	if env.Event == EventJoinWorkspace {
		var workspaceID string
		if err := json.Unmarshal(env.Data, &workspaceID); err != nil {
			h.drop(c, env.Event, err)
			return
		}
		h.join(c, workspaceID)
		return
	}

	if env.Event == EventCursorMove {
		var move CursorMove
		if err := json.Unmarshal(env.Data, &move); err != nil {
			h.drop(c, env.Event, err)
			return
		}
		h.toGroup(move.WorkspaceID, EventUserCursorMove, UserCursor{
			UserID:   move.UserID,
			UserName: move.UserName,
			Position: move.Position,
		}, c)
		return
	}

	var payload routed
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		h.drop(c, env.Event, err)
		return
	}

	switch env.Event {
	case EventNodeChange:
		h.toGroup(payload.WorkspaceID, EventNodesSync, payload.Changes, c)
	case EventEdgeChange:
		h.toGroup(payload.WorkspaceID, EventEdgesSync, payload.Changes, c)
	case EventAddNode:
		h.toGroup(payload.WorkspaceID, EventNodeAdded, payload.Node, c)
	case EventSendMessage:
		// Chat echoes back to the sender as well.
		h.toGroup(payload.WorkspaceID, EventNewMessage, payload.Message, nil)
	default:
		h.logger.Debug("Ignoring unknown event",
			zap.String("sessionID", c.id),
			zap.String("event", env.Event),
		)
	}
}

// toGroup fans data out to every member of workspaceID except skip. The
// sender does not have to be a member itself.
func (h *Hub) toGroup(workspaceID, event string, data any, skip *Client) {
	if raw, ok := data.(json.RawMessage); ok && len(raw) == 0 {
		data = json.RawMessage("null")
	}
	payload, err := h.marshal(event, data)
	if err != nil {
		return
	}

	h.mu.RLock()
	recipients := make([]*Client, 0, len(h.groups[workspaceID]))
	for member := range h.groups[workspaceID] {
		if member != skip {
			recipients = append(recipients, member)
		}
	}
	h.mu.RUnlock()

	h.deliver(event, payload, recipients)
}

func (h *Hub) sendTo(c *Client, event string, data any) {
	payload, err := h.marshal(event, data)
	if err != nil {
		return
	}
	h.deliver(event, payload, []*Client{c})
}

// deliver queues payload on each recipient without blocking. Recipients
// with a full buffer are evicted after the fan-out completes.
func (h *Hub) deliver(event string, payload []byte, recipients []*Client) {
	var slow []*Client
	for _, c := range recipients {
		select {
		case c.send <- payload:
			h.metrics.Delivered.WithLabelValues(event).Inc()
		default:
			h.metrics.Dropped.WithLabelValues(event).Inc()
			slow = append(slow, c)
		}
	}

	for _, c := range slow {
		h.logger.Warn("Closing slow session",
			zap.String("sessionID", c.id),
			zap.String("event", event),
		)
		h.removeClient(c)
	}
}

func (h *Hub) marshal(event string, data any) ([]byte, error) {
	env, err := NewEnvelope(event, data)
	if err == nil {
		var raw []byte
		raw, err = json.Marshal(env)
		if err == nil {
			return raw, nil
		}
	}
	h.logger.Error("Failed to marshal relay event", zap.String("event", event), zap.Error(err))
	return nil, err
}

func (h *Hub) drop(c *Client, event string, err error) {
	h.metrics.Dropped.WithLabelValues(eventLabel(event)).Inc()
	h.logger.Debug("Dropping malformed event",
		zap.String("sessionID", c.id),
		zap.String("event", event),
		zap.Error(err),
	)
}

// drainInbound discards messages queued before shutdown. Sessions that
// were upgraded but never registered get their send queue closed so their
// pumps exit.
func (h *Hub) drainInbound() {
	for {
		select {
		case msg := <-h.inbound:
			if msg.kind == kindRegister {
				close(msg.client.send)
			}
		default:
			return
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.sessions {
		close(c.send)
		delete(h.sessions, c)
		h.metrics.ActiveConnections.Dec()
	}
	h.groups = make(map[string]map[*Client]bool)
	h.metrics.ActiveGroups.Set(0)

	h.logger.Info("All relay sessions closed")
}
