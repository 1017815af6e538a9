package collab

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/andrewpaige1/sysviz-api/graph"
	"github.com/andrewpaige1/sysviz-api/models"
	"github.com/andrewpaige1/sysviz-api/persistence"
	"github.com/andrewpaige1/sysviz-api/presence"
	"github.com/andrewpaige1/sysviz-api/relay"
)

const (
	DefaultDesignName = "Untitled System"

	writeWait      = 10 * time.Second
	handshakeWait  = 10 * time.Second
	sendBufferSize = 256
)

var (
	ErrUnsavedDesign = errors.New("collab: design has not been saved yet")
	ErrClosed        = errors.New("collab: session closed")
)

type Config struct {
	// URL of the relay websocket endpoint, e.g. ws://localhost:8080/ws.
	URL string
	// WorkspaceID is the relay group to join. "new" and "default" mean the
	// design has not been stored yet; any other value is a design id.
	WorkspaceID   string
	UserName      string
	DesignName    string
	TeamID        *uint
	AutosaveDelay time.Duration
	Dialer        *websocket.Dialer
}

// Session is one editor's live connection to a workspace. It owns the
// local graph replica and presence set, mirrors local edits to the relay,
// applies remote events as they arrive and keeps storage up to date.
type Session struct {
	cfg       Config
	conn      *websocket.Conn
	sessionID string

	store    *graph.Store
	presence *presence.Tracker
	gateway  persistence.Gateway
	autosave *persistence.Autosaver
	status   *persistence.StatusTracker
	logger   *zap.Logger

	mu         sync.Mutex
	designID   string
	designName string
	teamID     *uint
	isPublic   bool
	publicID   string
	messages   []relay.ChatMessage
	closed     bool

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// Dial connects to the relay, waits for the session id and joins the
// configured workspace.
func Dial(ctx context.Context, cfg Config, gateway persistence.Gateway, logger *zap.Logger) (*Session, error) {
	if cfg.WorkspaceID == "" {
		cfg.WorkspaceID = models.WorkspaceNew
	}
	if cfg.DesignName == "" {
		cfg.DesignName = DefaultDesignName
	}
	dialer := cfg.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	conn, _, err := dialer.DialContext(ctx, cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("collab: dial relay: %w", err)
	}

	sessionID, err := handshake(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}

	s := &Session{
		cfg:        cfg,
		conn:       conn,
		sessionID:  sessionID,
		presence:   presence.NewTracker(),
		gateway:    gateway,
		status:     persistence.NewStatusTracker(),
		logger:     logger.With(zap.String("sessionID", sessionID), zap.String("workspaceID", cfg.WorkspaceID)),
		designName: cfg.DesignName,
		teamID:     cfg.TeamID,
		send:       make(chan []byte, sendBufferSize),
		done:       make(chan struct{}),
	}
	if !models.IsUnsavedWorkspace(cfg.WorkspaceID) {
		s.designID = cfg.WorkspaceID
	}

	s.store = graph.NewStore(graph.WithOutbound(s))
	s.autosave = persistence.NewAutosaver(cfg.AutosaveDelay, func(ctx context.Context) error {
		return s.Save(ctx, true)
	}, s.hasDesign, s.logger)
	s.store.OnChange(func() {
		s.status.MarkDirty()
		s.autosave.Touch()
	})

	s.wg.Add(2)
	go s.writeLoop()
	go s.readLoop()

	s.emit(relay.EventJoinWorkspace, cfg.WorkspaceID)
	s.logger.Info("Joined workspace")
	return s, nil
}

func handshake(conn *websocket.Conn) (string, error) {
	conn.SetReadDeadline(time.Now().Add(handshakeWait))
	defer conn.SetReadDeadline(time.Time{})

	var env relay.Envelope
	if err := conn.ReadJSON(&env); err != nil {
		return "", fmt.Errorf("collab: read handshake: %w", err)
	}
	if env.Event != relay.EventConnected {
		return "", fmt.Errorf("collab: unexpected first event %q", env.Event)
	}
	var hello relay.Connected
	if err := json.Unmarshal(env.Data, &hello); err != nil || hello.SessionID == "" {
		return "", fmt.Errorf("collab: invalid handshake payload")
	}
	return hello.SessionID, nil
}

// SessionID is the transport id other sessions see in presence events.
func (s *Session) SessionID() string { return s.sessionID }

func (s *Session) Store() *graph.Store { return s.store }

func (s *Session) Presence() *presence.Tracker { return s.presence }

func (s *Session) Status() persistence.Status { return s.status.Status() }

// DesignID is the stored design id, empty until the first save.
func (s *Session) DesignID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.designID
}

// Sharing reports whether the design is public and its share id.
func (s *Session) Sharing() (bool, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isPublic, s.publicID
}

// SetDesignName renames the design. A rename is autosaved like any other
// edit.
func (s *Session) SetDesignName(name string) {
	s.mu.Lock()
	changed := s.designName != name
	s.designName = name
	s.mu.Unlock()

	if changed {
		s.status.MarkDirty()
		s.autosave.Touch()
	}
}

func (s *Session) SetTeamID(id *uint) {
	s.mu.Lock()
	s.teamID = id
	s.mu.Unlock()
}

// Messages returns the chat log in arrival order.
func (s *Session) Messages() []relay.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]relay.ChatMessage, len(s.messages))
	copy(out, s.messages)
	return out
}

// ToggleSimulation flips edge animation for this session only.
func (s *Session) ToggleSimulation() bool {
	on := !s.store.Simulating()
	s.store.SetSimulating(on)
	return on
}

// UpdateCursor publishes the local pointer position. Calls are not
// throttled.
func (s *Session) UpdateCursor(pos graph.Position) {
	s.emit(relay.EventCursorMove, relay.CursorMove{
		WorkspaceID: s.cfg.WorkspaceID,
		UserID:      s.sessionID,
		UserName:    s.cfg.UserName,
		Position:    pos,
	})
}

// SendMessage posts to the workspace chat. The message is not added to
// the local log here; the relay echoes it back like any other.
func (s *Session) SendMessage(text string) relay.ChatMessage {
	msg := relay.ChatMessage{
		ID:        ulid.Make().String(),
		User:      s.cfg.UserName,
		Text:      text,
		Timestamp: time.Now().Format("15:04:05"),
	}
	s.emit(relay.EventSendMessage, relay.SendMessageRequest{
		WorkspaceID: s.cfg.WorkspaceID,
		Message:     msg,
	})
	return msg
}

// NodesChanged, EdgesChanged and NodeAdded mirror local store mutations
// to the relay.

func (s *Session) NodesChanged(changes []graph.NodeChange) {
	s.emit(relay.EventNodeChange, relay.NodeChangeRequest{WorkspaceID: s.cfg.WorkspaceID, Changes: changes})
}

func (s *Session) EdgesChanged(changes []graph.EdgeChange) {
	s.emit(relay.EventEdgeChange, relay.EdgeChangeRequest{WorkspaceID: s.cfg.WorkspaceID, Changes: changes})
}

func (s *Session) NodeAdded(node graph.Node) {
	s.emit(relay.EventAddNode, relay.AddNodeRequest{WorkspaceID: s.cfg.WorkspaceID, Node: node})
}

// emit queues an event without blocking. Events that do not fit in the
// queue are dropped.
func (s *Session) emit(event string, data any) {
	env, err := relay.NewEnvelope(event, data)
	if err != nil {
		s.logger.Error("Failed to encode event", zap.String("event", event), zap.Error(err))
		return
	}
	raw, err := json.Marshal(env)
	if err != nil {
		s.logger.Error("Failed to encode envelope", zap.String("event", event), zap.Error(err))
		return
	}

	select {
	case <-s.done:
	case s.send <- raw:
	default:
		s.logger.Warn("Dropping outbound event, send queue full", zap.String("event", event))
	}
}

func (s *Session) writeLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.done:
			return
		case msg := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				s.logger.Debug("Relay write failed", zap.Error(err))
				s.shutdown()
				return
			}
		}
	}
}

// readLoop applies relay events one at a time in arrival order.
func (s *Session) readLoop() {
	defer s.wg.Done()
	defer s.shutdown()

	for {
		var env relay.Envelope
		if err := s.conn.ReadJSON(&env); err != nil {
			select {
			case <-s.done:
			default:
				s.logger.Info("Relay connection lost", zap.Error(err))
			}
			return
		}
		if err := s.dispatch(env); err != nil {
			s.logger.Debug("Ignoring malformed relay event", zap.String("event", env.Event), zap.Error(err))
		}
	}
}

func (s *Session) dispatch(env relay.Envelope) error {
	switch env.Event {
	case relay.EventNodesSync:
		var changes []graph.NodeChange
		if err := json.Unmarshal(env.Data, &changes); err != nil {
			return err
		}
		s.store.ApplyRemoteNodeChanges(changes)

	case relay.EventEdgesSync:
		var changes []graph.EdgeChange
		if err := json.Unmarshal(env.Data, &changes); err != nil {
			return err
		}
		s.store.ApplyRemoteEdgeChanges(changes)

	case relay.EventNodeAdded:
		var node graph.Node
		if err := json.Unmarshal(env.Data, &node); err != nil {
			return err
		}
		s.store.ApplyRemoteNodeAdded(node)

	case relay.EventUserCursorMove:
		var cursor relay.UserCursor
		if err := json.Unmarshal(env.Data, &cursor); err != nil {
			return err
		}
		if cursor.UserID != s.sessionID {
			s.presence.Upsert(cursor.UserID, cursor.UserName, cursor.Position)
		}

	case relay.EventUserDisconnected:
		var id string
		if err := json.Unmarshal(env.Data, &id); err != nil {
			return err
		}
		s.presence.Remove(id)

	case relay.EventNewMessage:
		var msg relay.ChatMessage
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			return err
		}
		s.mu.Lock()
		s.messages = append(s.messages, msg)
		s.mu.Unlock()

	case relay.EventConnected:
		// only expected during the handshake

	default:
		return fmt.Errorf("unknown event %q", env.Event)
	}
	return nil
}

// Done is closed once the session has shut down.
func (s *Session) Done() <-chan struct{} { return s.done }

// Close leaves the workspace. A pending autosave is discarded, and later
// Save, Load and ToggleSharing calls return ErrClosed.
func (s *Session) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.autosave.Stop()
	s.shutdown()
	s.wg.Wait()
	return nil
}

func (s *Session) shutdown() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		s.conn.Close()
		s.presence.Clear()
	})
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) hasDesign() bool {
	return s.DesignID() != ""
}
