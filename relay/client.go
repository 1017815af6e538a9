package relay

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512 * 1024

	sendBufferSize = 256
)

// Client is one websocket session attached to the hub.
type Client struct {
	id     string
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	groups map[string]bool // owned by the hub goroutine
	logger *zap.Logger
}

func newClient(hub *Hub, conn *websocket.Conn) *Client {
	id := uuid.NewString()
	return &Client{
		id:     id,
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		groups: make(map[string]bool),
		logger: hub.logger.With(zap.String("sessionID", id)),
	}
}

// ID is the transport session id peers see in presence events.
func (c *Client) ID() string { return c.id }

// readPump forwards decoded envelopes to the hub until the connection
// fails, then unregisters the session.
func (c *Client) readPump() {
	defer func() {
		c.hub.enqueue(inbound{kind: kindLeave, client: c})
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Warn("WebSocket read error", zap.Error(err))
			}
			return
		}
		if messageType != websocket.TextMessage {
			c.logger.Debug("Binary messages not supported")
			continue
		}

		var env Envelope
		if err := json.Unmarshal(message, &env); err != nil || env.Event == "" {
			c.hub.metrics.Dropped.WithLabelValues("invalid").Inc()
			c.logger.Debug("Dropping undecodable frame", zap.Error(err))
			continue
		}

		if !c.hub.enqueue(inbound{kind: kindEvent, client: c, env: env}) {
			return
		}
	}
}

// writePump drains the send queue to the socket and keeps the connection
// alive with pings. It exits when the hub closes the queue.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Debug("Failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Debug("Failed to send ping", zap.Error(err))
				return
			}
		}
	}
}
