package relay

import (
	"encoding/json"
	"fmt"

	"github.com/andrewpaige1/sysviz-api/graph"
)

// Event names on the wire.
const (
	EventConnected        = "connected"
	EventJoinWorkspace    = "join-workspace"
	EventCursorMove       = "cursor-move"
	EventUserCursorMove   = "user-cursor-move"
	EventNodeChange       = "node-change"
	EventNodesSync        = "nodes-sync"
	EventEdgeChange       = "edge-change"
	EventEdgesSync        = "edges-sync"
	EventAddNode          = "add-node"
	EventNodeAdded        = "node-added"
	EventSendMessage      = "send-message"
	EventNewMessage       = "new-message"
	EventUserDisconnected = "user-disconnected"
)

// Envelope frames every websocket text message in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope marshals data into an envelope for event.
func NewEnvelope(event string, data any) (Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", event, err)
	}
	return Envelope{Event: event, Data: raw}, nil
}

// Connected is sent once to a new session with its transport id.
type Connected struct {
	SessionID string `json:"sessionId"`
}

type CursorMove struct {
	WorkspaceID string         `json:"workspaceId"`
	UserID      string         `json:"userId"`
	UserName    string         `json:"userName"`
	Position    graph.Position `json:"position"`
}

// UserCursor is CursorMove as rebroadcast, without the workspace id.
type UserCursor struct {
	UserID   string         `json:"userId"`
	UserName string         `json:"userName"`
	Position graph.Position `json:"position"`
}

type NodeChangeRequest struct {
	WorkspaceID string             `json:"workspaceId"`
	Changes     []graph.NodeChange `json:"changes"`
}

type EdgeChangeRequest struct {
	WorkspaceID string             `json:"workspaceId"`
	Changes     []graph.EdgeChange `json:"changes"`
}

type AddNodeRequest struct {
	WorkspaceID string     `json:"workspaceId"`
	Node        graph.Node `json:"node"`
}

type ChatMessage struct {
	ID        string `json:"id"`
	User      string `json:"user"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

type SendMessageRequest struct {
	WorkspaceID string      `json:"workspaceId"`
	Message     ChatMessage `json:"message"`
}

// routed is how the hub reads client payloads: only the group is
// interpreted, everything else is forwarded byte for byte.
type routed struct {
	WorkspaceID string          `json:"workspaceId"`
	Changes     json.RawMessage `json:"changes"`
	Node        json.RawMessage `json:"node"`
	Message     json.RawMessage `json:"message"`
}
