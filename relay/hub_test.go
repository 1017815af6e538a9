package relay_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/andrewpaige1/sysviz-api/graph"
	"github.com/andrewpaige1/sysviz-api/relay"
)

type testConn struct {
	t         *testing.T
	conn      *websocket.Conn
	sessionID string
}

func startHub(t *testing.T, scope relay.DisconnectScope) (*relay.Hub, string) {
	t.Helper()
	return startHubWithConfig(t, relay.HubConfig{DisconnectScope: scope})
}

func startHubWithConfig(t *testing.T, cfg relay.HubConfig) (*relay.Hub, string) {
	t.Helper()

	hub := relay.NewHub(zap.NewNop(), cfg)
	go hub.Run()

	srv := httptest.NewServer(http.HandlerFunc(relay.NewServer(hub, relay.DefaultServerConfig(), zap.NewNop()).HandleWebSocket))
	t.Cleanup(srv.Close)
	t.Cleanup(hub.Stop)

	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *testConn {
	t.Helper()

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	tc := &testConn{t: t, conn: conn}
	env := tc.next()
	require.Equal(t, relay.EventConnected, env.Event)

	var hello relay.Connected
	require.NoError(t, json.Unmarshal(env.Data, &hello))
	require.NotEmpty(t, hello.SessionID)
	tc.sessionID = hello.SessionID
	return tc
}

func (c *testConn) emit(event string, data any) {
	c.t.Helper()
	env, err := relay.NewEnvelope(event, data)
	require.NoError(c.t, err)
	require.NoError(c.t, c.conn.WriteJSON(env))
}

func (c *testConn) next() relay.Envelope {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var env relay.Envelope
	require.NoError(c.t, c.conn.ReadJSON(&env))
	return env
}

func (c *testConn) join(hub *relay.Hub, workspaceID string, want int) {
	c.t.Helper()
	c.emit(relay.EventJoinWorkspace, workspaceID)
	require.Eventually(c.t, func() bool { return hub.GroupSize(workspaceID) >= want }, 2*time.Second, 5*time.Millisecond)
}

func TestNodeChangeFanOut(t *testing.T) {
	hub, url := startHub(t, relay.DisconnectGlobal)

	a, b, c, d := dial(t, url), dial(t, url), dial(t, url), dial(t, url)
	a.join(hub, "w1", 1)
	b.join(hub, "w1", 2)
	c.join(hub, "w1", 3)
	d.join(hub, "w2", 1)

	changes := []graph.NodeChange{
		graph.ReplaceChange(graph.Node{ID: "database-1", Data: graph.NodeData{Label: "Primary DB", Latency: 25}}),
		graph.RemoveChange[graph.Node]("cache-1"),
	}
	a.emit(relay.EventNodeChange, relay.NodeChangeRequest{WorkspaceID: "w1", Changes: changes})

	want, err := json.Marshal(changes)
	require.NoError(t, err)

	for _, peer := range []*testConn{b, c} {
		env := peer.next()
		assert.Equal(t, relay.EventNodesSync, env.Event)
		assert.JSONEq(t, string(want), string(env.Data))
	}

	// The sender and the other workspace see their own chat next, proving
	// nothing else was queued for them.
	a.emit(relay.EventSendMessage, relay.SendMessageRequest{WorkspaceID: "w1", Message: relay.ChatMessage{ID: "m1", Text: "hi"}})
	assert.Equal(t, relay.EventNewMessage, a.next().Event)

	d.emit(relay.EventSendMessage, relay.SendMessageRequest{WorkspaceID: "w2", Message: relay.ChatMessage{ID: "m2", Text: "yo"}})
	assert.Equal(t, relay.EventNewMessage, d.next().Event)
}

func TestEdgeChangeAndAddNode(t *testing.T) {
	hub, url := startHub(t, relay.DisconnectGlobal)
	a, b := dial(t, url), dial(t, url)
	a.join(hub, "w1", 1)
	b.join(hub, "w1", 2)

	edge := graph.Edge{ID: "e1", Source: "a", Target: "b"}
	a.emit(relay.EventEdgeChange, relay.EdgeChangeRequest{WorkspaceID: "w1", Changes: []graph.EdgeChange{graph.AddChange(edge)}})

	env := b.next()
	require.Equal(t, relay.EventEdgesSync, env.Event)
	var got []graph.EdgeChange
	require.NoError(t, json.Unmarshal(env.Data, &got))
	require.Len(t, got, 1)
	assert.Equal(t, edge, *got[0].Value)

	n := graph.Node{ID: "cache-x", Type: graph.CustomNodeType, Data: graph.NodeData{Label: "Redis", Type: graph.Cache}}
	a.emit(relay.EventAddNode, relay.AddNodeRequest{WorkspaceID: "w1", Node: n})

	env = b.next()
	require.Equal(t, relay.EventNodeAdded, env.Event)
	var added graph.Node
	require.NoError(t, json.Unmarshal(env.Data, &added))
	assert.Equal(t, n, added)
}

func TestCursorMoveReachesPeerWithoutPriorTraffic(t *testing.T) {
	hub, url := startHub(t, relay.DisconnectGlobal)
	a, b := dial(t, url), dial(t, url)
	a.join(hub, "w1", 1)
	b.join(hub, "w1", 2)

	b.emit(relay.EventCursorMove, relay.CursorMove{
		WorkspaceID: "w1",
		UserID:      b.sessionID,
		UserName:    "Bea",
		Position:    graph.Position{X: 10, Y: 20},
	})

	env := a.next()
	require.Equal(t, relay.EventUserCursorMove, env.Event)
	assert.NotContains(t, string(env.Data), "workspaceId")

	var cursor relay.UserCursor
	require.NoError(t, json.Unmarshal(env.Data, &cursor))
	assert.Equal(t, b.sessionID, cursor.UserID)
	assert.Equal(t, "Bea", cursor.UserName)
	assert.Equal(t, graph.Position{X: 10, Y: 20}, cursor.Position)
}

func TestChatEchoesToSender(t *testing.T) {
	hub, url := startHub(t, relay.DisconnectGlobal)
	a, b := dial(t, url), dial(t, url)
	a.join(hub, "w1", 1)
	b.join(hub, "w1", 2)

	msg := relay.ChatMessage{ID: "1", User: "Me", Text: "ship it", Timestamp: "10:00:00"}
	a.emit(relay.EventSendMessage, relay.SendMessageRequest{WorkspaceID: "w1", Message: msg})

	for _, peer := range []*testConn{a, b} {
		env := peer.next()
		require.Equal(t, relay.EventNewMessage, env.Event)
		var got relay.ChatMessage
		require.NoError(t, json.Unmarshal(env.Data, &got))
		assert.Equal(t, msg, got)
	}
}

func TestDisconnectScopes(t *testing.T) {
	tests := []struct {
		name          string
		scope         relay.DisconnectScope
		otherNotified bool
	}{
		{name: "global", scope: relay.DisconnectGlobal, otherNotified: true},
		{name: "workspace", scope: relay.DisconnectWorkspace, otherNotified: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hub, url := startHub(t, tt.scope)
			a, other, leaver := dial(t, url), dial(t, url), dial(t, url)
			a.join(hub, "w1", 1)
			other.join(hub, "w2", 1)
			leaver.join(hub, "w1", 2)

			require.NoError(t, leaver.conn.Close())
			require.Eventually(t, func() bool { return hub.GroupSize("w1") == 1 }, 2*time.Second, 5*time.Millisecond)

			env := a.next()
			require.Equal(t, relay.EventUserDisconnected, env.Event)
			var id string
			require.NoError(t, json.Unmarshal(env.Data, &id))
			assert.Equal(t, leaver.sessionID, id)

			other.emit(relay.EventSendMessage, relay.SendMessageRequest{WorkspaceID: "w2", Message: relay.ChatMessage{ID: "x"}})
			env = other.next()
			if tt.otherNotified {
				assert.Equal(t, relay.EventUserDisconnected, env.Event)
			} else {
				assert.Equal(t, relay.EventNewMessage, env.Event)
			}
		})
	}
}

func TestMalformedFramesAreIgnored(t *testing.T) {
	hub, url := startHub(t, relay.DisconnectGlobal)
	a := dial(t, url)
	a.join(hub, "w1", 1)

	require.NoError(t, a.conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	require.NoError(t, a.conn.WriteJSON(relay.Envelope{Event: relay.EventNodeChange, Data: json.RawMessage(`"oops"`)}))
	require.NoError(t, a.conn.WriteJSON(relay.Envelope{Event: "mystery", Data: json.RawMessage(`{}`)}))

	a.emit(relay.EventSendMessage, relay.SendMessageRequest{WorkspaceID: "w1", Message: relay.ChatMessage{ID: "ok"}})
	assert.Equal(t, relay.EventNewMessage, a.next().Event)
	assert.Equal(t, 1, hub.SessionCount())
}

func TestSessionsLeaveAllGroupsOnDisconnect(t *testing.T) {
	hub, url := startHub(t, relay.DisconnectGlobal)
	a := dial(t, url)
	a.join(hub, "w1", 1)
	a.join(hub, "w2", 1)

	require.NoError(t, a.conn.Close())
	require.Eventually(t, func() bool {
		return hub.GroupSize("w1") == 0 && hub.GroupSize("w2") == 0 && hub.SessionCount() == 0
	}, 2*time.Second, 5*time.Millisecond)
}

func TestUnknownEventsShareOneMetricLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	hub, url := startHubWithConfig(t, relay.HubConfig{DisconnectScope: relay.DisconnectGlobal, Registerer: reg})
	a := dial(t, url)
	a.join(hub, "w1", 1)

	for i := 0; i < 200; i++ {
		require.NoError(t, a.conn.WriteJSON(relay.Envelope{Event: fmt.Sprintf("junk-%d", i), Data: json.RawMessage(`{}`)}))
	}
	// Inbound events are handled in order, so the echo arrives after
	// every junk frame has been counted.
	a.emit(relay.EventSendMessage, relay.SendMessageRequest{WorkspaceID: "w1", Message: relay.ChatMessage{ID: "sync"}})
	require.Equal(t, relay.EventNewMessage, a.next().Event)

	families, err := reg.Gather()
	require.NoError(t, err)

	series := 0
	labels := map[string]bool{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			series++
			for _, lp := range m.GetLabel() {
				labels[lp.GetValue()] = true
				assert.NotContains(t, lp.GetValue(), "junk")
			}
		}
	}
	assert.True(t, labels["unknown"])
	assert.LessOrEqual(t, series, 12)
}

func TestSlowSessionIsEvicted(t *testing.T) {
	hub, url := startHub(t, relay.DisconnectGlobal)
	flooder, stuck, watcher := dial(t, url), dial(t, url), dial(t, url)
	flooder.join(hub, "w1", 1)
	stuck.join(hub, "w1", 2)
	watcher.join(hub, "w2", 1)

	big := graph.ReplaceChange(graph.Node{ID: "note-1", Data: graph.NodeData{Label: strings.Repeat("x", 64<<10)}})
	req := relay.NodeChangeRequest{WorkspaceID: "w1", Changes: []graph.NodeChange{big}}

	// stuck never reads, so its socket and then its send queue fill up.
	evicted := false
	for i := 0; i < 4000 && !evicted; i++ {
		flooder.emit(relay.EventNodeChange, req)
		evicted = hub.GroupSize("w1") == 1
	}
	require.True(t, evicted, "stuck session was never evicted")
	assert.Equal(t, 1, hub.GroupSize("w1"))
	require.Eventually(t, func() bool { return hub.SessionCount() == 2 }, 2*time.Second, 5*time.Millisecond)

	env := watcher.next()
	require.Equal(t, relay.EventUserDisconnected, env.Event)
	var id string
	require.NoError(t, json.Unmarshal(env.Data, &id))
	assert.Equal(t, stuck.sessionID, id)

	// The hub keeps serving the remaining sessions.
	watcher.emit(relay.EventSendMessage, relay.SendMessageRequest{WorkspaceID: "w2", Message: relay.ChatMessage{ID: "after"}})
	assert.Equal(t, relay.EventNewMessage, watcher.next().Event)
}

func TestStoppedHubRejectsNewSessions(t *testing.T) {
	hub, url := startHub(t, relay.DisconnectGlobal)
	hub.Stop()

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	require.Error(t, err)

	var netErr net.Error
	assert.False(t, errors.As(err, &netErr) && netErr.Timeout(), "connection should be closed, not left idle")
	assert.Equal(t, 0, hub.SessionCount())
}
