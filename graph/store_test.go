package graph_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrewpaige1/sysviz-api/graph"
)

type recorder struct {
	mu    sync.Mutex
	nodes [][]graph.NodeChange
	edges [][]graph.EdgeChange
	added []graph.Node
}

func (r *recorder) NodesChanged(c []graph.NodeChange) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nodes = append(r.nodes, c)
}

func (r *recorder) EdgesChanged(c []graph.EdgeChange) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.edges = append(r.edges, c)
}

func (r *recorder) NodeAdded(n graph.Node) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.added = append(r.added, n)
}

func sequentialIDs() graph.IDFunc {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%d", n)
	}
}

func addEntity(t *testing.T, store *graph.Store, typ graph.NodeType, pos graph.Position, label string) graph.Node {
	t.Helper()
	node, err := store.AddEntity(typ, pos, label)
	require.NoError(t, err)
	return node
}

func TestAddEntity(t *testing.T) {
	rec := &recorder{}
	store := graph.NewStore(graph.WithOutbound(rec), graph.WithIDFunc(sequentialIDs()))

	node := addEntity(t, store, graph.Database, graph.Position{X: 250, Y: 500}, "Primary DB")

	assert.Equal(t, "database-1", node.ID)
	assert.Equal(t, graph.CustomNodeType, node.Type)
	assert.Equal(t, graph.Position{X: 250, Y: 500}, node.Position)
	assert.Equal(t, "Primary DB", node.Data.Label)
	assert.Equal(t, float64(graph.DefaultLatency), node.Data.Latency)
	assert.Equal(t, float64(graph.DefaultThroughput), node.Data.Throughput)

	require.Len(t, rec.added, 1)
	assert.Equal(t, node, rec.added[0])
	assert.Equal(t, []string{"Added Primary DB node"}, store.Activity())
}

func TestAddEntityDefaultLabel(t *testing.T) {
	store := graph.NewStore()
	node := addEntity(t, store, graph.LoadBalancer, graph.Position{}, "")
	assert.Equal(t, "Load Balancer", node.Data.Label)
}

func TestAddEntityIDsAreUnique(t *testing.T) {
	store := graph.NewStore()
	seen := map[string]bool{}
	for i := 0; i < 500; i++ {
		n := addEntity(t, store, graph.Cache, graph.Position{}, "")
		require.False(t, seen[n.ID], "duplicate id %s", n.ID)
		seen[n.ID] = true
	}
	assert.Len(t, store.Snapshot().Nodes, 500)
}

func TestConnectAllowsSelfLoopsAndDuplicates(t *testing.T) {
	rec := &recorder{}
	store := graph.NewStore(graph.WithOutbound(rec))
	a := addEntity(t, store, graph.Client, graph.Position{}, "")
	b := addEntity(t, store, graph.WebServer, graph.Position{}, "")

	store.Connect(a.ID, b.ID)
	store.Connect(a.ID, b.ID)
	store.Connect(a.ID, a.ID)
	store.Connect(a.ID, "missing")

	doc := store.Snapshot()
	require.Len(t, doc.Edges, 4)
	assert.Len(t, doc.DanglingEdges(), 1)
	require.Len(t, rec.edges, 4)
	assert.Equal(t, graph.OpAdd, rec.edges[0][0].Op)
}

func TestApplyLocalChangesCount(t *testing.T) {
	store := graph.NewStore()
	var ids []string
	for i := 0; i < 10; i++ {
		ids = append(ids, addEntity(t, store, graph.Note, graph.Position{X: float64(i)}, "").ID)
	}

	removes := []graph.NodeChange{
		graph.RemoveChange[graph.Node](ids[0]),
		graph.RemoveChange[graph.Node](ids[3]),
		graph.RemoveChange[graph.Node](ids[3]),
		graph.RemoveChange[graph.Node]("unknown"),
	}
	doc := store.ApplyLocalNodeChanges(removes)
	assert.Len(t, doc.Nodes, 8)

	extra := graph.Node{ID: "x", Data: graph.NodeData{Label: "X"}}
	doc = store.ApplyLocalNodeChanges([]graph.NodeChange{graph.AddChange(extra)})
	assert.Len(t, doc.Nodes, 9)
}

func TestMoveAndUpdateNodeEmitReplace(t *testing.T) {
	rec := &recorder{}
	store := graph.NewStore(graph.WithOutbound(rec))
	n := addEntity(t, store, graph.Database, graph.Position{}, "DB")

	require.True(t, store.MoveNode(n.ID, graph.Position{X: 5, Y: 6}))
	require.True(t, store.UpdateNodeData(n.ID, func(d *graph.NodeData) { d.Latency = 42 }))
	assert.False(t, store.MoveNode("nope", graph.Position{}))

	got, ok := store.Snapshot().NodeByID(n.ID)
	require.True(t, ok)
	assert.Equal(t, graph.Position{X: 5, Y: 6}, got.Position)
	assert.Equal(t, float64(42), got.Data.Latency)

	require.Len(t, rec.nodes, 2)
	assert.Equal(t, graph.OpReplace, rec.nodes[1][0].Op)
	assert.Equal(t, float64(42), rec.nodes[1][0].Value.Data.Latency)
}

func TestRemoveNodeLeavesEdges(t *testing.T) {
	store := graph.NewStore()
	a := addEntity(t, store, graph.Client, graph.Position{}, "")
	b := addEntity(t, store, graph.CDN, graph.Position{}, "")
	store.Connect(a.ID, b.ID)

	require.True(t, store.RemoveNode(b.ID))
	doc := store.Snapshot()
	assert.Len(t, doc.Nodes, 1)
	assert.Len(t, doc.Edges, 1)
	assert.Len(t, doc.DanglingEdges(), 1)
}

func TestActivityFeedCap(t *testing.T) {
	store := graph.NewStore(graph.WithIDFunc(sequentialIDs()))
	for i := 0; i < 75; i++ {
		addEntity(t, store, graph.Note, graph.Position{}, fmt.Sprintf("n%d", i))
	}

	feed := store.Activity()
	require.Len(t, feed, graph.MaxActivityEntries)
	assert.Equal(t, "Added n74 node", feed[0])
	assert.Equal(t, "Added n25 node", feed[len(feed)-1])
}

func TestSetSimulatingAnimatesEdges(t *testing.T) {
	store := graph.NewStore()
	a := addEntity(t, store, graph.Client, graph.Position{}, "")
	store.Connect(a.ID, a.ID)

	store.SetSimulating(true)
	for _, e := range store.Snapshot().Edges {
		assert.True(t, e.Animated)
	}
	e := store.Connect(a.ID, a.ID)
	assert.True(t, e.Animated)

	store.SetSimulating(false)
	for _, e := range store.Snapshot().Edges {
		assert.False(t, e.Animated)
	}
}

func TestOnChangeFiresForLocalAndRemote(t *testing.T) {
	store := graph.NewStore()
	calls := 0
	store.OnChange(func() { calls++ })

	n := addEntity(t, store, graph.Cache, graph.Position{}, "")
	store.ApplyRemoteNodeChanges([]graph.NodeChange{graph.RemoveChange[graph.Node](n.ID)})
	store.Load(graph.Document{})

	assert.Equal(t, 2, calls)
}

func TestSnapshotIsIsolated(t *testing.T) {
	store := graph.NewStore()
	n := addEntity(t, store, graph.Cache, graph.Position{}, "")
	store.Connect(n.ID, n.ID)

	doc := store.Snapshot()
	doc.Nodes[0].Data.Label = "mutated"
	doc.Edges[0].Style = map[string]string{"stroke": "red"}

	fresh := store.Snapshot()
	assert.NotEqual(t, "mutated", fresh.Nodes[0].Data.Label)
	assert.Nil(t, fresh.Edges[0].Style)
}

func TestResetClearsGraphAndFeed(t *testing.T) {
	store := graph.NewStore()
	addEntity(t, store, graph.Cache, graph.Position{}, "")
	store.Reset()

	doc := store.Snapshot()
	assert.Empty(t, doc.Nodes)
	assert.NotNil(t, doc.Nodes)
	assert.Empty(t, store.Activity())
}

func TestAddEntityRejectsUnknownType(t *testing.T) {
	rec := &recorder{}
	store := graph.NewStore(graph.WithOutbound(rec))
	calls := 0
	store.OnChange(func() { calls++ })

	_, err := store.AddEntity(graph.NodeType("mainframe"), graph.Position{}, "Big Iron")
	require.ErrorIs(t, err, graph.ErrUnknownNodeType)

	assert.Empty(t, store.Snapshot().Nodes)
	assert.Empty(t, rec.added)
	assert.Empty(t, store.Activity())
	assert.Zero(t, calls)
}

func TestRemoveEdge(t *testing.T) {
	rec := &recorder{}
	store := graph.NewStore(graph.WithOutbound(rec))
	a := addEntity(t, store, graph.Client, graph.Position{}, "")
	b := addEntity(t, store, graph.WebServer, graph.Position{}, "")
	keep := store.Connect(a.ID, b.ID)
	drop := store.Connect(b.ID, a.ID)

	store.RemoveEdge(drop.ID)

	doc := store.Snapshot()
	require.Len(t, doc.Edges, 1)
	assert.Equal(t, keep.ID, doc.Edges[0].ID)

	require.Len(t, rec.edges, 3)
	last := rec.edges[2]
	require.Len(t, last, 1)
	assert.Equal(t, graph.OpRemove, last[0].Op)
	assert.Equal(t, drop.ID, last[0].ID)
}
