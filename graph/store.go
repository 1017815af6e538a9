package graph

import (
	"errors"
	"fmt"
	"sync"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Outbound receives the relay events produced by local mutations. It is
// called with the store lock held so events leave in mutation order;
// implementations must not block or call back into the Store.
type Outbound interface {
	NodesChanged(changes []NodeChange)
	EdgesChanged(changes []EdgeChange)
	NodeAdded(node Node)
}

var ErrUnknownNodeType = errors.New("graph: unknown node type")

// IDFunc generates the random suffix for new node and edge ids.
type IDFunc func() string

func defaultID() string {
	return gonanoid.Must(12)
}

// Store holds one session's replica of the workspace graph. Local and
// remote operations are linearized by the store mutex in arrival order.
type Store struct {
	mu         sync.Mutex
	doc        Document
	feed       ActivityFeed
	simulating bool
	outbound   Outbound
	newID      IDFunc
	listeners  []func()
}

type StoreOption func(*Store)

// WithIDFunc overrides id generation, mainly for tests.
func WithIDFunc(fn IDFunc) StoreOption {
	return func(s *Store) { s.newID = fn }
}

func WithOutbound(o Outbound) StoreOption {
	return func(s *Store) { s.outbound = o }
}

func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		doc:   Document{}.Normalize(),
		newID: defaultID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetOutbound attaches (or detaches, with nil) the relay sink.
func (s *Store) SetOutbound(o Outbound) {
	s.mu.Lock()
	s.outbound = o
	s.mu.Unlock()
}

// OnChange registers fn to run after every mutation, local or remote.
func (s *Store) OnChange(fn func()) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// ApplyLocalNodeChanges applies a batch of node patches and forwards them
// to the relay. Dangling edge references are not checked.
func (s *Store) ApplyLocalNodeChanges(changes []NodeChange) Document {
	if len(changes) == 0 {
		return s.Snapshot()
	}
	s.mu.Lock()
	s.doc.Nodes = Apply(s.doc.Nodes, changes)
	s.feed.Add(describeNodeChanges(changes))
	if s.outbound != nil {
		s.outbound.NodesChanged(changes)
	}
	doc := s.doc.Clone()
	s.mu.Unlock()

	s.notify()
	return doc
}

// ApplyLocalEdgeChanges is ApplyLocalNodeChanges for edges.
func (s *Store) ApplyLocalEdgeChanges(changes []EdgeChange) Document {
	if len(changes) == 0 {
		return s.Snapshot()
	}
	s.mu.Lock()
	s.doc.Edges = Apply(s.doc.Edges, changes)
	s.feed.Add(describeEdgeChanges(changes))
	if s.outbound != nil {
		s.outbound.EdgesChanged(changes)
	}
	doc := s.doc.Clone()
	s.mu.Unlock()

	s.notify()
	return doc
}

// AddEntity creates a node of type t at pos. An empty label falls back to
// the humanized type name.
func (s *Store) AddEntity(t NodeType, pos Position, label string) (Node, error) {
	if !t.Valid() {
		return Node{}, fmt.Errorf("%w: %q", ErrUnknownNodeType, t)
	}
	if label == "" {
		label = t.DefaultLabel()
	}

	s.mu.Lock()
	node := Node{
		ID:       fmt.Sprintf("%s-%s", t, s.newID()),
		Type:     CustomNodeType,
		Position: pos,
		Data: NodeData{
			Label:      label,
			Type:       t,
			Latency:    DefaultLatency,
			Throughput: DefaultThroughput,
		},
	}
	s.doc.Nodes = append(s.doc.Nodes, node)
	s.feed.Add(fmt.Sprintf("Added %s node", label))
	if s.outbound != nil {
		s.outbound.NodeAdded(node)
	}
	s.mu.Unlock()

	s.notify()
	return node, nil
}

// Connect appends an edge from source to target. Self-loops and
// duplicate connections are allowed.
func (s *Store) Connect(source, target string) Edge {
	s.mu.Lock()
	edge := Edge{
		ID:       "edge-" + s.newID(),
		Source:   source,
		Target:   target,
		Animated: s.simulating,
	}
	s.doc.Edges = append(s.doc.Edges, edge)
	s.feed.Add("New connection created")
	if s.outbound != nil {
		s.outbound.EdgesChanged([]EdgeChange{AddChange(edge)})
	}
	s.mu.Unlock()

	s.notify()
	return edge
}

// MoveNode repositions a node. It reports false when the id is unknown.
func (s *Store) MoveNode(id string, pos Position) bool {
	return s.updateNode(id, func(n *Node) { n.Position = pos })
}

// UpdateNodeData edits a node's data in place through fn.
func (s *Store) UpdateNodeData(id string, fn func(*NodeData)) bool {
	return s.updateNode(id, func(n *Node) { fn(&n.Data) })
}

func (s *Store) updateNode(id string, fn func(*Node)) bool {
	s.mu.Lock()
	node, ok := s.doc.NodeByID(id)
	s.mu.Unlock()
	if !ok {
		return false
	}
	fn(&node)
	s.ApplyLocalNodeChanges([]NodeChange{ReplaceChange(node)})
	return true
}

// RemoveNode deletes a node. Edges that reference it are left in place.
func (s *Store) RemoveNode(id string) bool {
	s.mu.Lock()
	_, ok := s.doc.NodeByID(id)
	s.mu.Unlock()
	if !ok {
		return false
	}
	s.ApplyLocalNodeChanges([]NodeChange{RemoveChange[Node](id)})
	return true
}

func (s *Store) RemoveEdge(id string) {
	s.ApplyLocalEdgeChanges([]EdgeChange{RemoveChange[Edge](id)})
}

// SetSimulating toggles traffic animation on every edge. The change is
// local render state and is not relayed.
func (s *Store) SetSimulating(on bool) {
	s.mu.Lock()
	s.simulating = on
	for i := range s.doc.Edges {
		s.doc.Edges[i].Animated = on
	}
	s.mu.Unlock()

	s.notify()
}

func (s *Store) Simulating() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.simulating
}

// Load replaces the whole document, as when hydrating from storage.
// Listeners are not notified.
func (s *Store) Load(doc Document) {
	s.mu.Lock()
	s.doc = doc.Clone().Normalize()
	s.mu.Unlock()
}

// Reset clears the graph and the activity feed.
func (s *Store) Reset() {
	s.mu.Lock()
	s.doc = Document{}.Normalize()
	s.feed.Reset()
	s.simulating = false
	s.mu.Unlock()
}

func (s *Store) Snapshot() Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Clone()
}

// Activity returns the feed, newest first.
func (s *Store) Activity() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.feed.Entries()
}

func (s *Store) AddActivity(entry string) {
	s.mu.Lock()
	s.feed.Add(entry)
	s.mu.Unlock()
}

func (s *Store) notify() {
	s.mu.Lock()
	listeners := make([]func(), len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn()
	}
}

func describeNodeChanges(changes []NodeChange) string {
	if len(changes) > 1 {
		return fmt.Sprintf("Applied %d node changes", len(changes))
	}
	c := changes[0]
	switch c.Op {
	case OpAdd:
		if c.Value != nil {
			return fmt.Sprintf("Added %s node", c.Value.Data.Label)
		}
	case OpReplace:
		if c.Value != nil {
			return fmt.Sprintf("Updated %s", c.Value.Data.Label)
		}
	case OpRemove:
		return fmt.Sprintf("Removed node %s", c.ID)
	}
	return "Node changed"
}

func describeEdgeChanges(changes []EdgeChange) string {
	if len(changes) > 1 {
		return fmt.Sprintf("Applied %d connection changes", len(changes))
	}
	switch changes[0].Op {
	case OpAdd:
		return "New connection created"
	case OpRemove:
		return "Connection removed"
	default:
		return "Connection updated"
	}
}
