package graph

import "fmt"

// Remote patches are applied in the order they arrive. There is no
// version check: when two sessions edit the same node the last patch
// applied wins. None of these methods emit to the relay.

// ApplyRemoteNodeChanges merges a nodes-sync patch into the replica.
// Invalid operations in the batch are skipped individually.
func (s *Store) ApplyRemoteNodeChanges(changes []NodeChange) Document {
	s.mu.Lock()
	s.doc.Nodes = Apply(s.doc.Nodes, changes)
	doc := s.doc.Clone()
	s.mu.Unlock()

	s.notify()
	return doc
}

// ApplyRemoteEdgeChanges merges an edges-sync patch into the replica.
func (s *Store) ApplyRemoteEdgeChanges(changes []EdgeChange) Document {
	s.mu.Lock()
	s.doc.Edges = Apply(s.doc.Edges, changes)
	doc := s.doc.Clone()
	s.mu.Unlock()

	s.notify()
	return doc
}

// ApplyRemoteNodeAdded appends a node created by another session, trusting
// its id as-is.
func (s *Store) ApplyRemoteNodeAdded(node Node) {
	s.mu.Lock()
	s.doc.Nodes = append(s.doc.Nodes, node)
	s.feed.Add(fmt.Sprintf("New node added: %s", node.Data.Label))
	s.mu.Unlock()

	s.notify()
}
