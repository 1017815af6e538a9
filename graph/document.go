package graph

import (
	"strings"
	"unicode"
)

// NodeType is the kind of system component a node represents.
type NodeType string

const (
	Client          NodeType = "client"
	LoadBalancer    NodeType = "loadBalancer"
	APIGateway      NodeType = "apiGateway"
	WebServer       NodeType = "webServer"
	Cache           NodeType = "cache"
	MessageQueue    NodeType = "messageQueue"
	Database        NodeType = "database"
	MLModel         NodeType = "mlModel"
	TrainingData    NodeType = "trainingData"
	InferenceServer NodeType = "inferenceServer"
	Frontend        NodeType = "frontend"
	CDN             NodeType = "cdn"
	Analytics       NodeType = "analytics"
	Note            NodeType = "note"
)

var nodeTypes = map[NodeType]bool{
	Client: true, LoadBalancer: true, APIGateway: true, WebServer: true,
	Cache: true, MessageQueue: true, Database: true, MLModel: true,
	TrainingData: true, InferenceServer: true, Frontend: true, CDN: true,
	Analytics: true, Note: true,
}

// Valid reports whether t is one of the known component kinds.
func (t NodeType) Valid() bool {
	return nodeTypes[t]
}

// DefaultLabel turns a camel-cased type into a display label,
// e.g. "loadBalancer" -> "Load Balancer".
func (t NodeType) DefaultLabel() string {
	s := string(t)
	if s == "" {
		return ""
	}
	var b strings.Builder
	for i, r := range s {
		if i == 0 {
			b.WriteRune(unicode.ToUpper(r))
			continue
		}
		if unicode.IsUpper(r) {
			b.WriteRune(' ')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// CustomNodeType is the render type every canvas node carries.
const CustomNodeType = "custom"

const (
	DefaultLatency    = 10
	DefaultThroughput = 100
)

type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type NodeData struct {
	Label      string   `json:"label"`
	Type       NodeType `json:"type"`
	Latency    float64  `json:"latency"`
	Throughput float64  `json:"throughput"`
}

type Node struct {
	ID       string   `json:"id"`
	Type     string   `json:"type,omitempty"`
	Position Position `json:"position"`
	Data     NodeData `json:"data"`
}

func (n Node) Key() string { return n.ID }

type Edge struct {
	ID           string            `json:"id"`
	Source       string            `json:"source"`
	Target       string            `json:"target"`
	SourceHandle string            `json:"sourceHandle,omitempty"`
	TargetHandle string            `json:"targetHandle,omitempty"`
	Animated     bool              `json:"animated"`
	Style        map[string]string `json:"style,omitempty"`
}

func (e Edge) Key() string { return e.ID }

// Document is the full graph of one workspace.
type Document struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Clone returns a copy that shares no slices or maps with d.
func (d Document) Clone() Document {
	out := Document{
		Nodes: make([]Node, len(d.Nodes)),
		Edges: make([]Edge, len(d.Edges)),
	}
	copy(out.Nodes, d.Nodes)
	for i, e := range d.Edges {
		out.Edges[i] = e.clone()
	}
	return out
}

// Normalize replaces nil slices with empty ones so the document always
// serializes as {"nodes": [], "edges": []}.
func (d Document) Normalize() Document {
	if d.Nodes == nil {
		d.Nodes = []Node{}
	}
	if d.Edges == nil {
		d.Edges = []Edge{}
	}
	return d
}

func (e Edge) clone() Edge {
	if e.Style != nil {
		style := make(map[string]string, len(e.Style))
		for k, v := range e.Style {
			style[k] = v
		}
		e.Style = style
	}
	return e
}

// NodeByID returns the first node with the given id.
func (d Document) NodeByID(id string) (Node, bool) {
	for _, n := range d.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// DanglingEdges lists edges whose source or target node is missing.
// Edges are never validated on insert so this can be non-empty.
func (d Document) DanglingEdges() []Edge {
	ids := make(map[string]bool, len(d.Nodes))
	for _, n := range d.Nodes {
		ids[n.ID] = true
	}
	var out []Edge
	for _, e := range d.Edges {
		if !ids[e.Source] || !ids[e.Target] {
			out = append(out, e)
		}
	}
	return out
}
