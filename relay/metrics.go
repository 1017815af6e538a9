package relay

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks relay traffic.
type Metrics struct {
	ActiveConnections prometheus.Gauge
	ActiveGroups      prometheus.Gauge
	Received          *prometheus.CounterVec
	Delivered         *prometheus.CounterVec
	Dropped           *prometheus.CounterVec
}

// NewMetrics registers the relay collectors with reg. A nil reg gets a
// private registry so several hubs can coexist in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		ActiveConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "sysviz",
			Subsystem: "relay",
			Name:      "active_connections",
			Help:      "Open websocket sessions.",
		}),
		ActiveGroups: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "sysviz",
			Subsystem: "relay",
			Name:      "active_groups",
			Help:      "Workspace groups with at least one member.",
		}),
		Received: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sysviz",
			Subsystem: "relay",
			Name:      "received_total",
			Help:      "Client events received by the hub.",
		}, []string{"event"}),
		Delivered: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sysviz",
			Subsystem: "relay",
			Name:      "delivered_total",
			Help:      "Events queued to a recipient session.",
		}, []string{"event"}),
		Dropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sysviz",
			Subsystem: "relay",
			Name:      "dropped_total",
			Help:      "Events dropped because a recipient was too slow or the payload was invalid.",
		}, []string{"event"}),
	}
}

// unknownEvent labels client events the hub does not route, so peers
// cannot mint new series by inventing event names.
const unknownEvent = "unknown"

var clientEvents = map[string]bool{
	EventJoinWorkspace: true,
	EventCursorMove:    true,
	EventNodeChange:    true,
	EventEdgeChange:    true,
	EventAddNode:       true,
	EventSendMessage:   true,
}

// eventLabel maps a client-supplied event name onto the fixed label set.
func eventLabel(event string) string {
	if clientEvents[event] {
		return event
	}
	return unknownEvent
}
