// Package metrics defines the relay's telemetry primitives in the prometheus format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace is the basic namespace where all metrics are defined under.
const Namespace = "coedit"

// Drop reasons used as the "reason" label of MessagesDropped.
const (
	ReasonMalformed   = "malformed"
	ReasonUnknownType = "unknown_type"
	ReasonProtocol    = "protocol_violation"
	ReasonRejected    = "rejected"
)

// Metrics is a set of collectors bound to one registry. Every Relay owns its
// own instance so several relays (tests) never collide on registration.
type Metrics struct {
	registry *prometheus.Registry

	PeersConnected   prometheus.Gauge
	SequenceElements prometheus.Gauge
	VisibleLength    prometheus.Gauge
	MessagesApplied  *prometheus.CounterVec
	MessagesDropped  *prometheus.CounterVec
	Broadcasts       prometheus.Counter
	PeersEvicted     prometheus.Counter
}

// New registers all collectors on a fresh registry, together with the go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		PeersConnected: f.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace, Subsystem: "relay", Name: "peers_connected",
			Help: "Number of peers currently joined to the session",
		}),
		SequenceElements: f.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace, Subsystem: "document", Name: "elements",
			Help: "Number of elements in the authoritative sequence, tombstones included",
		}),
		VisibleLength: f.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace, Subsystem: "document", Name: "visible_length",
			Help: "Number of visible characters in the authoritative document",
		}),
		MessagesApplied: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace, Subsystem: "relay", Name: "messages_applied_total",
			Help: "Messages accepted from peers, by type",
		}, []string{"type"}),
		MessagesDropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace, Subsystem: "relay", Name: "messages_dropped_total",
			Help: "Messages dropped by the relay, by reason",
		}, []string{"reason"}),
		Broadcasts: f.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace, Subsystem: "relay", Name: "broadcasts_total",
			Help: "Messages enqueued to peers",
		}),
		PeersEvicted: f.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace, Subsystem: "relay", Name: "peers_evicted_total",
			Help: "Peers closed because their outbound queue was full",
		}),
	}
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
