// Package metrics exposes the coordinator's Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "colla"

// Delivery outcomes.
const (
	OutcomeSent    = "sent"
	OutcomeDropped = "dropped"
	OutcomeSkipped = "skipped"
)

// Metrics is nil-safe: a nil *Metrics records nothing.
type Metrics struct {
	reg         *prometheus.Registry
	events      *prometheus.CounterVec
	malformed   *prometheus.CounterVec
	deliveries  *prometheus.CounterVec
	connections prometheus.Gauge
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := &Metrics{
		reg: reg,
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Inbound realtime events by type.",
		}, []string{"type"}),
		malformed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_malformed_total",
			Help:      "Inbound events dropped before reaching the coordinator.",
		}, []string{"type"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Outbound frames by outcome.",
		}, []string{"outcome"}),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections",
			Help:      "Live websocket connections.",
		}),
	}
	reg.MustRegister(m.events, m.malformed, m.deliveries, m.connections)
	return m
}

// RegisterRooms exports the number of in-memory rooms.
func (m *Metrics) RegisterRooms(count func() int) {
	if m == nil {
		return
	}
	m.reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "rooms",
		Help:      "Rooms held in memory.",
	}, func() float64 { return float64(count()) }))
}

func (m *Metrics) Event(kind string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(kind).Inc()
}

func (m *Metrics) Malformed(kind string) {
	if m == nil {
		return
	}
	m.malformed.WithLabelValues(kind).Inc()
}

func (m *Metrics) Delivery(outcome string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.deliveries.WithLabelValues(outcome).Add(float64(n))
}

func (m *Metrics) ConnOpened() {
	if m == nil {
		return
	}
	m.connections.Inc()
}

func (m *Metrics) ConnClosed() {
	if m == nil {
		return
	}
	m.connections.Dec()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
