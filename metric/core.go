package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "inventory_connector"

// Metrics contains the connector-level metrics. All Record methods are safe
// on a nil receiver so components can run without a registry.
type Metrics struct {
	QueriesReceived prometheus.Counter
	QueriesAnswered *prometheus.CounterVec
	QueryDuration   *prometheus.HistogramVec
	BackendErrors   *prometheus.CounterVec
	DecodeErrors    prometheus.Counter
	RepliesDropped  prometheus.Counter

	HubConnected  prometheus.Gauge
	HubState      prometheus.Gauge
	HubReconnects prometheus.Counter
}

// NewMetrics creates the connector metrics, unregistered
func NewMetrics() *Metrics {
	return &Metrics{
		QueriesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queries",
			Name:      "received_total",
			Help:      "Total number of inventory queries received from the hub",
		}),
		QueriesAnswered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queries",
			Name:      "answered_total",
			Help:      "Total number of replies sent, by outcome",
		}, []string{"outcome"}),
		QueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "queries",
			Name:      "duration_seconds",
			Help:      "Time from query receipt to reply",
			Buckets:   prometheus.DefBuckets,
		}, []string{"backend"}),
		BackendErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "errors_total",
			Help:      "Total number of failed backend queries",
		}, []string{"backend"}),
		DecodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "decode_errors_total",
			Help:      "Inbound frames that could not be decoded as a query",
		}),
		RepliesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "replies_dropped_total",
			Help:      "Replies discarded because their connection was gone",
		}),
		HubConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "connected",
			Help:      "Hub connection status (0=disconnected, 1=connected)",
		}),
		HubState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "state",
			Help:      "Hub client state (0=disconnected, 1=connecting, 2=connected, 3=reconnecting, 4=closed)",
		}),
		HubReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "reconnects_total",
			Help:      "Total number of hub reconnection attempts",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.QueriesReceived,
		m.QueriesAnswered,
		m.QueryDuration,
		m.BackendErrors,
		m.DecodeErrors,
		m.RepliesDropped,
		m.HubConnected,
		m.HubState,
		m.HubReconnects,
	}
}

// RecordQueryReceived increments the received counter
func (m *Metrics) RecordQueryReceived() {
	if m == nil {
		return
	}
	m.QueriesReceived.Inc()
}

// RecordQueryAnswered counts a reply by outcome and observes its latency
func (m *Metrics) RecordQueryAnswered(backend, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.QueriesAnswered.WithLabelValues(outcome).Inc()
	m.QueryDuration.WithLabelValues(backend).Observe(duration.Seconds())
}

// RecordBackendError increments the backend error counter
func (m *Metrics) RecordBackendError(backend string) {
	if m == nil {
		return
	}
	m.BackendErrors.WithLabelValues(backend).Inc()
}

// RecordDecodeError increments the decode error counter
func (m *Metrics) RecordDecodeError() {
	if m == nil {
		return
	}
	m.DecodeErrors.Inc()
}

// RecordReplyDropped increments the dropped reply counter
func (m *Metrics) RecordReplyDropped() {
	if m == nil {
		return
	}
	m.RepliesDropped.Inc()
}

// RecordHubState updates the state gauges
func (m *Metrics) RecordHubState(state int, connected bool) {
	if m == nil {
		return
	}
	m.HubState.Set(float64(state))
	if connected {
		m.HubConnected.Set(1)
	} else {
		m.HubConnected.Set(0)
	}
}

// RecordHubReconnect increments the reconnect counter
func (m *Metrics) RecordHubReconnect() {
	if m == nil {
		return
	}
	m.HubReconnects.Inc()
}
