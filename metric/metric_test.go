package metric

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/prometheus/common/expfmt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gondolav/inventory-connector/errors"
	"github.com/Gondolav/inventory-connector/health"
)

func gatheredNames(t *testing.T, r *MetricsRegistry) map[string]bool {
	t.Helper()
	families, err := r.PrometheusRegistry().Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	return names
}

func TestNewMetricsRegistry(t *testing.T) {
	registry := NewMetricsRegistry()
	require.NotNil(t, registry.CoreMetrics())

	registry.CoreMetrics().RecordQueryReceived()
	registry.CoreMetrics().RecordQueryAnswered("db", "found", 10*time.Millisecond)

	names := gatheredNames(t, registry)
	assert.True(t, names["inventory_connector_queries_received_total"])
	assert.True(t, names["inventory_connector_queries_answered_total"])
	assert.True(t, names["go_goroutines"])
}

func TestMetricsRegistry_Register(t *testing.T) {
	registry := NewMetricsRegistry()

	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_counter", Help: "test"})
	require.NoError(t, registry.RegisterCounter("svc", "test_counter", counter))

	gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "test_gauge", Help: "test"})
	require.NoError(t, registry.RegisterGauge("svc", "test_gauge", gauge))

	vec := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_vec", Help: "test"}, []string{"k"})
	require.NoError(t, registry.RegisterCounterVec("svc", "test_vec", vec))

	hist := prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: "test_hist", Help: "test"}, []string{"k"})
	require.NoError(t, registry.RegisterHistogramVec("svc", "test_hist", hist))

	counter.Inc()
	gauge.Set(3)
	vec.WithLabelValues("a").Inc()
	hist.WithLabelValues("a").Observe(1)

	names := gatheredNames(t, registry)
	for _, n := range []string{"test_counter", "test_gauge", "test_vec", "test_hist"} {
		assert.True(t, names[n], n)
	}
}

func TestMetricsRegistry_DuplicateRegistration(t *testing.T) {
	registry := NewMetricsRegistry()

	c1 := prometheus.NewCounter(prometheus.CounterOpts{Name: "dup_total", Help: "dup"})
	require.NoError(t, registry.RegisterCounter("svc", "dup_total", c1))

	err := registry.RegisterCounter("svc", "dup_total", c1)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))

	c2 := prometheus.NewCounter(prometheus.CounterOpts{Name: "dup_total", Help: "dup"})
	err = registry.RegisterCounter("other", "dup_total", c2)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestMetricsRegistry_Unregister(t *testing.T) {
	registry := NewMetricsRegistry()

	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "gone_total", Help: "gone"})
	require.NoError(t, registry.RegisterCounter("svc", "gone_total", c))

	assert.True(t, registry.Unregister("svc", "gone_total"))
	assert.False(t, registry.Unregister("svc", "gone_total"))
	assert.NoError(t, registry.RegisterCounter("svc", "gone_total", c))
}

func TestMetrics_Record(t *testing.T) {
	m := NewMetrics()

	m.RecordQueryReceived()
	m.RecordQueryAnswered("api", "not_found", time.Millisecond)
	m.RecordQueryAnswered("api", "found", time.Millisecond)
	m.RecordQueryAnswered("api", "found", time.Millisecond)
	m.RecordBackendError("api")
	m.RecordDecodeError()
	m.RecordReplyDropped()
	m.RecordHubReconnect()
	m.RecordHubState(2, true)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.QueriesReceived))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.QueriesAnswered.WithLabelValues("found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.QueriesAnswered.WithLabelValues("not_found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BackendErrors.WithLabelValues("api")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DecodeErrors))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RepliesDropped))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HubReconnects))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.HubState))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HubConnected))

	m.RecordHubState(3, false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.HubConnected))
}

func TestMetrics_NilReceiver(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordQueryReceived()
		m.RecordQueryAnswered("db", "found", time.Second)
		m.RecordBackendError("db")
		m.RecordDecodeError()
		m.RecordReplyDropped()
		m.RecordHubState(1, false)
		m.RecordHubReconnect()
	})
}

func TestServer_Handler(t *testing.T) {
	registry := NewMetricsRegistry()
	registry.CoreMetrics().RecordQueryReceived()

	healthy := true
	srv := NewServer(0, "", registry, func() health.Status {
		if healthy {
			return health.NewHealthy("connector", "ok")
		}
		return health.NewUnhealthy("connector", "hub down")
	})
	assert.Equal(t, "http://localhost:9090/metrics", srv.Address())

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/health")
	require.NoError(t, err)
	var status health.Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, status.Healthy)

	healthy = false
	resp, err = http.Get(ts.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestServer_MetricsBody(t *testing.T) {
	registry := NewMetricsRegistry()
	registry.CoreMetrics().RecordHubReconnect()

	rec := httptest.NewRecorder()
	NewServer(9100, "/m", registry, nil).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/m", nil))

	assert.Equal(t, http.StatusOK, rec.Code)

	var parser expfmt.TextParser
	families, err := parser.TextToMetricFamilies(rec.Body)
	require.NoError(t, err)
	reconnects, ok := families["inventory_connector_hub_reconnects_total"]
	require.True(t, ok, "reconnect counter not exposed")
	require.Len(t, reconnects.GetMetric(), 1)
	assert.Equal(t, 1.0, reconnects.GetMetric()[0].GetCounter().GetValue())
}
