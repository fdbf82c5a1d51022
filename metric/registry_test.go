package metric

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_RegisterCounter(t *testing.T) {
	registry := NewRegistry()

	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "test_operations_total",
		Help: "Test counter",
	})

	err := registry.RegisterCounter("dispatcher", "operations_total", counter)
	require.NoError(t, err)

	// Registering under the same key again must fail.
	other := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "test_operations_total_2",
		Help: "Second test counter",
	})
	err = registry.RegisterCounter("dispatcher", "operations_total", other)
	assert.Error(t, err)
}

func TestRegistry_Unregister(t *testing.T) {
	registry := NewRegistry()

	gauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "test_active",
		Help: "Test gauge",
	})
	require.NoError(t, registry.RegisterGauge("gateway", "active", gauge))

	assert.True(t, registry.Unregister("gateway", "active"))
	assert.False(t, registry.Unregister("gateway", "active"))

	// Re-registration after unregister must succeed.
	require.NoError(t, registry.RegisterGauge("gateway", "active", gauge))
}

func TestRegistry_CoreMetricsGathered(t *testing.T) {
	registry := NewRegistry()

	registry.CoreMetrics().ResourceCount.Set(42)
	registry.CoreMetrics().StorageOperations.WithLabelValues("retrieve", "ok").Inc()

	families, err := registry.PrometheusRegistry().Gather()
	require.NoError(t, err)

	names := map[string]bool{}
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	assert.True(t, names["cse_resource_count"])
	assert.True(t, names["cse_storage_operations_total"])
}

func TestRegistry_RegisterVecs(t *testing.T) {
	registry := NewRegistry()

	cv := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "test_requests_total",
		Help: "Requests by operation",
	}, []string{"operation", "status"})
	require.NoError(t, registry.RegisterCounterVec("dispatcher", "requests_total", cv))

	hv := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "test_latency_seconds",
		Help:    "Latency by operation",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	require.NoError(t, registry.RegisterHistogramVec("dispatcher", "latency_seconds", hv))

	cv.WithLabelValues("create", "2001").Inc()
	hv.WithLabelValues("create").Observe(0.01)

	families, err := registry.PrometheusRegistry().Gather()
	require.NoError(t, err)

	names := map[string]bool{}
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	assert.True(t, names["test_requests_total"])
	assert.True(t, names["test_latency_seconds"])
}
