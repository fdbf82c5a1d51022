package dispatcher

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/cse/metric"
)

const metricsComponent = "dispatcher"

// Metrics holds the dispatcher's own collectors. All recording methods are
// nil-safe so the dispatcher can run without a registry in tests.
type Metrics struct {
	RequestsTotal       *prometheus.CounterVec
	RequestLatency      *prometheus.HistogramVec
	DiscoveredResources prometheus.Histogram
	RollbackTotal       prometheus.Counter

	resourceCount prometheus.Gauge
}

// NewMetrics creates and registers the dispatcher collectors. Registration
// failures are swallowed; a restarted dispatcher re-registering against the
// same registry keeps the existing collectors.
func NewMetrics(registry *metric.Registry) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cse_dispatcher_requests_total",
			Help: "Processed requests by operation",
		}, []string{"operation"}),
		RequestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cse_dispatcher_request_latency_seconds",
			Help:    "Request processing latency by operation",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		DiscoveredResources: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cse_dispatcher_discovered_resources",
			Help:    "Number of resources returned per discovery call",
			Buckets: []float64{0, 1, 5, 10, 50, 100, 500, 1000},
		}),
		RollbackTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cse_dispatcher_create_rollbacks_total",
			Help: "Create operations rolled back after activation failure",
		}),
	}

	_ = registry.RegisterCounterVec(metricsComponent, "requests_total", m.RequestsTotal)
	_ = registry.RegisterHistogramVec(metricsComponent, "request_latency_seconds", m.RequestLatency)
	_ = registry.RegisterHistogram(metricsComponent, "discovered_resources", m.DiscoveredResources)
	_ = registry.RegisterCounter(metricsComponent, "create_rollbacks_total", m.RollbackTotal)
	m.resourceCount = registry.CoreMetrics().ResourceCount
	return m
}

// ObserveRequest records one processed request.
func (m *Metrics) ObserveRequest(operation string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(operation).Inc()
	m.RequestLatency.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// ObserveDiscovered records the size of one discovery result.
func (m *Metrics) ObserveDiscovered(count int) {
	if m == nil {
		return
	}
	m.DiscoveredResources.Observe(float64(count))
}

// observeResourceCount updates the tree-size gauge.
func (m *Metrics) observeResourceCount(total int) {
	if m == nil || m.resourceCount == nil {
		return
	}
	m.resourceCount.Set(float64(total))
}
