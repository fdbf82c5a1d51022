package metric

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the core platform metrics every deployment exposes regardless
// of which components are enabled.
type Metrics struct {
	// ResourceCount tracks the number of resources currently in the tree.
	ResourceCount prometheus.Gauge

	// StorageOperations counts storage round trips by operation and outcome.
	StorageOperations *prometheus.CounterVec

	// StorageLatency observes storage round trip duration by operation.
	StorageLatency *prometheus.HistogramVec

	// NotificationsPublished counts lifecycle events published by event kind.
	NotificationsPublished *prometheus.CounterVec

	// NATSConnected is 1 while the NATS connection is up.
	NATSConnected prometheus.Gauge

	// NATSReconnects counts NATS reconnect events.
	NATSReconnects prometheus.Counter
}

// NewMetrics creates the core platform metrics. Collectors are created
// unregistered; the Registry wires them in.
func NewMetrics() *Metrics {
	return &Metrics{
		ResourceCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cse_resource_count",
			Help: "Number of resources currently held in the resource tree",
		}),
		StorageOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cse_storage_operations_total",
			Help: "Storage operations by operation and outcome",
		}, []string{"operation", "outcome"}),
		StorageLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cse_storage_latency_seconds",
			Help:    "Storage operation latency by operation",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		NotificationsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cse_notifications_published_total",
			Help: "Resource lifecycle events published by event kind",
		}, []string{"event"}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cse_nats_connected",
			Help: "Whether the NATS connection is currently established",
		}),
		NATSReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cse_nats_reconnects_total",
			Help: "Number of NATS reconnect events",
		}),
	}
}
