package metrics

import "github.com/prometheus/client_golang/prometheus"

// Hybrid store Prometheus metrics.
var (
	QueryCacheEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "promptdex",
			Name:      "query_cache_events_total",
			Help:      "Query cache hits, misses, evictions, and clears",
		},
		[]string{"event"},
	)

	BackendRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "promptdex",
			Name:      "backend_requests_total",
			Help:      "Total backend operations",
		},
		[]string{"backend", "op", "status"},
	)

	BackendRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "promptdex",
			Name:      "backend_request_duration_seconds",
			Help:      "Backend operation duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"backend", "op"},
	)
)

var storeMetricsRegistered bool

// RegisterStoreMetrics registers Prometheus store metrics. Must be called once from main.
func RegisterStoreMetrics() {
	if storeMetricsRegistered {
		return
	}
	prometheus.MustRegister(QueryCacheEvents)
	prometheus.MustRegister(BackendRequestsTotal)
	prometheus.MustRegister(BackendRequestDuration)
	storeMetricsRegistered = true
}
