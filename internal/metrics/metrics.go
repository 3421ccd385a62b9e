// Package metrics provides Prometheus metrics for the cache, remote client and sync engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Cache metrics
var (
	// cacheLookupsTotal records cache lookups.
	// Labels:
	//   - cache: "record" or "listing"
	//   - result: "hit", "miss" or "expired"
	cacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prompthive_cache_lookups_total",
			Help: "Total number of cache lookups by result",
		},
		[]string{"cache", "result"},
	)

	// cacheEvictionsTotal records capacity evictions from the record cache.
	cacheEvictionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "prompthive_cache_evictions_total",
			Help: "Total number of record cache evictions at capacity",
		},
	)
)

// Remote and sync metrics
var (
	// remoteRequestDuration records round-trip time of remote store calls.
	// Labels:
	//   - operation: "list", "get" or "push"
	//   - status: HTTP status code, or "transport" when no response arrived
	remoteRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "prompthive_remote_request_duration_seconds",
			Help:    "Duration of remote store requests in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"operation", "status"},
	)

	// syncItemsTotal records per-item sync outcomes.
	// Labels:
	//   - operation: "push", "pull", "status", "verify", "resolve", "bidirectional"
	//   - outcome: e.g. "created", "updated", "conflict", "error", "synced"
	syncItemsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prompthive_sync_items_total",
			Help: "Total number of items processed by sync operations",
		},
		[]string{"operation", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(cacheLookupsTotal)
	prometheus.MustRegister(cacheEvictionsTotal)
	prometheus.MustRegister(remoteRequestDuration)
	prometheus.MustRegister(syncItemsTotal)
}

// RecordCacheLookup records one cache lookup.
func RecordCacheLookup(cache, result string) {
	cacheLookupsTotal.WithLabelValues(cache, result).Inc()
}

// RecordCacheEviction records one capacity eviction.
func RecordCacheEviction() {
	cacheEvictionsTotal.Inc()
}

// RecordRemoteRequest records the duration of a remote call.
func RecordRemoteRequest(operation, status string, durationSeconds float64) {
	remoteRequestDuration.WithLabelValues(operation, status).Observe(durationSeconds)
}

// RecordSyncItem records one per-item sync outcome.
func RecordSyncItem(operation, outcome string) {
	syncItemsTotal.WithLabelValues(operation, outcome).Inc()
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
