// Package metrics exposes the Prometheus metrics of the API cache.
// All metrics are defined in their respective packages (cache, dedup,
// middleware, upstream) to maintain modularity and avoid circular dependencies.
//
// This package provides the exposition handler and reference for all available metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the API cache.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the registry read by Handler.
var Gatherer = prometheus.DefaultGatherer

// Handler returns the /metrics exposition handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{
		Registry: Registry,
	})
}

// Metrics Documentation
//
// Cache Metrics (pkg/cache):
//   - apicache_hits_total{backend} (Counter): Backend lookups that found a live entry
//   - apicache_misses_total{backend} (Counter): Backend lookups that found nothing
//   - apicache_store_entries (Gauge): Live entries in the in-process store
//   - apicache_evictions_total (Counter): Least-recently-accessed evictions at capacity
//   - apicache_expirations_total{path="lazy|sweep"} (Counter): Expired entries removed
//   - apicache_errors_total{operation} (Counter): Backend operation errors
//
// Coalescing Metrics (pkg/dedup):
//   - apicache_dedup_executions_total (Counter): Computations actually started
//   - apicache_dedup_shared_total (Counter): Callers served a shared result
//   - apicache_dedup_inflight (Gauge): Computations currently in flight
//
// HTTP Metrics (pkg/middleware):
//   - apicache_http_request_duration_seconds{method, route} (Histogram): Handler duration
//   - apicache_http_slow_requests_total{method, route} (Counter): Responses over the slow threshold
//   - apicache_http_cache_lookups_total{result="hit|miss|bypass"} (Counter): Caching middleware outcomes
//   - apicache_http_cache_stores_total{result="stored|uncacheable|error"} (Counter): Storage decisions after a miss
//
// Upstream Metrics (pkg/upstream):
//   - apicache_upstream_requests_total{status} (Counter): Upstream requests by HTTP status
//   - apicache_upstream_request_duration_seconds (Histogram): Upstream request duration
//   - apicache_upstream_errors_total{class} (Counter): Errors by class (client, server, network)
//   - apicache_upstream_retries_total{error_class} (Counter): Retry attempts by error class
//   - apicache_upstream_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - apicache_upstream_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(apicache_http_cache_lookups_total{result="hit"}[5m])) /
//   sum(rate(apicache_http_cache_lookups_total[5m]))
//
//   # Requests saved by coalescing
//   rate(apicache_dedup_shared_total[5m]) - rate(apicache_dedup_executions_total[5m])
//
//   # P95 Latency per route
//   histogram_quantile(0.95, sum by (route, le) (rate(apicache_http_request_duration_seconds_bucket[5m])))
//
//   # Eviction pressure
//   rate(apicache_evictions_total[5m])
