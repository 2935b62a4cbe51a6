package middleware

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the HTTP middleware chain.
var (
	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "apicache_http_request_duration_seconds",
		Help:    "Handler duration in seconds by method and route",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
	}, []string{"method", "route"})

	httpSlowRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "apicache_http_slow_requests_total",
		Help: "Total number of responses slower than the slow-request threshold",
	}, []string{"method", "route"})

	cacheLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "apicache_http_cache_lookups_total",
		Help: "Caching middleware outcomes",
	}, []string{"result"}) // "hit", "miss", "bypass"

	cacheStoresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "apicache_http_cache_stores_total",
		Help: "Responses considered for storage after a miss",
	}, []string{"result"}) // "stored", "uncacheable", "error"
)
