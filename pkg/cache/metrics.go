package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by backend
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apicache_hits_total",
			Help: "Total number of response cache hits",
		},
		[]string{"backend"}, // "memory", "redis"
	)

	// CacheMisses tracks cache misses by backend
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apicache_misses_total",
			Help: "Total number of response cache misses",
		},
		[]string{"backend"},
	)

	// CacheEntries tracks the number of entries held by the in-process store
	CacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "apicache_store_entries",
			Help: "Current number of entries in the in-process store",
		},
	)

	// CacheEvictions tracks capacity evictions from the in-process store
	CacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "apicache_evictions_total",
			Help: "Total number of least-recently-used evictions",
		},
	)

	// CacheExpirations tracks expired entries removed, by path
	CacheExpirations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apicache_expirations_total",
			Help: "Total number of expired entries removed",
		},
		[]string{"path"}, // "lazy", "sweep"
	)

	// CacheErrors tracks backend operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apicache_errors_total",
			Help: "Total number of cache backend operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete", "clear"
	)
)
