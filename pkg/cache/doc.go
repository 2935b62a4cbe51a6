// Package cache provides the response cache storage used by the API middleware.
//
// Two backends implement the same Backend contract:
//
// - MemoryBackend: a bounded in-process Store with per-entry TTL,
// least-recently-accessed eviction and a periodic sweep of expired entries
// - RedisBackend: a shared Redis instance, used when one is configured and reachable
//
// The choice is made once at startup by Select and never revisited.
//
// # Basic Usage
//
//	backend := cache.Select(ctx, cache.SelectorConfig{
//		RedisURL: os.Getenv("REDIS_URL"),
//		Store: cache.StoreConfig{
//			MaxSize:    1000,
//			DefaultTTL: 5 * time.Minute,
//		},
//	}, logger)
//	defer backend.Close()
//
//	key := cache.KeyFromRequest(r).String()
//
//	data, err := backend.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// Cache miss - compute and Set
//	}
//
// # Store Semantics
//
// - Expired entries are never returned; Get checks expiry before every hit
// - Inserting into a full store evicts exactly one entry, the least recently accessed
// - Get refreshes recency, Set on an existing key overwrites in place
// - Close stops the sweep goroutine
//
// # Metrics
//
//   - apicache_hits_total{backend} - Cache hits
//   - apicache_misses_total{backend} - Cache misses
//   - apicache_store_entries - In-process store size
//   - apicache_evictions_total - LRU evictions
//   - apicache_expirations_total{path} - Expired entries removed (lazy, sweep)
//   - apicache_errors_total{operation} - Backend errors
package cache
