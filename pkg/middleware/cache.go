// Package middleware provides the HTTP middleware chain placed in front of
// read endpoints: instrumentation, request coalescing and response caching.
//
// Each middleware has the chi/net/http shape func(http.Handler) http.Handler
// and is mounted per route group:
//
//	r.Use(middleware.Instrument(time.Second, logger))
//	r.Use(middleware.Dedup(tracker, logger))
//	r.Use(middleware.Cache(backend, 5*time.Minute, logger))
//
// Handlers never see a modified ResponseWriter: the next handler's output is
// captured as a Response value, inspected, and replayed.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/mutua-muvevi/kenix-commodities-sales-app-sub005/pkg/cache"
	"github.com/rs/zerolog"
)

// Response annotation headers.
const (
	// HeaderCache carries HIT or MISS on every cache-eligible response.
	HeaderCache = "X-Cache"

	// HeaderCacheStatus carries the RFC 9211 Cache-Status value.
	HeaderCacheStatus = "Cache-Status"

	// CacheStatusName identifies this cache in Cache-Status.
	CacheStatusName = "apicache"
)

const (
	cacheHit  = "HIT"
	cacheMiss = "MISS"
)

// Cache returns middleware that serves read requests from backend and stores
// successful responses for ttl (a ttl <= 0 uses the backend default).
//
// Writes pass straight through and never touch the backend. HEAD requests
// may be answered from a stored GET but never populate the cache. Non-2xx
// responses and bodies carrying an error indicator are never stored.
// Backend failures degrade to an uncached pass-through.
func Cache(backend cache.Backend, ttl time.Duration, logger zerolog.Logger) func(http.Handler) http.Handler {
	if backend == nil {
		panic("cache backend cannot be nil")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !readOnly(r) {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			key := cache.KeyFromRequest(r).String()

			data, err := backend.Get(ctx, key)
			switch {
			case err == nil:
				resp, decodeErr := decodeResponse(data)
				if decodeErr == nil {
					cacheLookupsTotal.WithLabelValues("hit").Inc()
					logger.Debug().Str("key", key).Bool("cache_hit", true).Msg("Serving cached response")

					w.Header().Set(HeaderCache, cacheHit)
					w.Header().Set(HeaderCacheStatus, CacheStatusName+"; hit")
					resp.replay(w)
					return
				}
				logger.Warn().Err(decodeErr).Str("key", key).Msg("Dropping unreadable cache entry")
				_ = backend.Delete(ctx, key)

			case errors.Is(err, cache.ErrCacheMiss):

			default:
				cacheLookupsTotal.WithLabelValues("bypass").Inc()
				logger.Warn().Err(err).Str("key", key).Msg("Cache get error, serving uncached")

				w.Header().Set(HeaderCache, cacheMiss)
				w.Header().Set(HeaderCacheStatus, CacheStatusName+"; fwd=bypass")
				next.ServeHTTP(w, r)
				return
			}

			cacheLookupsTotal.WithLabelValues("miss").Inc()
			resp := capture(next, r)

			status := CacheStatusName + "; fwd=miss"
			// HEAD shares the GET key but carries no body, so it only reads.
			if resp.cacheable() && r.Method != http.MethodHead {
				if err := store(r, backend, key, resp, ttl); err != nil {
					cacheStoresTotal.WithLabelValues("error").Inc()
					logger.Warn().Err(err).Str("key", key).Msg("Failed to cache response")
				} else {
					cacheStoresTotal.WithLabelValues("stored").Inc()
					status += "; stored"
					logger.Debug().Str("key", key).Dur("ttl", ttl).Msg("Cached response")
				}
			} else {
				cacheStoresTotal.WithLabelValues("uncacheable").Inc()
				logger.Debug().Str("key", key).Int("status", resp.StatusCode).Msg("Response not cacheable")
			}

			w.Header().Set(HeaderCache, cacheMiss)
			w.Header().Set(HeaderCacheStatus, status)
			resp.replay(w)
		})
	}
}

func store(r *http.Request, backend cache.Backend, key string, resp *Response, ttl time.Duration) error {
	data, err := encodeResponse(resp)
	if err != nil {
		return err
	}
	// A client that disconnected mid-miss should not prevent the write.
	return backend.Set(context.WithoutCancel(r.Context()), key, data, ttl)
}
