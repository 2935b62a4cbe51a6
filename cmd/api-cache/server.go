package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/mutua-muvevi/kenix-commodities-sales-app-sub005/pkg/cache"
	"github.com/mutua-muvevi/kenix-commodities-sales-app-sub005/pkg/config"
	"github.com/mutua-muvevi/kenix-commodities-sales-app-sub005/pkg/dedup"
	"github.com/mutua-muvevi/kenix-commodities-sales-app-sub005/pkg/health"
	"github.com/mutua-muvevi/kenix-commodities-sales-app-sub005/pkg/metrics"
	"github.com/mutua-muvevi/kenix-commodities-sales-app-sub005/pkg/middleware"
	"github.com/rs/zerolog"
)

// server wires the cache layers in front of the upstream proxy.
type server struct {
	backend   cache.Backend
	tracker   *dedup.Tracker
	proxy     http.Handler
	cfg       *config.Config
	startedAt time.Time
	logger    zerolog.Logger
}

// routes builds the router:
//
//	GET  /health              introspection, never cached
//	GET  /metrics             Prometheus exposition
//	     /api/admin/*         proxied, cached for cache.admin_ttl
//	     /api/*               proxied, cached for cache.general_ttl
//	DELETE /admin/cache       drop every entry
//	DELETE /admin/cache/*     drop the entry of one API path and query
func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.Instrument(s.cfg.Server.SlowThreshold, s.logger))

	r.Handle("/health", health.NewHandler(s.backend, s.tracker, s.startedAt, s.logger))
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route(adminCachePath, func(r chi.Router) {
		r.Delete("/", s.clearCache)
		r.Delete("/*", s.invalidate)
	})

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			s.readChain(r, s.cfg.Cache.AdminTTL)
			r.Handle("/admin/*", s.proxy)
		})
		r.Group(func(r chi.Router) {
			s.readChain(r, s.cfg.Cache.GeneralTTL)
			r.Handle("/*", s.proxy)
		})
	})

	return r
}

// readChain mounts coalescing and caching, in that order, so concurrent
// cold reads collapse before the backend is consulted.
func (s *server) readChain(r chi.Router, ttl time.Duration) {
	r.Use(middleware.Dedup(s.tracker, s.logger))
	r.Use(middleware.Cache(s.backend, ttl, s.logger))
}
