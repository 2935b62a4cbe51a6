package main

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/mutua-muvevi/kenix-commodities-sales-app-sub005/pkg/cache"
)

const adminCachePath = "/admin/cache"

// clearCache drops every cached response.
func (s *server) clearCache(w http.ResponseWriter, r *http.Request) {
	if err := s.backend.Clear(r.Context()); err != nil {
		s.logger.Error().Err(err).Msg("Failed to clear cache")
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": "clear failed"})
		return
	}

	s.logger.Info().Str("backend", string(s.backend.Type())).Msg("Cache cleared")
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// invalidate drops the entry for the API path after /admin/cache, with the
// request's query, e.g. DELETE /admin/cache/api/products?page=2.
func (s *server) invalidate(w http.ResponseWriter, r *http.Request) {
	key := cache.CacheKey{
		Endpoint:    strings.TrimPrefix(r.URL.EscapedPath(), adminCachePath),
		QueryParams: r.URL.Query(),
	}.String()

	if err := s.backend.Delete(r.Context(), key); err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("Failed to invalidate cache entry")
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": "invalidate failed"})
		return
	}

	s.logger.Info().Str("key", key).Msg("Cache entry invalidated")
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "key": key})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
