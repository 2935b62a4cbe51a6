package upstream

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"
)

// Proxy is the terminal handler of the read chain: it relays each request to
// the upstream API and writes the upstream response back unchanged.
type Proxy struct {
	client *Client
	logger zerolog.Logger
}

// NewProxy creates a proxy handler backed by client.
func NewProxy(client *Client, logger zerolog.Logger) *Proxy {
	if client == nil {
		panic("upstream client cannot be nil")
	}
	return &Proxy{client: client, logger: logger}
}

// ServeHTTP implements http.Handler.
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp, err := p.client.Forward(r.Context(), r)
	if err != nil {
		if r.Context().Err() != nil {
			// Client went away; nobody to answer.
			return
		}
		p.logger.Warn().Err(err).Str("path", r.URL.Path).Str("method", r.Method).Msg("Upstream unavailable")
		writeJSONError(w, http.StatusBadGateway, "upstream unavailable")
		return
	}

	dst := w.Header()
	for key, values := range resp.Header {
		dst[key] = append([]string(nil), values...)
	}
	w.WriteHeader(resp.StatusCode)
	if r.Method != http.MethodHead && len(resp.Body) > 0 {
		if _, err := w.Write(resp.Body); err != nil {
			p.logger.Debug().Err(err).Str("path", r.URL.Path).Msg("Failed to write response")
		}
	}
}

// writeJSONError writes the {"success": false, "error": msg} envelope.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   msg,
	})
}
