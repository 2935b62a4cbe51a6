package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Observability headers.
const (
	HeaderResponseTime      = "X-Response-Time"
	HeaderResponseTimestamp = "X-Response-Timestamp"
	HeaderRequestID         = "X-Request-ID"
)

// DefaultSlowThreshold is the duration above which a response is logged as slow.
const DefaultSlowThreshold = time.Second

// Instrument returns middleware that times the wrapped handler.
//
// Every response gets X-Response-Time, X-Response-Timestamp and X-Request-ID.
// Responses slower than slowThreshold are logged as warnings with route,
// method, status, duration and size. Handler panics and errors pass through
// untouched.
func Instrument(slowThreshold time.Duration, logger zerolog.Logger) func(http.Handler) http.Handler {
	if slowThreshold <= 0 {
		slowThreshold = DefaultSlowThreshold
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := r.Header.Get(HeaderRequestID)
			if requestID == "" {
				requestID = uuid.NewString()
			}
			w.Header().Set(HeaderRequestID, requestID)

			tw := &timingWriter{ResponseWriter: w, start: start}
			next.ServeHTTP(tw, r)

			// Handlers that write nothing still get the timing headers, unless
			// the client is gone and nothing should be written on its behalf.
			if !tw.wroteHeader && r.Context().Err() == nil {
				tw.WriteHeader(http.StatusOK)
			}

			duration := time.Since(start)
			route := routePattern(r)
			httpRequestDuration.WithLabelValues(r.Method, route).Observe(duration.Seconds())

			if duration > slowThreshold {
				httpSlowRequestsTotal.WithLabelValues(r.Method, route).Inc()
				logger.Warn().
					Str("route", route).
					Str("path", r.URL.Path).
					Str("method", r.Method).
					Int("status", tw.status).
					Dur("duration", duration).
					Int64("size", tw.size).
					Str("request_id", requestID).
					Str("cache", tw.Header().Get(HeaderCache)).
					Msg("Slow response")
			}
		})
	}
}

// timingWriter stamps timing headers just before the status line goes out
// and counts the bytes written.
type timingWriter struct {
	http.ResponseWriter
	start       time.Time
	status      int
	size        int64
	wroteHeader bool
}

// WriteHeader implements http.ResponseWriter.
func (tw *timingWriter) WriteHeader(statusCode int) {
	if tw.wroteHeader {
		return
	}
	tw.wroteHeader = true
	tw.status = statusCode

	now := time.Now()
	h := tw.ResponseWriter.Header()
	h.Set(HeaderResponseTime, formatDuration(now.Sub(tw.start)))
	h.Set(HeaderResponseTimestamp, now.UTC().Format(time.RFC3339Nano))

	tw.ResponseWriter.WriteHeader(statusCode)
}

// Write implements http.ResponseWriter.
func (tw *timingWriter) Write(b []byte) (int, error) {
	if !tw.wroteHeader {
		tw.WriteHeader(http.StatusOK)
	}
	n, err := tw.ResponseWriter.Write(b)
	tw.size += int64(n)
	return n, err
}

// Flush implements http.Flusher when the underlying writer does.
func (tw *timingWriter) Flush() {
	if !tw.wroteHeader {
		tw.WriteHeader(http.StatusOK)
	}
	if f, ok := tw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (tw *timingWriter) Unwrap() http.ResponseWriter {
	return tw.ResponseWriter
}

func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%.3fms", float64(d)/float64(time.Millisecond))
}

// routePattern prefers the matched chi pattern so metrics do not explode on IDs.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}
