package middleware

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/mutua-muvevi/kenix-commodities-sales-app-sub005/pkg/cache"
	"github.com/mutua-muvevi/kenix-commodities-sales-app-sub005/pkg/dedup"
	"github.com/rs/zerolog"
)

// HeaderCoalesced is set to "true" on responses delivered to more than one caller.
const HeaderCoalesced = "X-Coalesced"

// Dedup returns middleware that collapses concurrent identical read requests
// into one execution of next. Every waiter receives the same captured
// response. Requests with side effects bypass the tracker.
func Dedup(tracker *dedup.Tracker, logger zerolog.Logger) func(http.Handler) http.Handler {
	if tracker == nil {
		panic("dedup tracker cannot be nil")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !readOnly(r) {
				next.ServeHTTP(w, r)
				return
			}

			// HEAD and GET are coalesced separately so a HEAD never decides a GET body.
			key := r.Method + " " + cache.KeyFromRequest(r).String()

			ctx := withRouteSnapshot(r.Context())
			v, shared, err := tracker.Coalesce(ctx, key, func(ctx context.Context) (any, error) {
				return capture(next, r.WithContext(ctx)), nil
			})
			if err != nil {
				if r.Context().Err() != nil {
					logger.Debug().Err(err).Str("key", key).Msg("Caller left before coalesced result")
					return
				}
				logger.Error().Err(err).Str("key", key).Msg("Coalesced request failed")
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}

			if shared {
				w.Header().Set(HeaderCoalesced, "true")
			}
			v.(*Response).replay(w)
		})
	}
}

// withRouteSnapshot gives ctx a private copy of chi's route context. chi
// recycles the original once the first caller's ServeHTTP returns, while the
// coalesced computation may still be reading URL params from it.
func withRouteSnapshot(ctx context.Context) context.Context {
	rctx := chi.RouteContext(ctx)
	if rctx == nil {
		return ctx
	}

	snap := chi.NewRouteContext()
	snap.Routes = rctx.Routes
	snap.RoutePath = rctx.RoutePath
	snap.RouteMethod = rctx.RouteMethod
	snap.URLParams.Keys = append([]string(nil), rctx.URLParams.Keys...)
	snap.URLParams.Values = append([]string(nil), rctx.URLParams.Values...)
	snap.RoutePatterns = append([]string(nil), rctx.RoutePatterns...)

	return context.WithValue(ctx, chi.RouteCtxKey, snap)
}
