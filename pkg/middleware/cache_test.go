package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mutua-muvevi/kenix-commodities-sales-app-sub005/pkg/cache"
	"github.com/rs/zerolog"
)

func TestCacheMissThenHit(t *testing.T) {
	backend := newTestBackend(t)
	next := &countingHandler{body: `{"success":true,"data":[1,2,3]}`}
	handler := Cache(backend, time.Minute, zerolog.Nop())(next)

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/api/products?page=1", nil))

	if got := first.Header().Get(HeaderCache); got != "MISS" {
		t.Errorf("first X-Cache = %q, want MISS", got)
	}
	if got := first.Header().Get(HeaderCacheStatus); got != "apicache; fwd=miss; stored" {
		t.Errorf("first Cache-Status = %q", got)
	}

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/api/products?page=1", nil))

	if got := second.Header().Get(HeaderCache); got != "HIT" {
		t.Errorf("second X-Cache = %q, want HIT", got)
	}
	if got := second.Header().Get(HeaderCacheStatus); got != "apicache; hit" {
		t.Errorf("second Cache-Status = %q", got)
	}
	if second.Code != http.StatusOK {
		t.Errorf("second status = %d, want 200", second.Code)
	}
	if second.Body.String() != first.Body.String() {
		t.Errorf("hit body = %q, want %q", second.Body.String(), first.Body.String())
	}
	if got := second.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("hit Content-Type = %q, want application/json", got)
	}
	if calls := next.calls.Load(); calls != 1 {
		t.Errorf("handler calls = %d, want 1", calls)
	}
}

func TestCacheQueryOrderSharesEntry(t *testing.T) {
	backend := newTestBackend(t)
	next := &countingHandler{body: `{"success":true}`}
	handler := Cache(backend, time.Minute, zerolog.Nop())(next)

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/orders?page=2&limit=50", nil))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/orders?limit=50&page=2", nil))

	if got := rec.Header().Get(HeaderCache); got != "HIT" {
		t.Errorf("X-Cache = %q, want HIT", got)
	}
	if calls := next.calls.Load(); calls != 1 {
		t.Errorf("handler calls = %d, want 1", calls)
	}
}

func TestCacheDistinctQueries(t *testing.T) {
	backend := newTestBackend(t)
	next := &countingHandler{body: `{"success":true}`}
	handler := Cache(backend, time.Minute, zerolog.Nop())(next)

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/orders?page=1", nil))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/orders?page=2", nil))

	if calls := next.calls.Load(); calls != 2 {
		t.Errorf("handler calls = %d, want 2", calls)
	}
}

func TestCacheBypassesWrites(t *testing.T) {
	backend := &failingBackend{err: errors.New("must not be called")}
	next := &countingHandler{status: http.StatusCreated, body: `{"id":7}`}
	handler := Cache(backend, time.Minute, zerolog.Nop())(next)

	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(method, "/api/orders", strings.NewReader(`{}`)))

		if rec.Code != http.StatusCreated {
			t.Errorf("%s status = %d, want 201", method, rec.Code)
		}
		if got := rec.Header().Get(HeaderCache); got != "" {
			t.Errorf("%s X-Cache = %q, want empty", method, got)
		}
	}

	if sets := backend.sets.Load(); sets != 0 {
		t.Errorf("backend Set calls = %d, want 0", sets)
	}
	if calls := next.calls.Load(); calls != 4 {
		t.Errorf("handler calls = %d, want 4", calls)
	}
}

func TestCacheDoesNotStoreFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"not found", http.StatusNotFound, `{"success":false,"error":"Not found"}`},
		{"server error", http.StatusInternalServerError, `{"error":"boom"}`},
		{"soft failure", http.StatusOK, `{"success":false,"message":"validation failed"}`},
		{"error field", http.StatusOK, `{"error":"upstream unavailable"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := newTestBackend(t)
			next := &countingHandler{status: tt.status, body: tt.body}
			handler := Cache(backend, time.Minute, zerolog.Nop())(next)

			for i := 0; i < 2; i++ {
				rec := httptest.NewRecorder()
				handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/items", nil))

				if rec.Code != tt.status {
					t.Errorf("status = %d, want %d", rec.Code, tt.status)
				}
				if rec.Body.String() != tt.body {
					t.Errorf("body = %q, want %q", rec.Body.String(), tt.body)
				}
				if got := rec.Header().Get(HeaderCache); got != "MISS" {
					t.Errorf("X-Cache = %q, want MISS", got)
				}
				if got := rec.Header().Get(HeaderCacheStatus); got != "apicache; fwd=miss" {
					t.Errorf("Cache-Status = %q, want apicache; fwd=miss", got)
				}
			}

			if calls := next.calls.Load(); calls != 2 {
				t.Errorf("handler calls = %d, want 2", calls)
			}
			if n := backend.Store().Len(); n != 0 {
				t.Errorf("store Len() = %d, want 0", n)
			}
		})
	}
}

func TestCacheBackendErrorServesUncached(t *testing.T) {
	backend := &failingBackend{err: errors.New("connection refused")}
	next := &countingHandler{body: `{"success":true}`}
	handler := Cache(backend, time.Minute, zerolog.Nop())(next)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/items", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != `{"success":true}` {
		t.Errorf("body = %q", rec.Body.String())
	}
	if got := rec.Header().Get(HeaderCacheStatus); got != "apicache; fwd=bypass" {
		t.Errorf("Cache-Status = %q, want apicache; fwd=bypass", got)
	}
	if sets := backend.sets.Load(); sets != 0 {
		t.Errorf("backend Set calls = %d, want 0", sets)
	}
}

func TestCacheStoreErrorStillServes(t *testing.T) {
	backend := &missThenFailBackend{}
	next := &countingHandler{body: `{"success":true}`}
	handler := Cache(backend, time.Minute, zerolog.Nop())(next)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/items", nil))

	if rec.Code != http.StatusOK || rec.Body.String() != `{"success":true}` {
		t.Errorf("response = %d %q", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get(HeaderCacheStatus); got != "apicache; fwd=miss" {
		t.Errorf("Cache-Status = %q, want apicache; fwd=miss", got)
	}
}

// missThenFailBackend misses every lookup and fails every write.
type missThenFailBackend struct{ failingBackend }

func (b *missThenFailBackend) Get(context.Context, string) ([]byte, error) {
	return nil, cache.ErrCacheMiss
}

func (b *missThenFailBackend) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("write failed")
}

func TestCacheDropsCorruptEntry(t *testing.T) {
	backend := newTestBackend(t)
	key := cache.CacheKey{Endpoint: "/api/items"}.String()
	if err := backend.Set(context.Background(), key, []byte("garbage"), time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	next := &countingHandler{body: `{"success":true}`}
	handler := Cache(backend, time.Minute, zerolog.Nop())(next)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/items", nil))

	if got := rec.Header().Get(HeaderCache); got != "MISS" {
		t.Errorf("X-Cache = %q, want MISS", got)
	}
	if calls := next.calls.Load(); calls != 1 {
		t.Errorf("handler calls = %d, want 1", calls)
	}

	// The corrupt value was replaced by the fresh response.
	data, err := backend.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if _, err := decodeResponse(data); err != nil {
		t.Errorf("stored entry not decodable: %v", err)
	}
}

func TestCacheEntryExpires(t *testing.T) {
	backend := newTestBackend(t)
	next := &countingHandler{body: `{"success":true}`}
	handler := Cache(backend, 50*time.Millisecond, zerolog.Nop())(next)

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/items", nil))
	time.Sleep(100 * time.Millisecond)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/items", nil))

	if got := rec.Header().Get(HeaderCache); got != "MISS" {
		t.Errorf("X-Cache after expiry = %q, want MISS", got)
	}
	if calls := next.calls.Load(); calls != 2 {
		t.Errorf("handler calls = %d, want 2", calls)
	}
}

func TestCacheNilBackendPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Cache(nil) did not panic")
		}
	}()
	Cache(nil, time.Minute, zerolog.Nop())
}

func TestCacheHeadNeverStores(t *testing.T) {
	backend := newTestBackend(t)
	next := &countingHandler{body: `{"success":true}`}
	handler := Cache(backend, time.Minute, zerolog.Nop())(next)

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodHead, "/api/items", nil))
	if n := backend.Store().Len(); n != 0 {
		t.Fatalf("store Len() after HEAD = %d, want 0", n)
	}

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/items", nil))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodHead, "/api/items", nil))
	if got := rec.Header().Get(HeaderCache); got != "HIT" {
		t.Errorf("HEAD after GET X-Cache = %q, want HIT", got)
	}
	if calls := next.calls.Load(); calls != 2 {
		t.Errorf("handler calls = %d, want 2", calls)
	}
}

func TestCacheDistinctRequestsNeverShareEntries(t *testing.T) {
	pairs := []struct {
		first, second string
	}{
		{"/api/items?tag=a,b", "/api/items?tag=a&tag=b"},
		{"/api/items?x=1", "/api/items:x=1"},
		{"/api/items?a=b%3Dc", "/api/items?a%3Db=c"},
		{"/api/items", "/api/items/"},
	}

	for _, p := range pairs {
		backend := newTestBackend(t)
		echo := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(r.URL.RequestURI()))
		})
		handler := Cache(backend, time.Minute, zerolog.Nop())(echo)

		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p.first, nil))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, p.second, nil))

		if got := rec.Header().Get(HeaderCache); got != "MISS" {
			t.Errorf("%s after %s: X-Cache = %q, want MISS", p.second, p.first, got)
		}
		if rec.Body.String() != p.second {
			t.Errorf("%s after %s: body = %q", p.second, p.first, rec.Body.String())
		}
	}
}
