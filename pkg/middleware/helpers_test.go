package middleware

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mutua-muvevi/kenix-commodities-sales-app-sub005/pkg/cache"
)

func newTestBackend(t *testing.T) *cache.MemoryBackend {
	t.Helper()
	store := cache.NewStore(cache.StoreConfig{
		MaxSize:       100,
		DefaultTTL:    time.Minute,
		SweepInterval: time.Hour,
	})
	t.Cleanup(func() { store.Close() })
	return cache.NewMemoryBackend(store)
}

// countingHandler answers with a fixed status and body and counts executions.
type countingHandler struct {
	calls  atomic.Int64
	status int
	body   string
	delay  time.Duration
}

func (h *countingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.calls.Add(1)
	if h.delay > 0 {
		time.Sleep(h.delay)
	}
	w.Header().Set("Content-Type", "application/json")
	status := h.status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	w.Write([]byte(h.body))
}

// failingBackend reports err from every operation.
type failingBackend struct {
	err  error
	sets atomic.Int64
}

func (f *failingBackend) Get(context.Context, string) ([]byte, error) { return nil, f.err }
func (f *failingBackend) Set(context.Context, string, []byte, time.Duration) error {
	f.sets.Add(1)
	return f.err
}
func (f *failingBackend) Delete(context.Context, string) error { return f.err }
func (f *failingBackend) Clear(context.Context) error          { return f.err }
func (f *failingBackend) Stats(context.Context) cache.Stats {
	return cache.Stats{Backend: cache.BackendMemory}
}
func (f *failingBackend) Type() cache.BackendType { return cache.BackendMemory }
func (f *failingBackend) Close() error            { return nil }
