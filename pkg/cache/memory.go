package cache

import (
	"context"
	"time"
)

// MemoryBackend adapts a Store to the Backend interface.
type MemoryBackend struct {
	store *Store
}

// NewMemoryBackend wraps store.
func NewMemoryBackend(store *Store) *MemoryBackend {
	if store == nil {
		panic("store cannot be nil")
	}
	return &MemoryBackend{store: store}
}

// Get implements Backend.
func (m *MemoryBackend) Get(_ context.Context, key string) ([]byte, error) {
	value, ok := m.store.Get(key)
	if !ok {
		CacheMisses.WithLabelValues(string(BackendMemory)).Inc()
		return nil, ErrCacheMiss
	}
	CacheHits.WithLabelValues(string(BackendMemory)).Inc()
	return value, nil
}

// Set implements Backend.
func (m *MemoryBackend) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if err := m.store.Set(key, value, ttl); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return err
	}
	return nil
}

// Delete implements Backend.
func (m *MemoryBackend) Delete(_ context.Context, key string) error {
	if err := m.store.Delete(key); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return err
	}
	return nil
}

// Clear implements Backend.
func (m *MemoryBackend) Clear(_ context.Context) error {
	if err := m.store.Clear(); err != nil {
		CacheErrors.WithLabelValues("clear").Inc()
		return err
	}
	return nil
}

// Stats implements Backend.
func (m *MemoryBackend) Stats(_ context.Context) Stats {
	return m.store.Stats()
}

// Type implements Backend.
func (m *MemoryBackend) Type() BackendType {
	return BackendMemory
}

// Close stops the store's background sweep.
func (m *MemoryBackend) Close() error {
	return m.store.Close()
}

// Store returns the underlying store (for testing and diagnostics).
func (m *MemoryBackend) Store() *Store {
	return m.store
}

var _ Backend = (*MemoryBackend)(nil)
