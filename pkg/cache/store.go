package cache

import (
	"container/list"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"
)

const (
	// DefaultMaxSize is the store capacity used when none is configured
	DefaultMaxSize = 1000

	// DefaultStoreTTL is the store TTL used when none is configured
	DefaultStoreTTL = 5 * time.Minute

	// DefaultSweepInterval is how often expired entries are purged
	DefaultSweepInterval = 60 * time.Second
)

var (
	// ErrCacheMiss indicates the requested key was not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")

	// ErrClosed is returned by mutating operations after Close
	ErrClosed = errors.New("cache is closed")
)

// StoreConfig controls capacity, default TTL and background sweep of a Store.
type StoreConfig struct {
	// MaxSize is the maximum number of live entries (default: DefaultMaxSize)
	MaxSize int

	// DefaultTTL applies when Set is called without a TTL (default: DefaultStoreTTL)
	DefaultTTL time.Duration

	// SweepInterval is the period of the expired-entry sweep (default: DefaultSweepInterval)
	SweepInterval time.Duration
}

// Stats is a point-in-time snapshot used for health reporting.
// In JSON the TTL is written as a duration string ("5m0s") plus ttlSeconds.
type Stats struct {
	Backend BackendType   `json:"backend"`
	Size    int           `json:"size"`
	MaxSize int           `json:"maxSize"`
	TTL     time.Duration `json:"-"`
}

type statsJSON struct {
	Backend    BackendType `json:"backend"`
	Size       int         `json:"size"`
	MaxSize    int         `json:"maxSize"`
	TTL        string      `json:"ttl"`
	TTLSeconds float64     `json:"ttlSeconds"`
}

// MarshalJSON implements json.Marshaler.
func (s Stats) MarshalJSON() ([]byte, error) {
	return json.Marshal(statsJSON{
		Backend:    s.Backend,
		Size:       s.Size,
		MaxSize:    s.MaxSize,
		TTL:        s.TTL.String(),
		TTLSeconds: s.TTL.Seconds(),
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Stats) UnmarshalJSON(data []byte) error {
	var raw statsJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*s = Stats{Backend: raw.Backend, Size: raw.Size, MaxSize: raw.MaxSize}
	if raw.TTL != "" {
		ttl, err := time.ParseDuration(raw.TTL)
		if err != nil {
			return fmt.Errorf("stats ttl: %w", err)
		}
		s.TTL = ttl
	}
	return nil
}

// Store is a bounded, concurrency-safe in-process key/value store with
// per-entry expiry and least-recently-accessed eviction.
//
// The list front holds the most recently accessed entry, the back the least.
// Store owns its sweep goroutine; call Close to stop it.
type Store struct {
	mu sync.Mutex

	maxSize    int
	defaultTTL time.Duration
	items      map[string]*list.Element
	lru        *list.List

	sweepEvery time.Duration
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	closed     bool
}

// NewStore creates a store and starts its background sweep.
func NewStore(cfg StoreConfig) *Store {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultMaxSize
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = DefaultStoreTTL
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Store{
		maxSize:    cfg.MaxSize,
		defaultTTL: cfg.DefaultTTL,
		items:      make(map[string]*list.Element),
		lru:        list.New(),
		sweepEvery: cfg.SweepInterval,
		cancel:     cancel,
	}

	s.wg.Add(1)
	go s.sweepLoop(ctx)

	return s
}

// Get returns the value for key if present and unexpired.
// An expired entry is removed and reported as a miss.
func (s *Store) Get(key string) ([]byte, bool) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, false
	}

	el, ok := s.items[key]
	if !ok {
		return nil, false
	}

	e := el.Value.(*Entry)
	if e.expiredAt(now) {
		s.removeLocked(el)
		CacheExpirations.WithLabelValues("lazy").Inc()
		return nil, false
	}

	e.LastAccessedAt = now
	s.lru.MoveToFront(el)
	return cloneBytes(e.Value), true
}

// Set inserts or overwrites key. A ttl <= 0 uses the store default.
// Inserting a new key into a full store first evicts the least recently
// accessed entry.
func (s *Store) Set(key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	if el, ok := s.items[key]; ok {
		e := el.Value.(*Entry)
		e.Value = cloneBytes(value)
		e.ExpiresAt = now.Add(ttl)
		e.LastAccessedAt = now
		s.lru.MoveToFront(el)
		return nil
	}

	if len(s.items) >= s.maxSize {
		s.evictLocked()
	}

	e := &Entry{
		Key:            key,
		Value:          cloneBytes(value),
		ExpiresAt:      now.Add(ttl),
		LastAccessedAt: now,
	}
	s.items[key] = s.lru.PushFront(e)
	CacheEntries.Set(float64(len(s.items)))

	return nil
}

// Delete removes key if present. Deleting a missing key is not an error.
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	if el, ok := s.items[key]; ok {
		s.removeLocked(el)
	}
	return nil
}

// Clear drops all entries.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	s.items = make(map[string]*list.Element)
	s.lru.Init()
	CacheEntries.Set(0)
	return nil
}

// Len returns the number of stored entries, including expired entries not yet purged.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Keys returns keys in most- to least-recently accessed order.
func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, s.lru.Len())
	for el := s.lru.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(*Entry).Key)
	}
	return out
}

// Stats returns a snapshot of size, capacity and default TTL.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Stats{
		Backend: BackendMemory,
		Size:    len(s.items),
		MaxSize: s.maxSize,
		TTL:     s.defaultTTL,
	}
}

// Close stops the background sweep. It is safe to call multiple times.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	return nil
}

// evictLocked removes the least recently accessed entry.
func (s *Store) evictLocked() {
	el := s.lru.Back()
	if el == nil {
		return
	}
	s.removeLocked(el)
	CacheEvictions.Inc()
}

func (s *Store) removeLocked(el *list.Element) {
	e := el.Value.(*Entry)
	delete(s.items, e.Key)
	s.lru.Remove(el)
	CacheEntries.Set(float64(len(s.items)))
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
