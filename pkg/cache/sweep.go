package cache

import (
	"context"
	"time"
)

// sweepLoop periodically removes expired entries that are never read again.
func (s *Store) sweepLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.sweep(now)
		}
	}
}

// sweep removes every entry expired at now and returns how many were removed.
func (s *Store) sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for el := s.lru.Back(); el != nil; {
		prev := el.Prev()
		if el.Value.(*Entry).expiredAt(now) {
			s.removeLocked(el)
			removed++
		}
		el = prev
	}
	if removed > 0 {
		CacheExpirations.WithLabelValues("sweep").Add(float64(removed))
	}
	return removed
}
