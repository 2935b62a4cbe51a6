package cache

import (
	"time"
)

// Entry is a single value held by the in-process Store.
type Entry struct {
	// Key is the derived request key (see CacheKey.String)
	Key string

	// Value is the opaque payload, usually an encoded HTTP response
	Value []byte

	// ExpiresAt is insertion time + TTL. The entry is absent once now is past it.
	ExpiresAt time.Time

	// LastAccessedAt is refreshed on every successful read and drives eviction order
	LastAccessedAt time.Time
}

// IsExpired returns true if the entry has expired.
func (e *Entry) IsExpired() bool {
	return e.expiredAt(time.Now())
}

func (e *Entry) expiredAt(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// TTL returns the time until expiration.
// Returns 0 if already expired.
func (e *Entry) TTL() time.Duration {
	ttl := time.Until(e.ExpiresAt)
	if ttl < 0 {
		return 0
	}
	return ttl
}
