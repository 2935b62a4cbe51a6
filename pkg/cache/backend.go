package cache

import (
	"context"
	"time"
)

// BackendType names the storage behind a Backend.
type BackendType string

const (
	// BackendMemory is the in-process Store.
	BackendMemory BackendType = "memory"

	// BackendRedis is a shared Redis instance.
	BackendRedis BackendType = "redis"
)

// Backend is the get/set/delete contract the middleware depends on.
// Implementations must be safe for concurrent use.
type Backend interface {
	// Get returns the value for key, or ErrCacheMiss if absent or expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key. A ttl <= 0 uses the backend default.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Clear drops every entry owned by this backend.
	Clear(ctx context.Context) error

	// Stats returns a point-in-time snapshot for health reporting.
	Stats(ctx context.Context) Stats

	// Type reports which storage is in use.
	Type() BackendType

	// Close releases resources (stops the sweep, closes connections).
	Close() error
}
