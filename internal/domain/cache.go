package domain

import (
	"context"
	"time"
)

// Cache defines the interface for caching profile and transaction
// reads in the serving layer. Score results are deliberately never
// cached: every scoring call recomputes from scratch, and consumers
// may rely on that.
type Cache interface {
	// Get retrieves a value from cache.
	// Returns nil, nil if key not found.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in cache with expiration.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from cache.
	Delete(ctx context.Context, key string) error

	// GetProfile retrieves a cached profile snapshot.
	GetProfile(ctx context.Context, userID string) (*UserProfile, error)

	// SetProfile caches a profile snapshot.
	SetProfile(ctx context.Context, userID string, profile *UserProfile, ttl time.Duration) error

	// IncrementCounter atomically increments a counter and returns the
	// new value. Used for per-user request throttling windows.
	IncrementCounter(ctx context.Context, key string, window time.Duration) (int64, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}
