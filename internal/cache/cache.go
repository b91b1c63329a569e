// Package cache provides the key-value cache abstraction used for
// authorization lookups, pricing table fan-out, and short-lived query
// results: a single Service interface backed by either an in-process
// map or Redis, selected by configuration (spec.md §4.6).
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get and GetCounter when key is absent or
// expired.
var ErrNotFound = errors.New("cache: key not found")

// Service is the cache surface every backend implements identically so
// callers never branch on which one is configured.
type Service interface {
	// Get returns the raw bytes stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key with the given TTL. A zero TTL means
	// no expiration.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Exists reports whether key is present and unexpired.
	Exists(ctx context.Context, key string) (bool, error)

	// Incr atomically increments the integer counter stored at key by
	// delta, creating it at 0 first if absent, and returns the new
	// value. ttl is applied only when the key is created.
	Incr(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error)

	// GetCounter reads a counter's current value without incrementing it.
	GetCounter(ctx context.Context, key string) (int64, error)

	// TTL returns the remaining time to live for key, or zero if key
	// has no expiration. Returns ErrNotFound if key is absent.
	TTL(ctx context.Context, key string) (time.Duration, error)

	// DeletePattern removes every key matching a glob pattern (e.g.
	// "authz:project:42:*") and returns the number removed.
	DeletePattern(ctx context.Context, pattern string) (int, error)

	// HealthCheck verifies the backend is reachable.
	HealthCheck(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}
