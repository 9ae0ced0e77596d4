// Package cache provides the key-value store abstraction shared by the
// session layer and the resilience engine's response cache.
//
// Two backends implement the same contract: a Redis-backed store for normal
// deployments and an in-process store used when Redis is unavailable or
// explicitly disabled. Callers must treat every failure value as
// "unknown/unavailable", never as a semantic negative: a false from Exists
// may mean the key is absent or that the backend is down.
package cache

import "context"

// Store is the capability set both backends satisfy.
type Store interface {
	// Get returns the value for key. The second result is false on a miss
	// or on any backend error.
	Get(ctx context.Context, key string) (string, bool)

	// Set stores value under key. A zero ttl means no expiry.
	Set(ctx context.Context, key, value string, ttlSeconds int) bool

	// Delete removes key. Returns false only on backend error.
	Delete(ctx context.Context, key string) bool

	// Exists reports whether key is present and unexpired.
	Exists(ctx context.Context, key string) bool

	// Increment atomically increments the counter at key, creating it at 1.
	// The second result is false on backend error.
	Increment(ctx context.Context, key string) (int64, bool)

	// Expire sets a TTL on an existing key.
	Expire(ctx context.Context, key string, ttlSeconds int) bool

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) bool

	// Close releases backend resources.
	Close() error
}
