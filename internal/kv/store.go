// Package kv defines the TTL key-value contract shared by the rate limiter
// and the prefill nonce store, with an in-process implementation and a Redis
// one. Both callers only need atomic check-and-set and counter semantics, so
// any backend honoring this interface can be swapped in.
package kv

import (
	"context"
	"time"
)

// Store is a small TTL key-value store.
type Store interface {
	// Get returns the value stored under key. The second return is false
	// when the key is absent or already expired.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// SetNX stores value under key with the given TTL iff the key is absent,
	// and reports whether the value was stored.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Incr atomically increments the counter under key. The first increment
	// starts a window of the given TTL; later increments within the window
	// keep its original expiry. Returns the post-increment count and the
	// window's expiry time.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, time.Time, error)
}
