// Package ratelimit implements the fixed-window request limiter the
// disclosure gateway consults once per authorized request.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/avendale/dataroom/internal/kv"
)

const keyPrefix = "ratelimit:"

// anonymousIdentity buckets requests that carry no identity at all.
const anonymousIdentity = "anonymous"

// Decision is the outcome of one check-and-consume call.
type Decision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Limiter counts requests per identity inside fixed windows. The counter
// lives in a kv.Store so multiple server processes can share one budget.
type Limiter struct {
	store  kv.Store
	limit  int
	window time.Duration
}

// New returns a limiter allowing limit requests per window.
func New(store kv.Store, limit int, window time.Duration) *Limiter {
	return &Limiter{store: store, limit: limit, window: window}
}

// CheckAndConsume atomically consumes one unit of the identity's window and
// reports whether the request is allowed. The increment happens in a single
// store operation so two concurrent requests can never both observe the last
// free slot.
//
// When the backing store fails the limiter fails open: the returned decision
// allows the request and the error is handed to the caller to log. A broken
// counter must not take the read path down with it.
func (l *Limiter) CheckAndConsume(ctx context.Context, identity string) (Decision, error) {
	if identity == "" {
		identity = anonymousIdentity
	}

	count, resetAt, err := l.store.Incr(ctx, keyPrefix+identity, l.window)
	if err != nil {
		return Decision{Allowed: true, Remaining: l.limit}, fmt.Errorf("rate limit counter: %w", err)
	}

	remaining := l.limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	if count > int64(l.limit) {
		return Decision{Allowed: false, Remaining: 0, ResetAt: resetAt}, nil
	}
	return Decision{Allowed: true, Remaining: remaining, ResetAt: resetAt}, nil
}
