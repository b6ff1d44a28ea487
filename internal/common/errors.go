// Package common defines shared constants and sentinel errors used across
// the data room's layers. Callers should use errors.Is to match these values.
package common

import (
	"errors"
	"fmt"
	"time"
)

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Generic service-level errors.
	ErrInternal        = errors.New("internal error")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")

	// NDA ledger errors.
	ErrNDARequired      = errors.New("nda signature required")
	ErrAlreadySigned    = errors.New("nda already signed")
	ErrInvalidSignature = errors.New("invalid signature payload")
	ErrHashMismatch     = errors.New("nda document hash mismatch")

	// Gateway errors.
	ErrRateLimited          = errors.New("rate limited")
	ErrFileTooLarge         = errors.New("file too large")
	ErrStorageInconsistency = errors.New("storage inconsistency")
	ErrUpstreamTimeout      = errors.New("upstream timeout")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")

	// Prefill nonce errors. An expired entry must be indistinguishable from
	// an unknown one at the HTTP boundary; the distinction exists for
	// diagnostics only.
	ErrExpired = errors.New("expired")
)

// RateLimitedError carries the window reset time alongside the ErrRateLimited
// sentinel so the boundary can emit a Retry-After header.
type RateLimitedError struct {
	ResetAt time.Time
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited until %s", e.ResetAt.Format(time.RFC3339))
}

func (e *RateLimitedError) Unwrap() error { return ErrRateLimited }
