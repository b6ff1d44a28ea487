// Package prefill implements the short-lived nonce store that hands contact
// data from an unauthenticated form to a later authenticated flow. Entries
// live for a configured TTL; reads past expiry delete the entry. Public
// reads are redacted so the handoff cannot be used to harvest PII.
package prefill

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/avendale/dataroom/internal/common"
	"github.com/avendale/dataroom/internal/hashx"
	"github.com/avendale/dataroom/internal/kv"
)

const (
	keyPrefix = "prefill:"
	// nonceBytes yields 256 bits of entropy, 64 hex characters on the wire.
	nonceBytes = 32
	// putAttempts bounds SetNX retries on a nonce collision.
	putAttempts = 3
)

var timeNow = time.Now

// ContactData is what the unauthenticated form submits. Phone and Message
// are optional.
type ContactData struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone,omitempty"`
	Message string `json:"message,omitempty"`
}

// Redacted is the public read shape. EmailDigest is a truncated hash of the
// lowercased email; the raw address never leaves the store this way.
type Redacted struct {
	Name        string    `json:"name"`
	EmailDigest string    `json:"email_digest"`
	SubmittedAt time.Time `json:"submitted_at"`
}

type record struct {
	ContactData
	SubmittedAt time.Time `json:"submitted_at"`
}

// Store maps nonces to contact records inside a kv.Store.
type Store struct {
	kv  kv.Store
	ttl time.Duration
}

// NewStore returns a prefill store with the given entry TTL.
func NewStore(store kv.Store, ttl time.Duration) *Store {
	return &Store{kv: store, ttl: ttl}
}

// Put stores data under a fresh random nonce and returns the nonce. A nonce
// that is already taken (vanishingly unlikely) is retried with a new one.
func (s *Store) Put(ctx context.Context, data ContactData) (string, error) {
	value, err := json.Marshal(record{ContactData: data, SubmittedAt: timeNow()})
	if err != nil {
		return "", fmt.Errorf("encode prefill record: %w", err)
	}

	for i := 0; i < putAttempts; i++ {
		nonce, err := common.MakeRandHexString(nonceBytes)
		if err != nil {
			return "", fmt.Errorf("generate nonce: %w", err)
		}
		stored, err := s.kv.SetNX(ctx, keyPrefix+nonce, value, s.ttl)
		if err != nil {
			return "", fmt.Errorf("store prefill record: %w", err)
		}
		if stored {
			return nonce, nil
		}
	}
	return "", fmt.Errorf("store prefill record: %w", common.ErrInternal)
}

// Get returns the redacted record for nonce. Unknown nonces yield
// common.ErrNotFound. A record found past its expiry is deleted and yields
// common.ErrExpired; callers must render both identically.
func (s *Store) Get(ctx context.Context, nonce string) (*Redacted, error) {
	value, ok, err := s.kv.Get(ctx, keyPrefix+nonce)
	if err != nil {
		return nil, fmt.Errorf("read prefill record: %w", err)
	}
	if !ok {
		return nil, common.ErrNotFound
	}

	var rec record
	if err := json.Unmarshal(value, &rec); err != nil {
		return nil, fmt.Errorf("decode prefill record: %w", err)
	}

	if timeNow().After(rec.SubmittedAt.Add(s.ttl)) {
		_ = s.kv.Delete(ctx, keyPrefix+nonce)
		return nil, common.ErrExpired
	}

	return &Redacted{
		Name:        rec.Name,
		EmailDigest: hashx.EmailDigest(rec.Email),
		SubmittedAt: rec.SubmittedAt,
	}, nil
}
