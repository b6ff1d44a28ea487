// Package ndasignatures declares the repository contract for the one-time
// NDA signing ledger.
package ndasignatures

import (
	"context"

	"github.com/avendale/dataroom/internal/server/models"
)

// Repository defines operations for recording and querying NDA signatures.
type Repository interface {
	// Insert stores sig iff no signature exists for sig.UserID yet, and
	// reports whether the row was inserted. The insert-if-absent must be
	// atomic: two concurrent inserts for one user yield exactly one row.
	Insert(ctx context.Context, sig *models.NDASignature) (bool, error)

	// GetByUserID returns the signature for userID.
	// Implementations should return a not-found error when none exists.
	GetByUserID(ctx context.Context, userID string) (*models.NDASignature, error)

	// List returns all signatures, newest first.
	List(ctx context.Context) ([]*models.NDASignature, error)

	// DeleteByUserID removes the signature for userID. Deleting an absent
	// record returns a not-found error so the admin surface can report it.
	DeleteByUserID(ctx context.Context, userID string) error
}
