// Package accesshandles declares the repository contract for long-lived
// opaque document handles. Handles never expire; authorization is re-checked
// on every dereference, so revocation happens through role or document
// changes rather than handle expiry.
package accesshandles

import (
	"context"

	"github.com/avendale/dataroom/internal/server/models"
)

// Repository defines operations for issuing, resolving, and revoking handles.
type Repository interface {
	// Create stores a new handle row.
	Create(ctx context.Context, handle *models.AccessHandle) error

	// GetByToken looks up a handle by its opaque token string.
	// Implementations should return a not-found error when the token is absent.
	GetByToken(ctx context.Context, token string) (*models.AccessHandle, error)

	// DeleteByDocumentID removes every handle referencing a document, used
	// when the document itself is deleted. Removing zero rows is not an error.
	DeleteByDocumentID(ctx context.Context, documentID string) error
}
