package documents

import (
	"context"

	"github.com/avendale/dataroom/internal/server/models"
)

// Repository defines the query patterns the disclosure gateway and the admin
// surface need for document metadata.
type Repository interface {
	Create(ctx context.Context, doc *models.Document) (*models.Document, error)
	GetByID(ctx context.Context, id string) (*models.Document, error)
	List(ctx context.Context) ([]*models.Document, error)
	ListByCategory(ctx context.Context, category string) ([]*models.Document, error)
	// Update persists the full row. Updating an absent document returns a
	// not-found error.
	Update(ctx context.Context, doc *models.Document) error
	// Delete removes the metadata row. Deleting an absent document returns a
	// not-found error.
	Delete(ctx context.Context, id string) error
}
