// Package auditlog declares the repository contract for the append-only
// audit trail. There are deliberately no update or delete operations.
package auditlog

import (
	"context"

	"github.com/avendale/dataroom/internal/server/models"
)

// Filter narrows a Query. Empty string fields match everything; Limit <= 0
// falls back to the repository default.
type Filter struct {
	UserID     string
	DocumentID string
	Action     string
	Limit      int
}

// Repository appends and queries audit entries.
type Repository interface {
	Insert(ctx context.Context, entry *models.AuditEntry) error
	Query(ctx context.Context, filter Filter) ([]*models.AuditEntry, error)
}
