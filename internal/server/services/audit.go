package services

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/avendale/dataroom/internal/logging"
	"github.com/avendale/dataroom/internal/server/models"
	"github.com/avendale/dataroom/internal/server/repositories/auditlog"
	"github.com/avendale/dataroom/internal/server/repositories/repomanager"
)

var timeNow = time.Now

// AuditService appends to and queries the access trail. Record is
// deliberately side-effect-only: a failure to persist an entry is logged and
// swallowed, because an audit hiccup must never fail the user-facing request
// it describes.
type AuditService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	logger      logging.Logger
}

// NewAuditService constructs an AuditService using repositories and a logger
// acting as the secondary sink for persistence failures.
func NewAuditService(db *sql.DB, m repomanager.RepositoryManager, logger logging.Logger) *AuditService {
	return &AuditService{
		db:          db,
		repomanager: m,
		logger:      logger.With("module", "audit"),
	}
}

// Record appends one entry, filling in the id and timestamp when unset.
// Errors never propagate to the caller.
func (s *AuditService) Record(ctx context.Context, entry *models.AuditEntry) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = timeNow()
	}

	repo := s.repomanager.AuditLog(s.db)
	if err := repo.Insert(ctx, entry); err != nil {
		s.logger.Error(ctx, "audit write failed",
			"error", err, "user_id", entry.UserID, "action", entry.Action)
	}
}

// Query returns entries matching the filter, newest first. The boundary
// restricts this to admins.
func (s *AuditService) Query(ctx context.Context, filter auditlog.Filter) ([]*models.AuditEntry, error) {
	repo := s.repomanager.AuditLog(s.db)
	return repo.Query(ctx, filter)
}
