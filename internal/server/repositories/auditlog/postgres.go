package auditlog

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/avendale/dataroom/internal/dbx"
	"github.com/avendale/dataroom/internal/server/models"
)

const defaultQueryLimit = 100

// PostgresRepository implements the append-only audit trail over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Insert appends one entry.
func (r *PostgresRepository) Insert(ctx context.Context, entry *models.AuditEntry) error {
	query := `
		INSERT INTO audit_log (id, user_id, document_id, subject, action, ip, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if _, err := r.db.ExecContext(ctx, query,
		entry.ID, entry.UserID, entry.DocumentID, entry.Subject, entry.Action, entry.IP, entry.CreatedAt); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Query returns entries matching the filter, newest first. Empty filter
// fields are ignored by the predicate.
func (r *PostgresRepository) Query(ctx context.Context, filter Filter) ([]*models.AuditEntry, error) {
	query := `
		SELECT id, user_id, document_id, subject, action, ip, created_at
		FROM audit_log
		WHERE ($1 = '' OR user_id = $1)
			AND ($2 = '' OR document_id = $2)
			AND ($3 = '' OR action = $3)
		ORDER BY created_at DESC
		LIMIT $4
	`
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultQueryLimit
	}
	rows, err := r.db.QueryContext(ctx, query, filter.UserID, filter.DocumentID, filter.Action, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.AuditEntry
	for rows.Next() {
		var entry models.AuditEntry
		var documentID sql.NullString
		if err := rows.Scan(
			&entry.ID, &entry.UserID, &documentID, &entry.Subject, &entry.Action, &entry.IP, &entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		if documentID.Valid {
			s := documentID.String
			entry.DocumentID = &s
		}
		result = append(result, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
