package accesshandles

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/avendale/dataroom/internal/common"
	"github.com/avendale/dataroom/internal/dbx"
	"github.com/avendale/dataroom/internal/server/models"
)

// PostgresRepository implements handle storage over a dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new handle row.
func (r *PostgresRepository) Create(ctx context.Context, handle *models.AccessHandle) error {
	query := `
		INSERT INTO access_handles (id, token, user_id, document_id)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := r.db.ExecContext(ctx, query,
		handle.ID, handle.Token, handle.UserID, handle.DocumentID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// GetByToken returns the handle row for the given token string.
// If not found, it returns common.ErrNotFound.
func (r *PostgresRepository) GetByToken(ctx context.Context, token string) (*models.AccessHandle, error) {
	query := `
		SELECT id, token, user_id, document_id, created_at
		FROM access_handles
		WHERE token = $1
	`
	handle := &models.AccessHandle{}
	err := r.db.QueryRowContext(ctx, query, token).Scan(
		&handle.ID, &handle.Token, &handle.UserID, &handle.DocumentID, &handle.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return handle, nil
}

// DeleteByDocumentID removes all handles referencing documentID.
func (r *PostgresRepository) DeleteByDocumentID(ctx context.Context, documentID string) error {
	query := `
		DELETE FROM access_handles
		WHERE document_id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, documentID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
