// Package documents provides the PostgreSQL-backed repository for data-room
// document metadata. Visibility lists are stored as JSONB.
package documents

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/avendale/dataroom/internal/common"
	"github.com/avendale/dataroom/internal/dbx"
	"github.com/avendale/dataroom/internal/server/models"
)

// PostgresRepository implements document storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const documentColumns = `id, title, category, status, notes, due_date, storage_key, content_type, size_bytes, content_hash, visibility, created_at, updated_at`

func scanDocument(row interface{ Scan(...any) error }) (*models.Document, error) {
	doc := &models.Document{}
	var dueDate sql.NullTime
	var visibility []byte
	if err := row.Scan(
		&doc.ID, &doc.Title, &doc.Category, &doc.Status, &doc.Notes, &dueDate,
		&doc.StorageKey, &doc.ContentType, &doc.SizeBytes, &doc.ContentHash,
		&visibility, &doc.CreatedAt, &doc.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if dueDate.Valid {
		t := dueDate.Time
		doc.DueDate = &t
	}
	if err := json.Unmarshal(visibility, &doc.Visibility); err != nil {
		return nil, fmt.Errorf("decode visibility: %w", err)
	}
	return doc, nil
}

// Create inserts a document row and returns it with server-assigned
// timestamps populated.
func (r *PostgresRepository) Create(ctx context.Context, doc *models.Document) (*models.Document, error) {
	query := `
		INSERT INTO documents (id, title, category, status, notes, due_date, storage_key, content_type, size_bytes, content_hash, visibility)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at
	`
	visibility, err := json.Marshal(doc.Visibility)
	if err != nil {
		return nil, fmt.Errorf("encode visibility: %w", err)
	}
	err = r.db.QueryRowContext(ctx, query,
		doc.ID, doc.Title, doc.Category, doc.Status, doc.Notes, doc.DueDate,
		doc.StorageKey, doc.ContentType, doc.SizeBytes, doc.ContentHash, visibility,
	).Scan(&doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return doc, nil
}

// GetByID returns the document row for the given id.
// If not found, it returns common.ErrNotFound.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`
	doc, err := scanDocument(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return doc, nil
}

// List returns every document ordered by category, then title.
func (r *PostgresRepository) List(ctx context.Context) ([]*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents ORDER BY category, title`
	return r.queryMany(ctx, query)
}

// ListByCategory returns documents in one category ordered by title.
func (r *PostgresRepository) ListByCategory(ctx context.Context, category string) ([]*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE category = $1 ORDER BY title`
	return r.queryMany(ctx, query, category)
}

func (r *PostgresRepository) queryMany(ctx context.Context, query string, args ...any) ([]*models.Document, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Update persists every mutable column of the row and bumps updated_at.
func (r *PostgresRepository) Update(ctx context.Context, doc *models.Document) error {
	query := `
		UPDATE documents
		SET title = $2, category = $3, status = $4, notes = $5, due_date = $6,
			storage_key = $7, content_type = $8, size_bytes = $9, content_hash = $10,
			visibility = $11, updated_at = now()
		WHERE id = $1
	`
	visibility, err := json.Marshal(doc.Visibility)
	if err != nil {
		return fmt.Errorf("encode visibility: %w", err)
	}
	res, err := r.db.ExecContext(ctx, query,
		doc.ID, doc.Title, doc.Category, doc.Status, doc.Notes, doc.DueDate,
		doc.StorageKey, doc.ContentType, doc.SizeBytes, doc.ContentHash, visibility,
	)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

// Delete removes the metadata row for id.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM documents WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}
