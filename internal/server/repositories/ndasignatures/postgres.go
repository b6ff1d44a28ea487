package ndasignatures

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/avendale/dataroom/internal/common"
	"github.com/avendale/dataroom/internal/dbx"
	"github.com/avendale/dataroom/internal/server/models"
)

// PostgresRepository implements the signing ledger over a dbx.DBTX
// (*sql.DB or *sql.Tx). The one-signature-per-user invariant rests on the
// unique constraint of the user_id column, not on application checks.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const signatureColumns = `id, user_id, name, email, signature_data, nda_version, text_hash, ip, user_agent, signed_at`

// Insert stores the signature unless one already exists for the user.
// ON CONFLICT DO NOTHING makes the duplicate case return no row, reported as
// inserted=false rather than an error. On success the database-assigned
// signed_at timestamp is read back into sig.
func (r *PostgresRepository) Insert(ctx context.Context, sig *models.NDASignature) (bool, error) {
	query := `
		INSERT INTO nda_signatures (id, user_id, name, email, signature_data, nda_version, text_hash, ip, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id) DO NOTHING
		RETURNING signed_at
	`
	err := r.db.QueryRowContext(ctx, query,
		sig.ID, sig.UserID, sig.Name, sig.Email, sig.SignatureData,
		sig.NDAVersion, sig.TextHash, sig.IP, sig.UserAgent).Scan(&sig.SignedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("db error: %w", err)
	}
	return true, nil
}

// GetByUserID returns the signature row for userID.
// If not found, it returns common.ErrNotFound.
func (r *PostgresRepository) GetByUserID(ctx context.Context, userID string) (*models.NDASignature, error) {
	query := `SELECT ` + signatureColumns + ` FROM nda_signatures WHERE user_id = $1`
	sig := &models.NDASignature{}
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&sig.ID, &sig.UserID, &sig.Name, &sig.Email, &sig.SignatureData,
		&sig.NDAVersion, &sig.TextHash, &sig.IP, &sig.UserAgent, &sig.SignedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return sig, nil
}

// List returns all signatures, newest first.
func (r *PostgresRepository) List(ctx context.Context) ([]*models.NDASignature, error) {
	query := `SELECT ` + signatureColumns + ` FROM nda_signatures ORDER BY signed_at DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.NDASignature
	for rows.Next() {
		var sig models.NDASignature
		if err := rows.Scan(
			&sig.ID, &sig.UserID, &sig.Name, &sig.Email, &sig.SignatureData,
			&sig.NDAVersion, &sig.TextHash, &sig.IP, &sig.UserAgent, &sig.SignedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, &sig)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// DeleteByUserID removes the signature for userID.
func (r *PostgresRepository) DeleteByUserID(ctx context.Context, userID string) error {
	query := `DELETE FROM nda_signatures WHERE user_id = $1`
	res, err := r.db.ExecContext(ctx, query, userID)
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
