// Package users provides the PostgreSQL-backed repository for participant
// records. Authentication happens elsewhere; these rows only carry the
// identity and role the engine authorizes against.
package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/avendale/dataroom/internal/common"
	"github.com/avendale/dataroom/internal/dbx"
	"github.com/avendale/dataroom/internal/server/models"
	"github.com/avendale/dataroom/internal/server/roles"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {

	query :=
		`INSERT INTO users (id, name, email, role)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id
		 `

	err := r.db.QueryRowContext(ctx, query,
		user.ID, user.Name, user.Email, user.Role.String()).Scan(&user.ID)

	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query :=
		`SELECT id, name, email, role, created_at FROM users
		 WHERE id = $1
		 `

	user := &models.User{}
	var role string
	err := r.db.QueryRowContext(ctx, query, id).Scan(&user.ID, &user.Name, &user.Email, &role, &user.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	user.Role, err = roles.Parse(role)
	if err != nil {
		return nil, fmt.Errorf("stored role invalid: %w", err)
	}

	return user, nil
}

// UpdateRoleIf performs the conditional role transition in one statement so
// two concurrent promotions cannot both apply.
func (r *PostgresRepository) UpdateRoleIf(ctx context.Context, userID string, from, to roles.Role) (bool, error) {
	query :=
		`UPDATE users SET role = $3
		 WHERE id = $1 AND role = $2
		 `

	res, err := r.db.ExecContext(ctx, query, userID, from.String(), to.String())
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected error: %w", err)
	}
	return n == 1, nil
}
