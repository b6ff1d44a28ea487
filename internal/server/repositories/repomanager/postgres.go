// Package repomanager provides a concrete RepositoryManager for PostgreSQL,
// wiring together repository constructors and database migrations (via goose).
package repomanager

import (
	"context"
	"database/sql"

	"github.com/avendale/dataroom/internal/dbx"
	"github.com/avendale/dataroom/internal/server/migrations"
	"github.com/avendale/dataroom/internal/server/repositories/accesshandles"
	"github.com/avendale/dataroom/internal/server/repositories/auditlog"
	"github.com/avendale/dataroom/internal/server/repositories/documents"
	"github.com/avendale/dataroom/internal/server/repositories/ndasignatures"
	"github.com/avendale/dataroom/internal/server/repositories/users"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// PostgresRepositoryManager vends PostgreSQL-backed repository implementations
// and exposes a schema migration hook.
type PostgresRepositoryManager struct{}

// Documents returns a documents.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Documents(db dbx.DBTX) documents.Repository {
	return documents.NewPostgresRepository(db)
}

// NDASignatures returns a ndasignatures.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) NDASignatures(db dbx.DBTX) ndasignatures.Repository {
	return ndasignatures.NewPostgresRepository(db)
}

// AuditLog returns an auditlog.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) AuditLog(db dbx.DBTX) auditlog.Repository {
	return auditlog.NewPostgresRepository(db)
}

// AccessHandles returns an accesshandles.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) AccessHandles(db dbx.DBTX) accesshandles.Repository {
	return accesshandles.NewPostgresRepository(db)
}

// Users returns a users.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewPostgresRepository(db)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the provided database connection.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	goose.SetDialect("pgx")
	if err := gooseUpContext(ctx, db, "."); err != nil {
		return err
	}
	return nil
}

// NewPostgresRepositoryManager constructs a PostgreSQL-backed RepositoryManager.
func NewPostgresRepositoryManager(db *sql.DB) (RepositoryManager, error) {
	return &PostgresRepositoryManager{}, nil
}
