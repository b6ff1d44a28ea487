package repomanager

import (
	"context"
	"database/sql"

	"github.com/avendale/dataroom/internal/dbx"
	"github.com/avendale/dataroom/internal/server/repositories/accesshandles"
	"github.com/avendale/dataroom/internal/server/repositories/auditlog"
	"github.com/avendale/dataroom/internal/server/repositories/documents"
	"github.com/avendale/dataroom/internal/server/repositories/ndasignatures"
	"github.com/avendale/dataroom/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Documents(db dbx.DBTX) documents.Repository
	NDASignatures(db dbx.DBTX) ndasignatures.Repository
	AuditLog(db dbx.DBTX) auditlog.Repository
	AccessHandles(db dbx.DBTX) accesshandles.Repository
	Users(db dbx.DBTX) users.Repository
}
