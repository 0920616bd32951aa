package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/cofrapauth/internal/dbx"
	"github.com/dmitrijs2005/cofrapauth/internal/server/repositories/credentials"
)

// RepositoryManager vends repositories bound to a connection or transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Credentials(db dbx.DBTX) credentials.Repository
}
