package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/proposalkeeper/internal/dbx"
	"github.com/dmitrijs2005/proposalkeeper/internal/server/repositories/proposals"
	"github.com/dmitrijs2005/proposalkeeper/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a DBTX, so services can run
// the same repository code against the pool or inside a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Proposals(db dbx.DBTX) proposals.Repository
}
