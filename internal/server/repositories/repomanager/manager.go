package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/memestore/internal/dbx"
	"github.com/dmitrijs2005/memestore/internal/server/repositories/memes"
	"github.com/dmitrijs2005/memestore/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/memestore/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to either the pool or a
// transaction, so services can pick the scope per operation.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
	Memes(db dbx.DBTX) memes.Repository
}
