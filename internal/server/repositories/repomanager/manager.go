// Package repomanager vends repository implementations for the configured
// database backend and applies its schema migrations with goose.
package repomanager

import (
	"context"
	"database/sql"
	"io/fs"

	"github.com/dmitrijs2005/relaytale/internal/dbx"
	"github.com/dmitrijs2005/relaytale/internal/server/repositories/parts"
	"github.com/dmitrijs2005/relaytale/internal/server/repositories/stories"
	"github.com/dmitrijs2005/relaytale/internal/server/repositories/users"
	"github.com/pressly/goose/v3"
)

// RepositoryManager binds repositories to a DBTX, so services can use the
// same constructors for plain connections and transactions.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Stories(db dbx.DBTX) stories.Repository
	Parts(db dbx.DBTX) parts.Repository
}

// gooseUp is a seam for testing migrations.
var gooseUp = func(ctx context.Context, dialect goose.Dialect, db *sql.DB, fsys fs.FS) error {
	p, err := goose.NewProvider(dialect, db, fsys)
	if err != nil {
		return err
	}
	_, err = p.Up(ctx)
	return err
}
