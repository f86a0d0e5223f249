package repomanager

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"

	"github.com/dmitrijs2005/relaytale/internal/dbx"
	"github.com/dmitrijs2005/relaytale/internal/server/migrations"
	"github.com/dmitrijs2005/relaytale/internal/server/repositories/parts"
	"github.com/dmitrijs2005/relaytale/internal/server/repositories/stories"
	"github.com/dmitrijs2005/relaytale/internal/server/repositories/users"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

// SQLiteRepositoryManager vends SQLite-backed repositories for local runs
// and tests.
type SQLiteRepositoryManager struct{}

func NewSQLiteRepositoryManager() *SQLiteRepositoryManager {
	return &SQLiteRepositoryManager{}
}

func (m *SQLiteRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewSQLiteRepository(db)
}

func (m *SQLiteRepositoryManager) Stories(db dbx.DBTX) stories.Repository {
	return stories.NewSQLiteRepository(db)
}

func (m *SQLiteRepositoryManager) Parts(db dbx.DBTX) parts.Repository {
	return parts.NewSQLiteRepository(db)
}

// RunMigrations applies the embedded SQLite migrations.
func (m *SQLiteRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	fsys, err := fs.Sub(migrations.SQLite, "sqlite")
	if err != nil {
		return err
	}
	if err := gooseUp(ctx, goose.DialectSQLite3, db, fsys); err != nil {
		return fmt.Errorf("migrate sqlite: %w", err)
	}
	return nil
}
