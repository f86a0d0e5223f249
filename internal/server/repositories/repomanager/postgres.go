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
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// PostgresRepositoryManager vends PostgreSQL-backed repositories.
type PostgresRepositoryManager struct{}

func NewPostgresRepositoryManager() *PostgresRepositoryManager {
	return &PostgresRepositoryManager{}
}

func (m *PostgresRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Stories(db dbx.DBTX) stories.Repository {
	return stories.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Parts(db dbx.DBTX) parts.Repository {
	return parts.NewPostgresRepository(db)
}

// RunMigrations applies the embedded PostgreSQL migrations.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	fsys, err := fs.Sub(migrations.Postgres, "postgres")
	if err != nil {
		return err
	}
	if err := gooseUp(ctx, goose.DialectPostgres, db, fsys); err != nil {
		return fmt.Errorf("migrate postgres: %w", err)
	}
	return nil
}
