package repomanager

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/relaytale/internal/server/repositories/parts"
	"github.com/dmitrijs2005/relaytale/internal/server/repositories/stories"
	"github.com/dmitrijs2005/relaytale/internal/server/repositories/users"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDB(t *testing.T) *sql.DB {
	t.Helper()
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestFactories_ReturnDialectRepos(t *testing.T) {
	db := newDB(t)

	for name, m := range map[string]RepositoryManager{
		"postgres": NewPostgresRepositoryManager(),
		"sqlite":   NewSQLiteRepositoryManager(),
	} {
		t.Run(name, func(t *testing.T) {
			assert.IsType(t, &users.SQLRepository{}, m.Users(db))
			assert.IsType(t, &stories.SQLRepository{}, m.Stories(db))
			assert.IsType(t, &parts.SQLRepository{}, m.Parts(db))
		})
	}
}

func stubGoose(t *testing.T, fn func(ctx context.Context, dialect goose.Dialect, db *sql.DB, fsys fs.FS) error) {
	t.Helper()
	orig := gooseUp
	gooseUp = fn
	t.Cleanup(func() { gooseUp = orig })
}

func TestRunMigrations_UsesDialectAndEmbeddedFiles(t *testing.T) {
	tests := []struct {
		name    string
		m       RepositoryManager
		dialect goose.Dialect
	}{
		{"postgres", NewPostgresRepositoryManager(), goose.DialectPostgres},
		{"sqlite", NewSQLiteRepositoryManager(), goose.DialectSQLite3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stubGoose(t, func(_ context.Context, dialect goose.Dialect, _ *sql.DB, fsys fs.FS) error {
				if dialect != tt.dialect {
					return errors.New("unexpected dialect")
				}
				files, err := fs.Glob(fsys, "*.sql")
				if err != nil {
					return err
				}
				if len(files) == 0 {
					return errors.New("no migrations found")
				}
				return nil
			})

			require.NoError(t, tt.m.RunMigrations(context.Background(), newDB(t)))
		})
	}
}

func TestRunMigrations_Error(t *testing.T) {
	stubGoose(t, func(context.Context, goose.Dialect, *sql.DB, fs.FS) error {
		return errors.New("boom")
	})

	err := NewPostgresRepositoryManager().RunMigrations(context.Background(), newDB(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestSQLiteDSN(t *testing.T) {
	dir := t.TempDir()

	got, err := SQLiteDSN(filepath.Join(dir, "data", "stories.db"))
	require.NoError(t, err)
	assert.Equal(t, "file:"+filepath.Join(dir, "data", "stories.db")+"?"+sqlitePragmas, got)

	got, err = SQLiteDSN("file:test.db?cache=shared")
	require.NoError(t, err)
	assert.Equal(t, "file:test.db?cache=shared&"+sqlitePragmas, got)

	got, err = SQLiteDSN(":memory:")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(got, ":memory:?"))

	_, err = SQLiteDSN("")
	require.Error(t, err)
}

func TestOpen_SQLiteMigratesSchema(t *testing.T) {
	ctx := context.Background()

	db, rm, err := Open(ctx, DriverSQLite, filepath.Join(t.TempDir(), "relaytale.db"))
	require.NoError(t, err)
	defer db.Close()

	require.IsType(t, &SQLiteRepositoryManager{}, rm)
	require.NoError(t, rm.RunMigrations(ctx, db))
	require.NoError(t, rm.RunMigrations(ctx, db), "migrations are idempotent")

	for _, table := range []string{"users", "stories", "parts"} {
		var name string
		err := db.QueryRowContext(ctx,
			`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		require.NoError(t, err, table)
	}
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, _, err := Open(context.Background(), "mysql", "dsn")
	require.Error(t, err)
}
