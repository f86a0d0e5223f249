package repomanager

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/relaytale/internal/filex"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// sqlitePragmas are appended to every SQLite DSN.
const sqlitePragmas = "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

// Open connects to the database named by driver and dsn, checks the
// connection and returns the matching RepositoryManager. Migrations are not
// applied here.
func Open(ctx context.Context, driver, dsn string) (*sql.DB, RepositoryManager, error) {
	var (
		db  *sql.DB
		rm  RepositoryManager
		err error
	)

	switch driver {
	case DriverPostgres:
		db, err = sql.Open("pgx", dsn)
		rm = NewPostgresRepositoryManager()
	case DriverSQLite:
		var full string
		full, err = SQLiteDSN(dsn)
		if err != nil {
			return nil, nil, err
		}
		db, err = sql.Open("sqlite", full)
		if err == nil {
			// one writer at a time; transactions queue on the pool
			db.SetMaxOpenConns(1)
		}
		rm = NewSQLiteRepositoryManager()
	default:
		return nil, nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", driver, err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	return db, rm, nil
}

// SQLiteDSN turns a file path (or file: URI) into a DSN with the pragmas the
// schema relies on. For plain paths the parent directory is created.
func SQLiteDSN(dsn string) (string, error) {
	if dsn == "" {
		return "", fmt.Errorf("empty sqlite dsn")
	}

	if !strings.HasPrefix(dsn, "file:") && dsn != ":memory:" {
		path, err := filex.EnsureFileDir(dsn)
		if err != nil {
			return "", err
		}
		dsn = "file:" + path
	}

	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + sqlitePragmas, nil
}
