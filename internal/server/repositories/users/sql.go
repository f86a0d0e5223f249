package users

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/relaytale/internal/common"
	"github.com/dmitrijs2005/relaytale/internal/dbx"
	"github.com/dmitrijs2005/relaytale/internal/server/models"
	"github.com/georgysavva/scany/v2/sqlscan"
)

const userColumns = `id, external_id, refresh_credential, date_created`

// SQLRepository implements Repository for PostgreSQL and SQLite.
type SQLRepository struct {
	db      dbx.DBTX
	dialect dbx.Dialect
}

func NewPostgresRepository(db dbx.DBTX) *SQLRepository {
	return &SQLRepository{db: db, dialect: dbx.Postgres}
}

func NewSQLiteRepository(db dbx.DBTX) *SQLRepository {
	return &SQLRepository{db: db, dialect: dbx.SQLite}
}

func (r *SQLRepository) Create(ctx context.Context, user *models.User) error {
	query := r.dialect.Rebind(
		`INSERT INTO users (id, external_id, refresh_credential, date_created)
		 VALUES ($1, $2, $3, $4)`)

	_, err := r.db.ExecContext(ctx, query, user.ID, user.ExternalID, user.RefreshCredential, user.DateCreated)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrConflict
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *SQLRepository) Get(ctx context.Context, id string) (*models.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *SQLRepository) GetByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE external_id = $1`, externalID)
}

func (r *SQLRepository) UpdateRefreshCredential(ctx context.Context, id string, sealed []byte) error {
	query := r.dialect.Rebind(`UPDATE users SET refresh_credential = $1 WHERE id = $2`)

	res, err := r.db.ExecContext(ctx, query, sealed, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return dbx.RowsAffectedOne(res, common.ErrorNotFound)
}

func (r *SQLRepository) getOne(ctx context.Context, query string, args ...any) (*models.User, error) {
	user := &models.User{}
	if err := sqlscan.Get(ctx, r.db, user, r.dialect.Rebind(query), args...); err != nil {
		if sqlscan.NotFound(err) || dbx.IsMalformedKey(err) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}
