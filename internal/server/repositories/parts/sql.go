package parts

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/relaytale/internal/common"
	"github.com/dmitrijs2005/relaytale/internal/dbx"
	"github.com/dmitrijs2005/relaytale/internal/server/models"
	"github.com/georgysavva/scany/v2/sqlscan"
)

const partColumns = `id, story_id, part_number, part_text, user_id, date_started, date_complete`

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

// Create inserts part. A clash with an existing part number or another open
// part of the same story or user is reported as common.ErrConflict.
func (r *SQLRepository) Create(ctx context.Context, part *models.Part) error {
	query := r.dialect.Rebind(
		`INSERT INTO parts (id, story_id, part_number, part_text, user_id, date_started, date_complete)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`)

	_, err := r.db.ExecContext(ctx, query,
		part.ID, part.StoryID, part.PartNumber, part.PartText, part.UserID, part.DateStarted, part.DateComplete)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrConflict
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *SQLRepository) Get(ctx context.Context, id string) (*models.Part, error) {
	return r.getOne(ctx, `SELECT `+partColumns+` FROM parts WHERE id = $1`, id)
}

func (r *SQLRepository) GetActiveByUser(ctx context.Context, userID string) (*models.Part, error) {
	return r.getOne(ctx,
		`SELECT `+partColumns+` FROM parts
		 WHERE user_id = $1 AND date_complete IS NULL`, userID)
}

func (r *SQLRepository) GetByNumber(ctx context.Context, storyID string, number int) (*models.Part, error) {
	return r.getOne(ctx,
		`SELECT `+partColumns+` FROM parts
		 WHERE story_id = $1 AND part_number = $2`, storyID, number)
}

func (r *SQLRepository) ListOpenIDs(ctx context.Context) ([]string, error) {
	query := `SELECT id FROM parts
		 WHERE user_id IS NULL AND date_complete IS NULL
		 ORDER BY id` + r.dialect.SkipLocked()

	var ids []string
	if err := sqlscan.Select(ctx, r.db, &ids, query); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return ids, nil
}

func (r *SQLRepository) CountByStory(ctx context.Context, storyID string) (int, error) {
	query := r.dialect.Rebind(`SELECT COUNT(*) FROM parts WHERE story_id = $1`)

	var n int
	if err := r.db.QueryRowContext(ctx, query, storyID).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *SQLRepository) ListByStory(ctx context.Context, storyID string) ([]models.Part, error) {
	query := r.dialect.Rebind(
		`SELECT ` + partColumns + ` FROM parts
		 WHERE story_id = $1
		 ORDER BY part_number`)

	var out []models.Part
	if err := sqlscan.Select(ctx, r.db, &out, query, storyID); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

// Claim assigns an unassigned open part to userID.
func (r *SQLRepository) Claim(ctx context.Context, id, userID string, at time.Time) error {
	query := r.dialect.Rebind(
		`UPDATE parts SET user_id = $1, date_started = $2
		 WHERE id = $3 AND user_id IS NULL AND date_complete IS NULL`)
	return r.execOne(ctx, query, userID, at, id)
}

// Release hands an open part held by userID back to the pool. Text is kept.
func (r *SQLRepository) Release(ctx context.Context, id, userID string) error {
	query := r.dialect.Rebind(
		`UPDATE parts SET user_id = NULL, date_started = NULL
		 WHERE id = $1 AND user_id = $2 AND date_complete IS NULL`)
	return r.execOne(ctx, query, id, userID)
}

func (r *SQLRepository) SaveText(ctx context.Context, id, userID, text string) error {
	query := r.dialect.Rebind(
		`UPDATE parts SET part_text = $1
		 WHERE id = $2 AND user_id = $3 AND date_complete IS NULL`)
	return r.execOne(ctx, query, text, id, userID)
}

func (r *SQLRepository) Complete(ctx context.Context, id, userID, text string, at time.Time) error {
	query := r.dialect.Rebind(
		`UPDATE parts SET part_text = $1, date_complete = $2
		 WHERE id = $3 AND user_id = $4 AND date_complete IS NULL`)
	return r.execOne(ctx, query, text, at, id, userID)
}

func (r *SQLRepository) getOne(ctx context.Context, query string, args ...any) (*models.Part, error) {
	part := &models.Part{}
	if err := sqlscan.Get(ctx, r.db, part, r.dialect.Rebind(query), args...); err != nil {
		if sqlscan.NotFound(err) || dbx.IsMalformedKey(err) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return part, nil
}

func (r *SQLRepository) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrConflict
		}
		return fmt.Errorf("db error: %w", err)
	}
	return dbx.RowsAffectedOne(res, common.ErrConflict)
}
