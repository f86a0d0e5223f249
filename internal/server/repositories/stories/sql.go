package stories

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/relaytale/internal/common"
	"github.com/dmitrijs2005/relaytale/internal/dbx"
	"github.com/dmitrijs2005/relaytale/internal/server/models"
	"github.com/georgysavva/scany/v2/sqlscan"
)

const storyColumns = `id, title, locked, date_created, date_complete`

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

func (r *SQLRepository) Create(ctx context.Context, story *models.Story) error {
	query := r.dialect.Rebind(
		`INSERT INTO stories (id, title, locked, date_created, date_complete)
		 VALUES ($1, $2, $3, $4, $5)`)

	_, err := r.db.ExecContext(ctx, query,
		story.ID, story.Title, story.Locked, story.DateCreated, story.DateComplete)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrConflict
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *SQLRepository) Get(ctx context.Context, id string) (*models.Story, error) {
	query := r.dialect.Rebind(`SELECT ` + storyColumns + ` FROM stories WHERE id = $1`)

	story := &models.Story{}
	if err := sqlscan.Get(ctx, r.db, story, query, id); err != nil {
		if sqlscan.NotFound(err) || dbx.IsMalformedKey(err) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return story, nil
}

func (r *SQLRepository) Lock(ctx context.Context, id string) error {
	query := r.dialect.Rebind(
		`UPDATE stories SET locked = TRUE
		 WHERE id = $1 AND locked = FALSE AND date_complete IS NULL`)
	return r.execOne(ctx, common.ErrConflict, query, id)
}

func (r *SQLRepository) SetLocked(ctx context.Context, id string, locked bool) error {
	query := r.dialect.Rebind(`UPDATE stories SET locked = $1 WHERE id = $2`)
	return r.execOne(ctx, common.ErrorNotFound, query, locked, id)
}

func (r *SQLRepository) SetTitle(ctx context.Context, id string, title string) error {
	query := r.dialect.Rebind(`UPDATE stories SET title = $1 WHERE id = $2`)
	return r.execOne(ctx, common.ErrorNotFound, query, title, id)
}

func (r *SQLRepository) MarkComplete(ctx context.Context, id string, at time.Time) error {
	query := r.dialect.Rebind(
		`UPDATE stories SET date_complete = $1
		 WHERE id = $2 AND date_complete IS NULL`)
	return r.execOne(ctx, common.ErrConflict, query, at, id)
}

func (r *SQLRepository) ListExtendableIDs(ctx context.Context) ([]string, error) {
	query := fmt.Sprintf(
		`SELECT s.id FROM stories s
		 WHERE s.locked = FALSE
		   AND s.date_complete IS NULL
		   AND (SELECT COUNT(*) FROM parts p WHERE p.story_id = s.id) < %d
		   AND NOT EXISTS (SELECT 1 FROM parts p WHERE p.story_id = s.id AND p.date_complete IS NULL)
		 ORDER BY s.id`, common.PartsPerStory) + r.dialect.SkipLocked()

	var ids []string
	if err := sqlscan.Select(ctx, r.db, &ids, query); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return ids, nil
}

func (r *SQLRepository) ListCompleteIDs(ctx context.Context) ([]string, error) {
	query := `SELECT id FROM stories WHERE date_complete IS NOT NULL ORDER BY id`

	var ids []string
	if err := sqlscan.Select(ctx, r.db, &ids, query); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return ids, nil
}

func (r *SQLRepository) ListCompletedByWriter(ctx context.Context, userID string, limit, offset int) ([]models.Story, error) {
	query := r.dialect.Rebind(
		`SELECT ` + storyColumns + ` FROM stories s
		 WHERE s.date_complete IS NOT NULL
		   AND EXISTS (SELECT 1 FROM parts p WHERE p.story_id = s.id AND p.user_id = $1)
		 ORDER BY s.date_complete, s.id
		 LIMIT $2 OFFSET $3`)

	var out []models.Story
	if err := sqlscan.Select(ctx, r.db, &out, query, userID, limit, offset); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *SQLRepository) CountCompletedByWriter(ctx context.Context, userID string) (int, error) {
	query := r.dialect.Rebind(
		`SELECT COUNT(*) FROM stories s
		 WHERE s.date_complete IS NOT NULL
		   AND EXISTS (SELECT 1 FROM parts p WHERE p.story_id = s.id AND p.user_id = $1)`)

	var n int
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *SQLRepository) execOne(ctx context.Context, onZero error, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return dbx.RowsAffectedOne(res, onZero)
}
