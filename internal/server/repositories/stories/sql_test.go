package stories

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/relaytale/internal/common"
	"github.com/dmitrijs2005/relaytale/internal/dbx"
	"github.com/dmitrijs2005/relaytale/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*SQLRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return NewPostgresRepository(db), mock, db
}

var storyCols = []string{"id", "title", "locked", "date_created", "date_complete"}

func TestCreate(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)
	now := time.Now().UTC()

	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+stories\s*\(id,\s*title,\s*locked,\s*date_created,\s*date_complete\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*\$5\)$`).
		WithArgs("s-1", nil, true, now, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Create(context.Background(), &models.Story{ID: "s-1", Locked: true, DateCreated: now})
	require.NoError(t, err)
}

func TestCreate_UniqueViolation(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	mock.ExpectExec(`INSERT INTO stories`).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err := repo.Create(context.Background(), &models.Story{ID: "s-1"})
	require.ErrorIs(t, err, common.ErrConflict)
}

func TestGet(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)
	created := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectQuery(`(?s)^SELECT\s+id,\s*title,\s*locked,\s*date_created,\s*date_complete\s+FROM\s+stories\s+WHERE\s+id\s*=\s*\$1$`).
		WithArgs("s-1").
		WillReturnRows(sqlmock.NewRows(storyCols).AddRow("s-1", "A Title", true, created, nil))

	got, err := repo.Get(context.Background(), "s-1")
	require.NoError(t, err)
	require.NotNil(t, got.Title)
	assert.Equal(t, "A Title", *got.Title)
	assert.True(t, got.Locked)
	assert.Equal(t, created, got.DateCreated)
	assert.Nil(t, got.DateComplete)
}

func TestGet_NotFound(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	mock.ExpectQuery(`FROM stories WHERE id`).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows(storyCols))

	_, err := repo.Get(context.Background(), "ghost")
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestGet_DBError(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	mock.ExpectQuery(`FROM stories WHERE id`).
		WillReturnError(errors.New("db down"))

	_, err := repo.Get(context.Background(), "s-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db error")
}

func TestLock(t *testing.T) {
	q := `(?s)^UPDATE\s+stories\s+SET\s+locked\s*=\s*TRUE\s+WHERE\s+id\s*=\s*\$1\s+AND\s+locked\s*=\s*FALSE\s+AND\s+date_complete\s+IS\s+NULL$`

	t.Run("acquired", func(t *testing.T) {
		repo, mock, _ := newRepoWithMock(t)
		mock.ExpectExec(q).WithArgs("s-1").WillReturnResult(sqlmock.NewResult(0, 1))
		require.NoError(t, repo.Lock(context.Background(), "s-1"))
	})

	t.Run("lost race", func(t *testing.T) {
		repo, mock, _ := newRepoWithMock(t)
		mock.ExpectExec(q).WithArgs("s-1").WillReturnResult(sqlmock.NewResult(0, 0))
		require.ErrorIs(t, repo.Lock(context.Background(), "s-1"), common.ErrConflict)
	})
}

func TestSetLocked(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	mock.ExpectExec(`(?s)^UPDATE\s+stories\s+SET\s+locked\s*=\s*\$1\s+WHERE\s+id\s*=\s*\$2$`).
		WithArgs(false, "s-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.SetLocked(context.Background(), "s-1", false))

	mock.ExpectExec(`UPDATE stories SET locked`).
		WithArgs(false, "ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.ErrorIs(t, repo.SetLocked(context.Background(), "ghost", false), common.ErrorNotFound)
}

func TestSetTitle(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	mock.ExpectExec(`(?s)^UPDATE\s+stories\s+SET\s+title\s*=\s*\$1\s+WHERE\s+id\s*=\s*\$2$`).
		WithArgs("Dawn", "s-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SetTitle(context.Background(), "s-1", "Dawn"))
}

func TestMarkComplete(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)
	at := time.Now().UTC()

	mock.ExpectExec(`(?s)^UPDATE\s+stories\s+SET\s+date_complete\s*=\s*\$1\s+WHERE\s+id\s*=\s*\$2\s+AND\s+date_complete\s+IS\s+NULL$`).
		WithArgs(at, "s-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.ErrorIs(t, repo.MarkComplete(context.Background(), "s-1", at), common.ErrConflict)
}

func TestMarkComplete_ExecError(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	mock.ExpectExec(`UPDATE stories SET date_complete`).
		WillReturnError(errors.New("boom"))

	err := repo.MarkComplete(context.Background(), "s-1", time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db error: boom")
}

func TestListExtendableIDs(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	mock.ExpectQuery(`(?s)SELECT\s+s\.id\s+FROM\s+stories\s+s.*<\s*5.*NOT\s+EXISTS.*FOR\s+UPDATE\s+SKIP\s+LOCKED$`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("s-1").AddRow("s-2"))

	ids, err := repo.ListExtendableIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"s-1", "s-2"}, ids)
}

func TestListExtendableIDs_SQLiteHasNoRowLocks(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	repo := NewSQLiteRepository(db)
	assert.Equal(t, dbx.SQLite, repo.dialect)

	mock.ExpectQuery(`SELECT s.id FROM stories s
		 WHERE s.locked = FALSE
		   AND s.date_complete IS NULL
		   AND (SELECT COUNT(*) FROM parts p WHERE p.story_id = s.id) < 5
		   AND NOT EXISTS (SELECT 1 FROM parts p WHERE p.story_id = s.id AND p.date_complete IS NULL)
		 ORDER BY s.id`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	ids, err := repo.ListExtendableIDs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListCompleteIDs(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	mock.ExpectQuery(`SELECT id FROM stories WHERE date_complete IS NOT NULL`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("s-9"))

	ids, err := repo.ListCompleteIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"s-9"}, ids)
}

func TestListCompletedByWriter(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)
	done := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`(?s)FROM\s+stories\s+s.*p\.user_id\s*=\s*\$1.*ORDER\s+BY\s+s\.date_complete,\s*s\.id\s+LIMIT\s+\$2\s+OFFSET\s+\$3$`).
		WithArgs("u-1", 10, 20).
		WillReturnRows(sqlmock.NewRows(storyCols).AddRow("s-1", "T", true, done, done))

	got, err := repo.ListCompletedByWriter(context.Background(), "u-1", 10, 20)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].IsComplete())
}

func TestCountCompletedByWriter(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	mock.ExpectQuery(`(?s)SELECT\s+COUNT\(\*\)\s+FROM\s+stories\s+s.*p\.user_id\s*=\s*\$1`).
		WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	n, err := repo.CountCompletedByWriter(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
