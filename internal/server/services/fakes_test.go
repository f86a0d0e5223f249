package services

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/relaytale/internal/common"
	"github.com/dmitrijs2005/relaytale/internal/dbx"
	"github.com/dmitrijs2005/relaytale/internal/logging"
	"github.com/dmitrijs2005/relaytale/internal/server/models"
	"github.com/dmitrijs2005/relaytale/internal/server/repositories/parts"
	"github.com/dmitrijs2005/relaytale/internal/server/repositories/stories"
	"github.com/dmitrijs2005/relaytale/internal/server/repositories/users"
)

// --- helpers ---

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func discardLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func fixedClock() time.Time {
	return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
}

// fakeParts overrides only the calls a test needs; anything else panics
// through the nil embedded interface.
type fakeParts struct {
	parts.Repository

	get             func(id string) (*models.Part, error)
	getActiveByUser func(userID string) (*models.Part, error)
	listOpenIDs     func() ([]string, error)
	countByStory    func(storyID string) (int, error)
	listByStory     func(storyID string) ([]models.Part, error)
	create          func(p *models.Part) error
	claim           func(id, userID string) error
	release         func(id, userID string) error
	saveText        func(id, userID, text string) error
	complete        func(id, userID, text string) error
}

func (f *fakeParts) Get(_ context.Context, id string) (*models.Part, error) { return f.get(id) }
func (f *fakeParts) GetActiveByUser(_ context.Context, userID string) (*models.Part, error) {
	return f.getActiveByUser(userID)
}
func (f *fakeParts) ListOpenIDs(context.Context) ([]string, error) { return f.listOpenIDs() }
func (f *fakeParts) CountByStory(_ context.Context, storyID string) (int, error) {
	return f.countByStory(storyID)
}
func (f *fakeParts) ListByStory(_ context.Context, storyID string) ([]models.Part, error) {
	return f.listByStory(storyID)
}
func (f *fakeParts) Create(_ context.Context, p *models.Part) error { return f.create(p) }
func (f *fakeParts) Claim(_ context.Context, id, userID string, _ time.Time) error {
	return f.claim(id, userID)
}
func (f *fakeParts) Release(_ context.Context, id, userID string) error { return f.release(id, userID) }
func (f *fakeParts) SaveText(_ context.Context, id, userID, text string) error {
	return f.saveText(id, userID, text)
}
func (f *fakeParts) Complete(_ context.Context, id, userID, text string, _ time.Time) error {
	return f.complete(id, userID, text)
}

type fakeStories struct {
	stories.Repository

	get               func(id string) (*models.Story, error)
	create            func(s *models.Story) error
	lock              func(id string) error
	setLocked         func(id string, locked bool) error
	setTitle          func(id, title string) error
	markComplete      func(id string) error
	listExtendableIDs func() ([]string, error)
}

func (f *fakeStories) Get(_ context.Context, id string) (*models.Story, error) { return f.get(id) }
func (f *fakeStories) Create(_ context.Context, s *models.Story) error     { return f.create(s) }
func (f *fakeStories) Lock(_ context.Context, id string) error           { return f.lock(id) }
func (f *fakeStories) SetLocked(_ context.Context, id string, locked bool) error {
	return f.setLocked(id, locked)
}
func (f *fakeStories) SetTitle(_ context.Context, id, title string) error { return f.setTitle(id, title) }
func (f *fakeStories) MarkComplete(_ context.Context, id string, _ time.Time) error {
	return f.markComplete(id)
}
func (f *fakeStories) ListExtendableIDs(context.Context) ([]string, error) {
	return f.listExtendableIDs()
}

type fakeUsers struct {
	users.Repository

	get                     func(id string) (*models.User, error)
	getByExternalID         func(externalID string) (*models.User, error)
	create                  func(u *models.User) error
	updateRefreshCredential func(id string, sealed []byte) error
}

func (f *fakeUsers) Get(_ context.Context, id string) (*models.User, error) { return f.get(id) }
func (f *fakeUsers) GetByExternalID(_ context.Context, externalID string) (*models.User, error) {
	return f.getByExternalID(externalID)
}
func (f *fakeUsers) Create(_ context.Context, u *models.User) error { return f.create(u) }
func (f *fakeUsers) UpdateRefreshCredential(_ context.Context, id string, sealed []byte) error {
	return f.updateRefreshCredential(id, sealed)
}

type fakeRepoManager struct {
	u *fakeUsers
	s *fakeStories
	p *fakeParts
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) users.Repository             { return m.u }
func (m *fakeRepoManager) Stories(dbx.DBTX) stories.Repository         { return m.s }
func (m *fakeRepoManager) Parts(dbx.DBTX) parts.Repository             { return m.p }

func notFoundPart(string) (*models.Part, error) { return nil, common.ErrorNotFound }
func noIDs() ([]string, error)                 { return nil, nil }

// gateFunc adapts a function to Gate.
type gateFunc func(string) []string

func (f gateFunc) Check(text string) []string { return f(text) }

var cleanGate = gateFunc(func(string) []string { return nil })

// recordingArchiver collects archived stories.
type recordingArchiver struct {
	mu      sync.Mutex
	err     error
	stories []*models.StoryWithParts
}

func (a *recordingArchiver) Archive(_ context.Context, s *models.StoryWithParts) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stories = append(a.stories, s)
	return a.err
}

func (a *recordingArchiver) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.stories)
}

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }
