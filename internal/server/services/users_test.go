package services

import (
	"context"
	"errors"
	"testing"

	"github.com/dmitrijs2005/relaytale/internal/common"
	"github.com/dmitrijs2005/relaytale/internal/cryptox"
	"github.com/dmitrijs2005/relaytale/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestUserService(t *testing.T, repo *fakeUsers) *UserService {
	t.Helper()
	db, _ := newSQLMockDB(t)
	sealer, err := cryptox.NewSealerWithKey(make([]byte, 32))
	require.NoError(t, err)
	s := NewUserService(db, &fakeRepoManager{u: repo}, sealer, discardLogger())
	s.now = fixedClock
	return s
}

func TestEnsureUser_Existing(t *testing.T) {
	existing := &models.User{ID: "u1", ExternalID: "ext"}
	s := newTestUserService(t, &fakeUsers{
		getByExternalID: func(string) (*models.User, error) { return existing, nil },
	})

	got, err := s.EnsureUser(context.Background(), "ext")
	require.NoError(t, err)
	assert.Same(t, existing, got)
}

func TestEnsureUser_CreatesOnFirstSight(t *testing.T) {
	var created *models.User
	s := newTestUserService(t, &fakeUsers{
		getByExternalID: func(string) (*models.User, error) { return nil, common.ErrorNotFound },
		create:          func(u *models.User) error { created = u; return nil },
	})

	got, err := s.EnsureUser(context.Background(), "ext")
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Same(t, created, got)
	assert.NotEmpty(t, got.ID)
	assert.Equal(t, "ext", got.ExternalID)
	assert.Equal(t, fixedClock(), got.DateCreated)
}

func TestEnsureUser_ConcurrentCreateRereads(t *testing.T) {
	winner := &models.User{ID: "u9", ExternalID: "ext"}
	reads := 0
	s := newTestUserService(t, &fakeUsers{
		getByExternalID: func(string) (*models.User, error) {
			reads++
			if reads == 1 {
				return nil, common.ErrorNotFound
			}
			return winner, nil
		},
		create: func(*models.User) error { return common.ErrConflict },
	})

	got, err := s.EnsureUser(context.Background(), "ext")
	require.NoError(t, err)
	assert.Equal(t, "u9", got.ID)
}

func TestEnsureUser_Errors(t *testing.T) {
	_, err := newTestUserService(t, &fakeUsers{}).EnsureUser(context.Background(), "")
	require.ErrorIs(t, err, common.ErrorUnauthorized)

	boom := errors.New("boom")
	s := newTestUserService(t, &fakeUsers{
		getByExternalID: func(string) (*models.User, error) { return nil, boom },
	})
	_, err = s.EnsureUser(context.Background(), "ext")
	require.ErrorIs(t, err, boom)
}

func TestRefreshCredential_SealedRoundTrip(t *testing.T) {
	var stored []byte
	s := newTestUserService(t, &fakeUsers{
		updateRefreshCredential: func(_ string, sealed []byte) error { stored = sealed; return nil },
		get: func(id string) (*models.User, error) {
			return &models.User{ID: id, RefreshCredential: stored}, nil
		},
	})

	require.NoError(t, s.StoreRefreshCredential(context.Background(), "u1", "refresh-123"))
	assert.NotContains(t, string(stored), "refresh-123")

	got, err := s.RefreshCredential(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "refresh-123", got)
}

func TestRefreshCredential_Missing(t *testing.T) {
	s := newTestUserService(t, &fakeUsers{
		get: func(id string) (*models.User, error) { return &models.User{ID: id}, nil },
	})

	_, err := s.RefreshCredential(context.Background(), "u1")
	require.ErrorIs(t, err, common.ErrorNotFound)

	err = s.StoreRefreshCredential(context.Background(), "u1", "")
	require.ErrorIs(t, err, common.ErrValidation)
}
