package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/relaytale/internal/common"
	"github.com/dmitrijs2005/relaytale/internal/cryptox"
	"github.com/dmitrijs2005/relaytale/internal/logging"
	"github.com/dmitrijs2005/relaytale/internal/server/models"
	"github.com/dmitrijs2005/relaytale/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// UserService maps external identities to writer records.
type UserService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	sealer      *cryptox.Sealer
	log         logging.Logger
	now         func() time.Time
}

func NewUserService(db *sql.DB, m repomanager.RepositoryManager, sealer *cryptox.Sealer, log logging.Logger) *UserService {
	return &UserService{
		db:          db,
		repomanager: m,
		sealer:      sealer,
		log:         log,
		now:         utcNow,
	}
}

// EnsureUser returns the user for externalID, creating it on first sight.
// Two concurrent first requests for the same identity resolve to one row.
func (s *UserService) EnsureUser(ctx context.Context, externalID string) (*models.User, error) {
	if externalID == "" {
		return nil, common.ErrorUnauthorized
	}

	repo := s.repomanager.Users(s.db)

	user, err := repo.GetByExternalID(ctx, externalID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return nil, fmt.Errorf("get user: %w", err)
	}

	user = &models.User{
		ID:          uuid.NewString(),
		ExternalID:  externalID,
		DateCreated: s.now(),
	}
	if err := repo.Create(ctx, user); err != nil {
		if !errors.Is(err, common.ErrConflict) {
			return nil, fmt.Errorf("create user: %w", err)
		}
		// created by a concurrent request
		return repo.GetByExternalID(ctx, externalID)
	}

	s.log.Info(ctx, "user created", "user_id", user.ID)
	return user, nil
}

// StoreRefreshCredential seals credential and saves it on the user.
func (s *UserService) StoreRefreshCredential(ctx context.Context, userID string, credential string) error {
	if credential == "" {
		return fmt.Errorf("empty refresh credential: %w", common.ErrValidation)
	}

	sealed, err := s.sealer.Seal([]byte(credential))
	if err != nil {
		return fmt.Errorf("seal refresh credential: %w", err)
	}
	if err := s.repomanager.Users(s.db).UpdateRefreshCredential(ctx, userID, sealed); err != nil {
		return fmt.Errorf("update refresh credential: %w", err)
	}
	return nil
}

// RefreshCredential returns the user's unsealed refresh credential, or
// common.ErrorNotFound when none was stored.
func (s *UserService) RefreshCredential(ctx context.Context, userID string) (string, error) {
	user, err := s.repomanager.Users(s.db).Get(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("get user: %w", err)
	}
	if len(user.RefreshCredential) == 0 {
		return "", common.ErrorNotFound
	}

	plain, err := s.sealer.Open(user.RefreshCredential)
	if err != nil {
		return "", fmt.Errorf("open refresh credential: %w", err)
	}
	return string(plain), nil
}
