// Package users persists writer records keyed by their external identity.
package users

import (
	"context"

	"github.com/dmitrijs2005/relaytale/internal/server/models"
)

// Repository is the storage contract for users.
type Repository interface {
	// Create inserts user; an existing external id is common.ErrConflict.
	Create(ctx context.Context, user *models.User) error
	Get(ctx context.Context, id string) (*models.User, error)
	GetByExternalID(ctx context.Context, externalID string) (*models.User, error)
	UpdateRefreshCredential(ctx context.Context, id string, sealed []byte) error
}
