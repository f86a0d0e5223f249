// Package stories persists Story records.
package stories

import (
	"context"
	"time"

	"github.com/dmitrijs2005/relaytale/internal/server/models"
)

// Repository is the storage contract for stories. Conditional writes report
// common.ErrConflict when the row no longer matches the expected state.
type Repository interface {
	Create(ctx context.Context, story *models.Story) error
	Get(ctx context.Context, id string) (*models.Story, error)

	// Lock sets locked only if the story is unlocked and incomplete.
	Lock(ctx context.Context, id string) error
	SetLocked(ctx context.Context, id string, locked bool) error
	SetTitle(ctx context.Context, id string, title string) error
	// MarkComplete sets date_complete only if it is still unset.
	MarkComplete(ctx context.Context, id string, at time.Time) error

	// ListExtendableIDs returns unlocked, incomplete stories with fewer than
	// five parts and no open part.
	ListExtendableIDs(ctx context.Context) ([]string, error)
	ListCompleteIDs(ctx context.Context) ([]string, error)
	ListCompletedByWriter(ctx context.Context, userID string, limit, offset int) ([]models.Story, error)
	CountCompletedByWriter(ctx context.Context, userID string) (int, error)
}
