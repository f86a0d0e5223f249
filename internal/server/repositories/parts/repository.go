// Package parts persists Part records and the conditional writes that move
// a part through assignment and completion.
package parts

import (
	"context"
	"time"

	"github.com/dmitrijs2005/relaytale/internal/server/models"
)

// Repository is the storage contract for parts. Writes conditioned on the
// holder or on the part still being open report common.ErrConflict when
// the condition no longer holds.
type Repository interface {
	Create(ctx context.Context, part *models.Part) error
	Get(ctx context.Context, id string) (*models.Part, error)
	GetActiveByUser(ctx context.Context, userID string) (*models.Part, error)
	GetByNumber(ctx context.Context, storyID string, number int) (*models.Part, error)

	// ListOpenIDs returns unassigned, incomplete parts.
	ListOpenIDs(ctx context.Context) ([]string, error)
	CountByStory(ctx context.Context, storyID string) (int, error)
	ListByStory(ctx context.Context, storyID string) ([]models.Part, error)

	Claim(ctx context.Context, id, userID string, at time.Time) error
	Release(ctx context.Context, id, userID string) error
	SaveText(ctx context.Context, id, userID, text string) error
	Complete(ctx context.Context, id, userID, text string, at time.Time) error
}
