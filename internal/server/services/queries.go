package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/relaytale/internal/common"
	"github.com/dmitrijs2005/relaytale/internal/server/models"
	"github.com/dmitrijs2005/relaytale/internal/server/pagination"
	"github.com/dmitrijs2005/relaytale/internal/server/repositories/repomanager"
)

// StoryQueryService serves read-only views of parts and stories.
type StoryQueryService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	picker      *Picker
	pageSize    pagination.PageSizeConfig
}

func NewStoryQueryService(db *sql.DB, m repomanager.RepositoryManager, picker *Picker, pageSize pagination.PageSizeConfig) *StoryQueryService {
	return &StoryQueryService{db: db, repomanager: m, picker: picker, pageSize: pageSize}
}

// ActivePart returns the part userID currently holds.
func (s *StoryQueryService) ActivePart(ctx context.Context, userID string) (*models.Part, error) {
	part, err := s.repomanager.Parts(s.db).GetActiveByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get active part: %w", err)
	}
	return part, nil
}

// PreviousPart returns the part before the one userID holds, so the writer
// can continue from it. Holding nothing, or holding part one, is
// common.ErrorNotFound.
func (s *StoryQueryService) PreviousPart(ctx context.Context, userID string) (*models.Part, error) {
	active, err := s.ActivePart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if active.PartNumber <= 1 {
		return nil, common.ErrorNotFound
	}

	part, err := s.repomanager.Parts(s.db).GetByNumber(ctx, active.StoryID, active.PartNumber-1)
	if err != nil {
		return nil, fmt.Errorf("get previous part: %w", err)
	}
	return part, nil
}

// MyStories returns completed stories userID wrote any part of, oldest
// completion first.
func (s *StoryQueryService) MyStories(ctx context.Context, userID string, req pagination.Request) (*pagination.Page[models.StoryWithParts], error) {
	req = req.Normalize(s.pageSize)
	stories := s.repomanager.Stories(s.db)

	total, err := stories.CountCompletedByWriter(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("count stories: %w", err)
	}

	list, err := stories.ListCompletedByWriter(ctx, userID, req.Size, req.Offset())
	if err != nil {
		return nil, fmt.Errorf("list stories: %w", err)
	}

	items := make([]models.StoryWithParts, 0, len(list))
	for _, st := range list {
		parts, err := s.repomanager.Parts(s.db).ListByStory(ctx, st.ID)
		if err != nil {
			return nil, fmt.Errorf("list parts of %s: %w", st.ID, err)
		}
		items = append(items, models.StoryWithParts{Story: st, Parts: parts})
	}
	return pagination.NewPage(items, total, req), nil
}

// RandomCompleteStory returns a uniformly chosen completed story, or
// common.ErrorNotFound when none exists yet.
func (s *StoryQueryService) RandomCompleteStory(ctx context.Context) (*models.StoryWithParts, error) {
	ids, err := s.repomanager.Stories(s.db).ListCompleteIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list complete stories: %w", err)
	}

	id := s.picker.Pick(ids)
	if id == "" {
		return nil, common.ErrorNotFound
	}

	return loadStoryWithParts(ctx, s.repomanager, s.db, id)
}

func (s *StoryQueryService) Story(ctx context.Context, id string) (*models.Story, error) {
	story, err := s.repomanager.Stories(s.db).Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get story %s: %w", id, err)
	}
	return story, nil
}
