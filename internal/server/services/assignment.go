package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/relaytale/internal/common"
	"github.com/dmitrijs2005/relaytale/internal/dbx"
	"github.com/dmitrijs2005/relaytale/internal/logging"
	"github.com/dmitrijs2005/relaytale/internal/server/models"
	"github.com/dmitrijs2005/relaytale/internal/server/repositories/repomanager"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// AssignmentService decides which part a writer works on next.
type AssignmentService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	picker      *Picker
	retryLimit  int
	log         logging.Logger
	now         func() time.Time
}

func NewAssignmentService(db *sql.DB, m repomanager.RepositoryManager, picker *Picker, retryLimit int, log logging.Logger) *AssignmentService {
	if retryLimit < 1 {
		retryLimit = 1
	}
	return &AssignmentService{
		db:          db,
		repomanager: m,
		picker:      picker,
		retryLimit:  retryLimit,
		log:         log,
		now:         utcNow,
	}
}

// NextPart returns the part userID should write, in priority order:
// the part they already hold, a random unassigned open part, a new part
// on a random story that is waiting for its next writer, or part one of a
// brand new story. Each attempt runs in one transaction; an attempt that
// loses a race to another writer is rolled back and retried from the top.
func (s *AssignmentService) NextPart(ctx context.Context, userID string) (*models.Part, error) {
	ctx, span := tracer.Start(ctx, "AssignmentService.NextPart",
		trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	for attempt := 1; attempt <= s.retryLimit; attempt++ {
		part, outcome, err := s.assign(ctx, userID)
		if err == nil {
			assignmentsTotal.WithLabelValues(outcome).Inc()
			span.SetAttributes(
				attribute.String("assignment.outcome", outcome),
				attribute.Int("assignment.attempts", attempt),
			)
			s.log.Debug(ctx, "part assigned",
				"user_id", userID, "part_id", part.ID, "story_id", part.StoryID,
				"part_number", part.PartNumber, "outcome", outcome)
			return part, nil
		}
		if !errors.Is(err, common.ErrConflict) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "assignment failed")
			return nil, err
		}
		assignmentConflictsTotal.Inc()
		s.log.Debug(ctx, "assignment conflict, retrying", "user_id", userID, "attempt", attempt)
	}

	assignmentsTotal.WithLabelValues(outcomeExhausted).Inc()
	s.log.Warn(ctx, "assignment retries exhausted", "user_id", userID, "attempts", s.retryLimit)
	span.SetStatus(codes.Error, "retries exhausted")
	return nil, fmt.Errorf("assign part after %d attempts: %w", s.retryLimit, common.ErrConflict)
}

func (s *AssignmentService) assign(ctx context.Context, userID string) (*models.Part, string, error) {
	var (
		part    *models.Part
		outcome string
	)

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		for _, step := range []struct {
			outcome string
			run     func(context.Context, dbx.DBTX, string) (*models.Part, error)
		}{
			{outcomeResumed, s.resume},
			{outcomeClaimed, s.claimOpenPart},
			{outcomeExtended, s.extendStory},
			{outcomeStarted, s.startStory},
		} {
			part, err = step.run(ctx, tx, userID)
			if err != nil {
				return err
			}
			if part != nil {
				outcome = step.outcome
				return nil
			}
		}
		return fmt.Errorf("no assignment step produced a part: %w", common.ErrorInternal)
	})
	if err != nil {
		return nil, "", err
	}
	return part, outcome, nil
}

func (s *AssignmentService) resume(ctx context.Context, tx dbx.DBTX, userID string) (*models.Part, error) {
	part, err := s.repomanager.Parts(tx).GetActiveByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find active part: %w", err)
	}
	return part, nil
}

func (s *AssignmentService) claimOpenPart(ctx context.Context, tx dbx.DBTX, userID string) (*models.Part, error) {
	parts := s.repomanager.Parts(tx)

	ids, err := parts.ListOpenIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list open parts: %w", err)
	}
	id := s.picker.Pick(ids)
	if id == "" {
		return nil, nil
	}

	if err := parts.Claim(ctx, id, userID, s.now()); err != nil {
		return nil, fmt.Errorf("claim part %s: %w", id, err)
	}
	part, err := parts.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("reload part %s: %w", id, err)
	}
	if err := s.repomanager.Stories(tx).SetLocked(ctx, part.StoryID, true); err != nil {
		return nil, fmt.Errorf("lock story %s: %w", part.StoryID, err)
	}
	return part, nil
}

func (s *AssignmentService) extendStory(ctx context.Context, tx dbx.DBTX, userID string) (*models.Part, error) {
	stories := s.repomanager.Stories(tx)
	parts := s.repomanager.Parts(tx)

	ids, err := stories.ListExtendableIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list open stories: %w", err)
	}
	storyID := s.picker.Pick(ids)
	if storyID == "" {
		return nil, nil
	}

	if err := stories.Lock(ctx, storyID); err != nil {
		return nil, fmt.Errorf("lock story %s: %w", storyID, err)
	}
	n, err := parts.CountByStory(ctx, storyID)
	if err != nil {
		return nil, fmt.Errorf("count parts of %s: %w", storyID, err)
	}
	if n >= common.PartsPerStory {
		return nil, fmt.Errorf("story %s already has %d parts: %w", storyID, n, common.ErrConflict)
	}

	return s.createPart(ctx, tx, storyID, n+1, userID)
}

func (s *AssignmentService) startStory(ctx context.Context, tx dbx.DBTX, userID string) (*models.Part, error) {
	story := &models.Story{
		ID:          uuid.NewString(),
		Locked:      true,
		DateCreated: s.now(),
	}
	if err := s.repomanager.Stories(tx).Create(ctx, story); err != nil {
		return nil, fmt.Errorf("create story: %w", err)
	}
	return s.createPart(ctx, tx, story.ID, 1, userID)
}

func (s *AssignmentService) createPart(ctx context.Context, tx dbx.DBTX, storyID string, number int, userID string) (*models.Part, error) {
	now := s.now()
	part := &models.Part{
		ID:          uuid.NewString(),
		StoryID:     storyID,
		PartNumber:  number,
		UserID:      &userID,
		DateStarted: &now,
	}
	if err := s.repomanager.Parts(tx).Create(ctx, part); err != nil {
		return nil, fmt.Errorf("create part %d of %s: %w", number, storyID, err)
	}
	return part, nil
}
