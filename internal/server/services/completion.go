package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/relaytale/internal/common"
	"github.com/dmitrijs2005/relaytale/internal/dbx"
	"github.com/dmitrijs2005/relaytale/internal/logging"
	"github.com/dmitrijs2005/relaytale/internal/server/models"
	"github.com/dmitrijs2005/relaytale/internal/server/repositories/repomanager"
	"go.opentelemetry.io/otel/attribute"
)

// Violation messages produced by the service itself rather than the gate.
const (
	ViolationTextRequired  = "text is required"
	ViolationTitleRequired = "title is required"
)

// ResultStatus tells whether a submission was applied.
type ResultStatus string

const (
	StatusOK       ResultStatus = "ok"
	StatusRejected ResultStatus = "rejected"
)

// SubmitResult is returned by CompletePart and SavePart. A rejected result
// carries at least one violation and means nothing was written.
type SubmitResult struct {
	Violations []string     `json:"violations"`
	Status     ResultStatus `json:"status"`
}

// Accepted reports whether the submission was applied.
func (r *SubmitResult) Accepted() bool {
	return r.Status == StatusOK
}

func newResult(violations []string) *SubmitResult {
	if len(violations) == 0 {
		return &SubmitResult{Violations: []string{}, Status: StatusOK}
	}
	return &SubmitResult{Violations: violations, Status: StatusRejected}
}

// PartSubmission is the writer's input for a part. Title is optional and
// only applied to part one.
type PartSubmission struct {
	Text  string  `json:"text"`
	Title *string `json:"title,omitempty"`
}

// Normalize trims the title and drops it when blank.
func (s PartSubmission) Normalize() PartSubmission {
	if s.Title != nil {
		t := strings.TrimSpace(*s.Title)
		if t == "" {
			s.Title = nil
		} else {
			s.Title = &t
		}
	}
	return s
}

// Merge keeps the stored draft when s carries no text, so a save that
// only sends a title does not wipe the part.
func (s PartSubmission) Merge(part *models.Part) PartSubmission {
	if s.Text == "" {
		s.Text = part.PartText
	}
	return s
}

// Validate runs gate over the submission. final requires text, and part
// one always requires a title. A title sent with a later part is discarded
// on completion, so it is not moderated there.
func (s PartSubmission) Validate(gate Gate, partNumber int, final bool) []string {
	var violations []string

	if final && strings.TrimSpace(s.Text) == "" {
		violations = append(violations, ViolationTextRequired)
	} else {
		violations = append(violations, gate.Check(s.Text)...)
	}

	switch {
	case s.Title != nil && (partNumber == 1 || !final):
		violations = append(violations, gate.Check(*s.Title)...)
	case partNumber == 1 && final:
		violations = append(violations, ViolationTitleRequired)
	}
	return violations
}

// CompletionService applies writers' submissions through the moderation
// gate and advances part and story state.
type CompletionService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	gate        Gate
	archiver    Archiver
	log         logging.Logger
	now         func() time.Time
}

func NewCompletionService(db *sql.DB, m repomanager.RepositoryManager, gate Gate, archiver Archiver, log logging.Logger) *CompletionService {
	if archiver == nil {
		archiver = NopArchiver{}
	}
	return &CompletionService{
		db:          db,
		repomanager: m,
		gate:        gate,
		archiver:    archiver,
		log:         log,
		now:         utcNow,
	}
}

// CompletePart commits the text of the caller's active part. Part one also
// sets the story title; part five completes the story, any other part
// unlocks the story for the next writer. A rejected result leaves the
// store untouched and the part assigned to the caller.
func (s *CompletionService) CompletePart(ctx context.Context, userID, partID string, in PartSubmission) (*SubmitResult, error) {
	ctx, span := tracer.Start(ctx, "CompletionService.CompletePart")
	defer span.End()

	part, err := s.heldPart(ctx, userID, partID)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("part.number", part.PartNumber))

	in = in.Normalize()
	res := newResult(in.Validate(s.gate, part.PartNumber, true))
	submissionsTotal.WithLabelValues("complete", string(res.Status)).Inc()
	if !res.Accepted() {
		s.log.Info(ctx, "submission rejected",
			"part_id", partID, "user_id", userID, "violations", len(res.Violations))
		return res, nil
	}

	var finished *models.StoryWithParts
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		stories := s.repomanager.Stories(tx)
		now := s.now()

		if err := s.repomanager.Parts(tx).Complete(ctx, part.ID, userID, in.Text, now); err != nil {
			return fmt.Errorf("complete part: %w", err)
		}
		if part.PartNumber == 1 {
			if err := stories.SetTitle(ctx, part.StoryID, *in.Title); err != nil {
				return fmt.Errorf("set title: %w", err)
			}
		}

		if part.PartNumber < common.PartsPerStory {
			if err := stories.SetLocked(ctx, part.StoryID, false); err != nil {
				return fmt.Errorf("unlock story: %w", err)
			}
			return nil
		}

		if err := stories.MarkComplete(ctx, part.StoryID, now); err != nil {
			return fmt.Errorf("mark story complete: %w", err)
		}
		var err error
		finished, err = loadStoryWithParts(ctx, s.repomanager, tx, part.StoryID)
		return err
	})
	if err != nil {
		if errors.Is(err, common.ErrConflict) {
			return nil, s.explainConflict(ctx, userID, partID, err)
		}
		return nil, err
	}

	s.log.Info(ctx, "part completed",
		"part_id", part.ID, "story_id", part.StoryID, "part_number", part.PartNumber, "user_id", userID)

	if finished != nil {
		storiesCompletedTotal.Inc()
		if err := s.archiver.Archive(ctx, finished); err != nil {
			s.log.Error(ctx, "archive story", "story_id", finished.ID, "error", err)
		}
	}
	return res, nil
}

// SavePart stores a draft of the caller's active part without completing
// it. A provided title is moderated and, on part one, saved as the story
// title.
func (s *CompletionService) SavePart(ctx context.Context, userID, partID string, in PartSubmission) (*SubmitResult, error) {
	ctx, span := tracer.Start(ctx, "CompletionService.SavePart")
	defer span.End()

	part, err := s.heldPart(ctx, userID, partID)
	if err != nil {
		return nil, err
	}

	in = in.Normalize().Merge(part)
	res := newResult(in.Validate(s.gate, part.PartNumber, false))
	submissionsTotal.WithLabelValues("save", string(res.Status)).Inc()
	if !res.Accepted() {
		return res, nil
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Parts(tx).SaveText(ctx, part.ID, userID, in.Text); err != nil {
			return fmt.Errorf("save part: %w", err)
		}
		if part.PartNumber == 1 && in.Title != nil {
			if err := s.repomanager.Stories(tx).SetTitle(ctx, part.StoryID, *in.Title); err != nil {
				return fmt.Errorf("set title: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, common.ErrConflict) {
			return nil, s.explainConflict(ctx, userID, partID, err)
		}
		return nil, err
	}

	s.log.Debug(ctx, "part saved", "part_id", part.ID, "user_id", userID)
	return res, nil
}

// ReleasePart gives up the caller's active part. The part keeps its text,
// becomes unassigned and its story is unlocked so another writer can claim
// it.
func (s *CompletionService) ReleasePart(ctx context.Context, userID, partID string) error {
	ctx, span := tracer.Start(ctx, "CompletionService.ReleasePart")
	defer span.End()

	part, err := s.heldPart(ctx, userID, partID)
	if err != nil {
		return err
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Parts(tx).Release(ctx, part.ID, userID); err != nil {
			return fmt.Errorf("release part: %w", err)
		}
		if err := s.repomanager.Stories(tx).SetLocked(ctx, part.StoryID, false); err != nil {
			return fmt.Errorf("unlock story: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, common.ErrConflict) {
			return s.explainConflict(ctx, userID, partID, err)
		}
		return err
	}

	s.log.Info(ctx, "part released", "part_id", part.ID, "story_id", part.StoryID, "user_id", userID)
	return nil
}

// heldPart loads partID and checks that userID may still write it.
func (s *CompletionService) heldPart(ctx context.Context, userID, partID string) (*models.Part, error) {
	part, err := s.repomanager.Parts(s.db).Get(ctx, partID)
	if err != nil {
		return nil, fmt.Errorf("get part %s: %w", partID, err)
	}
	switch {
	case part.IsComplete():
		return nil, common.ErrPartAlreadyComplete
	case !part.HeldBy(userID):
		return nil, common.ErrForbidden
	}
	return part, nil
}

// explainConflict turns a lost conditional write into the state that caused
// it, falling back to the original error.
func (s *CompletionService) explainConflict(ctx context.Context, userID, partID string, cause error) error {
	if _, err := s.heldPart(ctx, userID, partID); err != nil {
		return err
	}
	return cause
}

func loadStoryWithParts(ctx context.Context, m repomanager.RepositoryManager, db dbx.DBTX, storyID string) (*models.StoryWithParts, error) {
	story, err := m.Stories(db).Get(ctx, storyID)
	if err != nil {
		return nil, fmt.Errorf("get story %s: %w", storyID, err)
	}
	parts, err := m.Parts(db).ListByStory(ctx, storyID)
	if err != nil {
		return nil, fmt.Errorf("list parts of %s: %w", storyID, err)
	}
	return &models.StoryWithParts{Story: *story, Parts: parts}, nil
}
