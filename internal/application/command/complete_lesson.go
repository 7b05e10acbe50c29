package command

import (
	"context"
	"fmt"

	"github.com/golearn/learning-hub/internal/domain/achievement"
	"github.com/golearn/learning-hub/internal/domain/progress"
	"github.com/golearn/learning-hub/internal/domain/shared"
	"github.com/golearn/learning-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMPLETE LESSON COMMAND
// Idempotent: the completion flip and the lesson reward are both conditional
// writes keyed by (learner, lesson). Points, streak and the achievement
// recheck run only for the call that records the reward. When the reward
// failed after the flip committed, the next call pays it.
// ══════════════════════════════════════════════════════════════════════════════

// CompleteLessonCommand contains the data to complete a lesson.
type CompleteLessonCommand struct {
	LearnerID string
	LessonID  string
}

// Validate validates the command.
func (c CompleteLessonCommand) Validate() error {
	if c.LearnerID == "" {
		return shared.NewDomainError("progress", "CompleteLesson", shared.ErrValidation, "learner_id is required")
	}
	if c.LessonID == "" {
		return shared.NewDomainError("progress", "CompleteLesson", shared.ErrValidation, "lesson_id is required")
	}
	return nil
}

// CompleteLessonResult contains the result of completing a lesson.
type CompleteLessonResult struct {
	Progress *progress.LessonProgress

	// Transitioned is true only for the call that settled the completion:
	// the lesson is completed and its reward was recorded by this call.
	Transitioned bool

	// PointsAwarded - lesson points credited by this call.
	PointsAwarded int

	// NewAchievements - achievements unlocked by this call.
	NewAchievements []*achievement.Achievement

	Balance Balance
}

// CompleteLessonHandler handles the CompleteLessonCommand.
type CompleteLessonHandler struct {
	deps Dependencies
}

// NewCompleteLessonHandler creates a new CompleteLessonHandler.
func NewCompleteLessonHandler(deps Dependencies) *CompleteLessonHandler {
	return &CompleteLessonHandler{deps: deps.withDefaults("complete_lesson")}
}

// Handle executes the complete lesson command.
func (h *CompleteLessonHandler) Handle(ctx context.Context, cmd CompleteLessonCommand) (*CompleteLessonResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	ls, err := h.deps.Lessons.GetByID(ctx, cmd.LessonID)
	if err != nil {
		return nil, err
	}
	if _, err := h.deps.ensureLearner(ctx, cmd.LearnerID); err != nil {
		return nil, fmt.Errorf("complete_lesson: %w", err)
	}

	now := h.deps.Clock.Now()
	p, flipped, err := h.deps.Progress.CompleteLesson(ctx, cmd.LearnerID, cmd.LessonID, ls.Difficulty, now)
	if err != nil {
		return nil, fmt.Errorf("complete_lesson: %w", err)
	}

	result := &CompleteLessonResult{
		Progress:        p,
		NewAchievements: []*achievement.Achievement{},
	}

	// награда пишется и для повторного вызова: если после перехода
	// начисление упало, этот вызов его доплатит
	award, err := h.deps.Ledger.AwardLessonPoints(ctx, cmd.LearnerID, cmd.LessonID, ls.PointsReward)
	if err != nil {
		h.deps.Logger.Error("lesson completed but points were not credited",
			logger.LearnerID(cmd.LearnerID),
			logger.LessonID(cmd.LessonID),
			logger.Points(ls.PointsReward),
			logger.Err(err),
		)
		return nil, fmt.Errorf("complete_lesson: %w", err)
	}

	if !award.Granted {
		// повторный вызов: без очков и без перепроверки
		result.Balance = h.deps.balance(ctx, cmd.LearnerID)
		return result, nil
	}
	if !flipped {
		h.deps.Logger.Warn("recovered unpaid lesson reward",
			logger.LearnerID(cmd.LearnerID),
			logger.LessonID(cmd.LessonID),
		)
	}

	credit := award.Credit
	result.Transitioned = true
	result.PointsAwarded = credit.Amount

	h.deps.touchStreak(ctx, cmd.LearnerID, now)
	h.deps.publish(shared.NewLessonCompletedEvent(cmd.LearnerID, cmd.LessonID, string(ls.Difficulty), credit.Amount))

	result.NewAchievements = h.deps.checkAchievements(ctx, cmd.LearnerID, "lesson_completed")
	result.Balance = h.deps.balance(ctx, cmd.LearnerID)

	h.deps.Logger.Info("lesson completed",
		logger.LearnerID(cmd.LearnerID),
		logger.LessonID(cmd.LessonID),
		logger.Points(credit.Amount),
		logger.Int("new_achievements", len(result.NewAchievements)),
	)

	return result, nil
}
