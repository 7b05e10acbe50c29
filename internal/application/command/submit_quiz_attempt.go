package command

import (
	"context"
	"fmt"

	"github.com/golearn/learning-hub/config"
	"github.com/golearn/learning-hub/internal/domain/achievement"
	"github.com/golearn/learning-hub/internal/domain/progress"
	"github.com/golearn/learning-hub/internal/domain/quiz"
	"github.com/golearn/learning-hub/internal/domain/shared"
	"github.com/golearn/learning-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SUBMIT QUIZ ATTEMPT COMMAND
// Scores an open attempt once. The result is persisted with a conditional
// write (is_completed = false), so a re-submission is rejected with Conflict
// no matter how many requests race. A first-pass bonus that failed after the
// result committed is paid by the next submission of the same attempt, which
// is still rejected.
// ══════════════════════════════════════════════════════════════════════════════

// SubmitQuizAttemptCommand contains the answers of an attempt.
type SubmitQuizAttemptCommand struct {
	AttemptID string
	LearnerID string

	// Answers maps question ID to the given answer.
	Answers map[string]string
}

// Validate validates the command.
func (c SubmitQuizAttemptCommand) Validate() error {
	if c.AttemptID == "" {
		return shared.NewDomainError("progress", "SubmitQuizAttempt", shared.ErrValidation, "attempt_id is required")
	}
	if c.LearnerID == "" {
		return shared.NewDomainError("progress", "SubmitQuizAttempt", shared.ErrValidation, "learner_id is required")
	}
	return nil
}

// SubmitQuizAttemptResult contains the scored attempt.
type SubmitQuizAttemptResult struct {
	Attempt *progress.QuizAttempt
	Score   quiz.Result

	// BonusAwarded - first-pass bonus credited by this call.
	BonusAwarded int

	NewAchievements []*achievement.Achievement

	Balance Balance
}

// SubmitQuizAttemptHandler handles the SubmitQuizAttemptCommand.
type SubmitQuizAttemptHandler struct {
	deps           Dependencies
	quizPassPoints int
}

// SubmitQuizAttemptConfig contains configuration for the handler.
type SubmitQuizAttemptConfig struct {
	// QuizPassPoints - bonus for the first passed attempt of a quiz. 0 disables it.
	QuizPassPoints int
}

// NewSubmitQuizAttemptHandler creates a new SubmitQuizAttemptHandler.
func NewSubmitQuizAttemptHandler(deps Dependencies, cfg SubmitQuizAttemptConfig) *SubmitQuizAttemptHandler {
	return &SubmitQuizAttemptHandler{
		deps:           deps.withDefaults("submit_quiz_attempt"),
		quizPassPoints: cfg.QuizPassPoints,
	}
}

// Handle executes the submit quiz attempt command.
func (h *SubmitQuizAttemptHandler) Handle(ctx context.Context, cmd SubmitQuizAttemptCommand) (*SubmitQuizAttemptResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	attempt, err := h.deps.Progress.GetAttempt(ctx, cmd.AttemptID)
	if err != nil {
		return nil, err
	}
	// чужая попытка неотличима от несуществующей
	if attempt.LearnerID != cmd.LearnerID {
		return nil, shared.ErrAttemptNotFound
	}
	if attempt.IsCompleted {
		h.settlePassBonus(ctx, attempt)
		return nil, shared.ErrAttemptAlreadySubmitted
	}

	q, err := h.deps.Quizzes.GetByID(ctx, attempt.QuizID)
	if err != nil {
		return nil, err
	}

	score, err := quiz.Score(q.Snapshot(), cmd.Answers, q.PassingScore)
	if err != nil {
		return nil, err
	}

	now := h.deps.Clock.Now()
	submitted, err := h.deps.Progress.SubmitAttempt(ctx, attempt.ID, progress.Submission{
		Answers:     cmd.Answers,
		Score:       score.Score,
		MaxScore:    score.MaxScore,
		Passed:      score.Passed,
		CompletedAt: now,
	})
	if err != nil {
		if shared.IsConflict(err) {
			return nil, err
		}
		return nil, fmt.Errorf("submit_quiz_attempt: %w", err)
	}

	result := &SubmitQuizAttemptResult{
		Attempt:         submitted,
		Score:           score,
		NewAchievements: []*achievement.Achievement{},
	}

	if h.passBonusEnabled(cmd.LearnerID, score.Passed) {
		award, err := h.deps.Ledger.AwardQuizPassIfNew(ctx, cmd.LearnerID, q.ID, h.quizPassPoints)
		if err != nil {
			h.deps.Logger.Error("failed to credit quiz pass bonus",
				logger.LearnerID(cmd.LearnerID),
				logger.QuizID(q.ID),
				logger.Err(err),
			)
			return nil, fmt.Errorf("submit_quiz_attempt: %w", err)
		}
		if award.Granted {
			result.BonusAwarded = award.Credit.Amount
		}
	}

	h.deps.touchStreak(ctx, cmd.LearnerID, now)
	h.deps.publish(shared.NewQuizSubmittedEvent(cmd.LearnerID, q.ID, submitted.ID, score.Score, score.MaxScore, score.Passed))

	result.NewAchievements = h.deps.checkAchievements(ctx, cmd.LearnerID, "quiz_submitted")
	result.Balance = h.deps.balance(ctx, cmd.LearnerID)

	h.deps.Logger.Info("quiz attempt submitted",
		logger.LearnerID(cmd.LearnerID),
		logger.QuizID(q.ID),
		logger.AttemptID(submitted.ID),
		logger.Int("score", score.Score),
		logger.Int("max_score", score.MaxScore),
		logger.Bool("passed", score.Passed),
	)

	return result, nil
}

func (h *SubmitQuizAttemptHandler) passBonusEnabled(learnerID string, passed bool) bool {
	return passed && h.quizPassPoints > 0 && h.deps.Features.Enabled(config.FeatureQuizPassBonus, learnerID)
}

// settlePassBonus pays a bonus that a passed attempt earned but never
// received. Failures are logged only: the caller answers Conflict anyway.
func (h *SubmitQuizAttemptHandler) settlePassBonus(ctx context.Context, attempt *progress.QuizAttempt) {
	if !h.passBonusEnabled(attempt.LearnerID, attempt.Passed) {
		return
	}

	award, err := h.deps.Ledger.AwardQuizPassIfNew(ctx, attempt.LearnerID, attempt.QuizID, h.quizPassPoints)
	if err != nil {
		h.deps.Logger.Warn("quiz pass bonus still unpaid",
			logger.LearnerID(attempt.LearnerID),
			logger.QuizID(attempt.QuizID),
			logger.Err(err),
		)
		return
	}
	if award.Granted {
		h.deps.Logger.Warn("recovered unpaid quiz pass bonus",
			logger.LearnerID(attempt.LearnerID),
			logger.QuizID(attempt.QuizID),
			logger.AttemptID(attempt.ID),
		)
		h.deps.checkAchievements(ctx, attempt.LearnerID, "quiz_submitted")
	}
}
