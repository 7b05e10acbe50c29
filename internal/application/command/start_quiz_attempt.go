package command

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/golearn/learning-hub/internal/domain/progress"
	"github.com/golearn/learning-hub/internal/domain/quiz"
	"github.com/golearn/learning-hub/internal/domain/shared"
	"github.com/golearn/learning-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// START QUIZ ATTEMPT COMMAND
// Opens a new attempt and hands out the questions without answers.
// The stored quiz is never modified.
// ══════════════════════════════════════════════════════════════════════════════

// StartQuizAttemptCommand contains the data to start a quiz attempt.
type StartQuizAttemptCommand struct {
	LearnerID string
	QuizID    string
}

// Validate validates the command.
func (c StartQuizAttemptCommand) Validate() error {
	if c.LearnerID == "" {
		return shared.NewDomainError("progress", "StartQuizAttempt", shared.ErrValidation, "learner_id is required")
	}
	if c.QuizID == "" {
		return shared.NewDomainError("progress", "StartQuizAttempt", shared.ErrValidation, "quiz_id is required")
	}
	return nil
}

// StartQuizAttemptResult contains the opened attempt and the redacted quiz.
type StartQuizAttemptResult struct {
	Attempt *progress.QuizAttempt

	QuizTitle        string
	PassingScore     int
	TimeLimitMinutes *int

	// Questions - copy with CorrectAnswer and Explanation blanked.
	Questions []quiz.Question
}

// StartQuizAttemptHandler handles the StartQuizAttemptCommand.
type StartQuizAttemptHandler struct {
	deps  Dependencies
	newID func() string
}

// NewStartQuizAttemptHandler creates a new StartQuizAttemptHandler.
func NewStartQuizAttemptHandler(deps Dependencies) *StartQuizAttemptHandler {
	return &StartQuizAttemptHandler{
		deps:  deps.withDefaults("start_quiz_attempt"),
		newID: uuid.NewString,
	}
}

// Handle executes the start quiz attempt command.
func (h *StartQuizAttemptHandler) Handle(ctx context.Context, cmd StartQuizAttemptCommand) (*StartQuizAttemptResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	q, err := h.deps.Quizzes.GetByID(ctx, cmd.QuizID)
	if err != nil {
		return nil, err
	}
	if !q.IsActive {
		return nil, shared.ErrQuizNotFound
	}
	if _, err := h.deps.ensureLearner(ctx, cmd.LearnerID); err != nil {
		return nil, fmt.Errorf("start_quiz_attempt: %w", err)
	}

	attempt := progress.NewQuizAttempt(h.newID(), cmd.LearnerID, q.ID, q.MaxPoints, h.deps.Clock.Now())
	if err := h.deps.Progress.CreateAttempt(ctx, attempt); err != nil {
		return nil, fmt.Errorf("start_quiz_attempt: %w", err)
	}

	h.deps.Logger.Debug("quiz attempt started",
		logger.LearnerID(cmd.LearnerID),
		logger.QuizID(q.ID),
		logger.AttemptID(attempt.ID),
	)
	h.deps.publish(shared.NewQuizStartedEvent(cmd.LearnerID, q.ID, attempt.ID))

	return &StartQuizAttemptResult{
		Attempt:          attempt,
		QuizTitle:        q.Title,
		PassingScore:     q.PassingScore,
		TimeLimitMinutes: q.TimeLimitMinutes,
		Questions:        q.Redacted(),
	}, nil
}
