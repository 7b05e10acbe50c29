package command

import (
	"context"
	"fmt"

	"github.com/golearn/learning-hub/internal/domain/progress"
	"github.com/golearn/learning-hub/internal/domain/shared"
	"github.com/golearn/learning-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// START LESSON COMMAND
// Creates an in-progress record for (learner, lesson) if none exists.
// Repeated calls succeed without creating duplicates.
// ══════════════════════════════════════════════════════════════════════════════

// StartLessonCommand contains the data to start a lesson.
type StartLessonCommand struct {
	LearnerID string
	LessonID  string
}

// Validate validates the command.
func (c StartLessonCommand) Validate() error {
	if c.LearnerID == "" {
		return shared.NewDomainError("progress", "StartLesson", shared.ErrValidation, "learner_id is required")
	}
	if c.LessonID == "" {
		return shared.NewDomainError("progress", "StartLesson", shared.ErrValidation, "lesson_id is required")
	}
	return nil
}

// StartLessonResult contains the result of starting a lesson.
type StartLessonResult struct {
	Progress *progress.LessonProgress

	// Created is false when the lesson had already been started.
	Created bool
}

// StartLessonHandler handles the StartLessonCommand.
type StartLessonHandler struct {
	deps Dependencies
}

// NewStartLessonHandler creates a new StartLessonHandler.
func NewStartLessonHandler(deps Dependencies) *StartLessonHandler {
	return &StartLessonHandler{deps: deps.withDefaults("start_lesson")}
}

// Handle executes the start lesson command.
func (h *StartLessonHandler) Handle(ctx context.Context, cmd StartLessonCommand) (*StartLessonResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	if _, err := h.deps.Lessons.GetByID(ctx, cmd.LessonID); err != nil {
		return nil, err
	}
	if _, err := h.deps.ensureLearner(ctx, cmd.LearnerID); err != nil {
		return nil, fmt.Errorf("start_lesson: %w", err)
	}

	p, created, err := h.deps.Progress.StartLesson(ctx, cmd.LearnerID, cmd.LessonID, h.deps.Clock.Now())
	if err != nil {
		return nil, fmt.Errorf("start_lesson: %w", err)
	}

	if created {
		h.deps.Logger.Debug("lesson started",
			logger.LearnerID(cmd.LearnerID),
			logger.LessonID(cmd.LessonID),
		)
		h.deps.publish(shared.NewLessonStartedEvent(cmd.LearnerID, cmd.LessonID))
	}

	return &StartLessonResult{Progress: p, Created: created}, nil
}
