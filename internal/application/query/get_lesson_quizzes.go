package query

import (
	"context"
	"fmt"

	"github.com/golearn/learning-hub/internal/domain/lesson"
	"github.com/golearn/learning-hub/internal/domain/quiz"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET LESSON QUIZZES QUERY
// Квизы урока без правильных ответов и пояснений.
// ══════════════════════════════════════════════════════════════════════════════

// QuizDTO - квиз в том виде, в каком его видит ученик.
type QuizDTO struct {
	ID               string          `json:"id"`
	LessonID         string          `json:"lesson_id"`
	Title            string          `json:"title"`
	Description      string          `json:"description,omitempty"`
	PassingScore     int             `json:"passing_score"`
	TimeLimitMinutes *int            `json:"time_limit_minutes,omitempty"`
	MaxPoints        int             `json:"max_points"`
	Questions        []quiz.Question `json:"questions"`
}

// GetLessonQuizzesHandler обрабатывает запрос.
type GetLessonQuizzesHandler struct {
	lessons lesson.Repository
	quizzes quiz.Repository
}

// NewGetLessonQuizzesHandler создаёт обработчик.
func NewGetLessonQuizzesHandler(lessons lesson.Repository, quizzes quiz.Repository) *GetLessonQuizzesHandler {
	return &GetLessonQuizzesHandler{lessons: lessons, quizzes: quizzes}
}

// Handle выполняет запрос. Неизвестный урок - ErrLessonNotFound.
func (h *GetLessonQuizzesHandler) Handle(ctx context.Context, lessonID string) ([]QuizDTO, error) {
	if _, err := h.lessons.GetByID(ctx, lessonID); err != nil {
		return nil, err
	}

	list, err := h.quizzes.ListByLesson(ctx, lessonID)
	if err != nil {
		return nil, fmt.Errorf("get_lesson_quizzes: %w", err)
	}

	out := make([]QuizDTO, 0, len(list))
	for _, q := range list {
		out = append(out, QuizDTO{
			ID:               q.ID,
			LessonID:         q.LessonID,
			Title:            q.Title,
			Description:      q.Description,
			PassingScore:     q.PassingScore,
			TimeLimitMinutes: q.TimeLimitMinutes,
			MaxPoints:        q.MaxPoints,
			Questions:        q.Redacted(),
		})
	}
	return out, nil
}
