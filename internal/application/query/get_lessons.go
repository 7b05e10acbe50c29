package query

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golearn/learning-hub/internal/domain/lesson"
	"github.com/golearn/learning-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LESSON CATALOG QUERIES
// Каталог только читается. Неопубликованный урок виден лишь преподавателю
// и администратору, остальным он неотличим от несуществующего.
// ══════════════════════════════════════════════════════════════════════════════

// LessonDTO - урок каталога.
type LessonDTO struct {
	ID               string            `json:"id"`
	Title            string            `json:"title"`
	Description      string            `json:"description,omitempty"`
	Content          string            `json:"content,omitempty"`
	Difficulty       shared.Difficulty `json:"difficulty"`
	EstimatedMinutes int               `json:"estimated_minutes"`
	PointsReward     int               `json:"points_reward"`
	Order            int               `json:"order"`
	Tags             []string          `json:"tags"`
	IsPublished      bool              `json:"is_published"`
	CreatedAt        time.Time         `json:"created_at"`
}

func toLessonDTO(l *lesson.Lesson) LessonDTO {
	tags := l.Tags
	if tags == nil {
		tags = []string{}
	}
	return LessonDTO{
		ID:               l.ID,
		Title:            l.Title,
		Description:      l.Description,
		Content:          l.Content,
		Difficulty:       l.Difficulty,
		EstimatedMinutes: l.EstimatedMinutes,
		PointsReward:     l.PointsReward,
		Order:            l.Order,
		Tags:             tags,
		IsPublished:      l.IsPublished,
		CreatedAt:        l.CreatedAt,
	}
}

// ListLessonsQuery - фильтр списка. Пустая сложность - все уроки.
type ListLessonsQuery struct {
	Difficulty string
}

// ListLessonsHandler возвращает опубликованные уроки по порядку.
type ListLessonsHandler struct {
	lessons lesson.Repository
}

// NewListLessonsHandler создаёт обработчик.
func NewListLessonsHandler(lessons lesson.Repository) *ListLessonsHandler {
	return &ListLessonsHandler{lessons: lessons}
}

// Handle выполняет запрос. Неизвестная сложность - ошибка валидации.
func (h *ListLessonsHandler) Handle(ctx context.Context, q ListLessonsQuery) ([]LessonDTO, error) {
	var want shared.Difficulty
	if raw := strings.TrimSpace(q.Difficulty); raw != "" {
		want = shared.Difficulty(strings.ToLower(raw))
		if !want.IsValid() {
			return nil, shared.NewDomainError("query", "ListLessons", shared.ErrValidation, "unknown difficulty "+raw)
		}
	}

	list, err := h.lessons.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list_lessons: %w", err)
	}

	out := make([]LessonDTO, 0, len(list))
	for _, l := range list {
		if want != "" && l.Difficulty != want {
			continue
		}
		out = append(out, toLessonDTO(l))
	}
	return out, nil
}

// GetLessonQuery содержит параметры запроса.
type GetLessonQuery struct {
	LessonID string
	Viewer   Viewer
}

// GetLessonHandler возвращает один урок.
type GetLessonHandler struct {
	lessons lesson.Repository
}

// NewGetLessonHandler создаёт обработчик.
func NewGetLessonHandler(lessons lesson.Repository) *GetLessonHandler {
	return &GetLessonHandler{lessons: lessons}
}

// Handle выполняет запрос.
func (h *GetLessonHandler) Handle(ctx context.Context, q GetLessonQuery) (*LessonDTO, error) {
	l, err := h.lessons.GetByID(ctx, q.LessonID)
	if err != nil {
		return nil, err
	}
	if !l.IsPublished && !q.Viewer.Role.CanViewOthers() {
		return nil, shared.ErrLessonNotFound
	}
	dto := toLessonDTO(l)
	return &dto, nil
}
