// Package lesson описывает уроки каталога. Для движка прогресса каталог
// только читается: авторинг уроков живёт вне этого сервиса.
package lesson

import (
	"context"
	"strings"
	"time"

	"github.com/golearn/learning-hub/internal/domain/shared"
)

// DefaultPointsReward - очки за урок, если в каталоге не указано иное.
const DefaultPointsReward = 10

// Lesson - урок каталога.
type Lesson struct {
	ID               string
	Title            string
	Description      string
	Content          string
	Difficulty       shared.Difficulty
	EstimatedMinutes int
	PointsReward     int
	Order            int
	Tags             []string
	IsPublished      bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Normalize приводит значения по умолчанию к каноничному виду.
func (l *Lesson) Normalize() {
	l.ID = strings.TrimSpace(l.ID)
	l.Difficulty = shared.ParseDifficulty(string(l.Difficulty))
	if l.PointsReward < 0 {
		l.PointsReward = 0
	}
	if l.EstimatedMinutes <= 0 {
		l.EstimatedMinutes = 15
	}
}

// Validate проверяет обязательные поля.
func (l *Lesson) Validate() error {
	if !shared.ValidID(l.ID) {
		return shared.NewDomainError("lesson", "Validate", shared.ErrInvalidID, "invalid lesson ID")
	}
	if strings.TrimSpace(l.Title) == "" {
		return shared.NewDomainError("lesson", "Validate", shared.ErrEmptyValue, "lesson title is required")
	}
	return nil
}

// Repository - каталог уроков (только чтение для ядра, Save нужен для сидов).
type Repository interface {
	// GetByID возвращает урок по ID.
	// Возвращает ErrLessonNotFound, если урока нет.
	GetByID(ctx context.Context, id string) (*Lesson, error)

	// List возвращает опубликованные уроки в порядке Order.
	List(ctx context.Context) ([]*Lesson, error)

	// Save создаёт или заменяет урок.
	Save(ctx context.Context, l *Lesson) error
}
