// Package quiz содержит модель квиза и чистую функцию оценки ответов.
package quiz

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/golearn/learning-hub/internal/domain/shared"
)

const (
	// DefaultPassingScore - проходной процент, если поле не задано в
	// хранилище. Явный 0 сохраняется: такой квиз проходится всегда.
	DefaultPassingScore = 70

	// DefaultQuestionPoints - вес вопроса без поля points. Явный 0
	// сохраняется: вопрос ничего не стоит.
	DefaultQuestionPoints = 1
)

// QuestionType - тип вопроса, определяет правило сравнения ответа.
type QuestionType string

const (
	TypeMultipleChoice QuestionType = "multiple_choice"
	TypeTrueFalse      QuestionType = "true_false"
	TypeCodeCompletion QuestionType = "code_completion"
	TypeFreeText       QuestionType = "free_text"
)

// IsValid проверяет, что тип известен.
func (t QuestionType) IsValid() bool {
	switch t {
	case TypeMultipleChoice, TypeTrueFalse, TypeCodeCompletion, TypeFreeText:
		return true
	}
	return false
}

// Question - вопрос квиза.
type Question struct {
	// ID - стабильный идентификатор; по умолчанию индекс вопроса строкой.
	ID            string       `json:"id"`
	Text          string       `json:"question"`
	Type          QuestionType `json:"type"`
	Options       []string     `json:"options,omitempty"`
	CorrectAnswer string       `json:"correct_answer"`
	Explanation   string       `json:"explanation,omitempty"`
	Points        int          `json:"points"`
}

// Quiz - квиз, привязанный к уроку.
type Quiz struct {
	ID               string
	LessonID         string
	Title            string
	Description      string
	Questions        []Question
	PassingScore     int
	TimeLimitMinutes *int
	MaxPoints        int
	IsActive         bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Normalize проставляет ID и тип вопросов и пересчитывает MaxPoints.
// Очки и проходной балл не трогает: значения по умолчанию подставляются
// только при чтении, когда поля нет вовсе.
func (q *Quiz) Normalize() {
	for i := range q.Questions {
		qs := &q.Questions[i]
		if strings.TrimSpace(qs.ID) == "" {
			qs.ID = strconv.Itoa(i)
		}
		if qs.Type == "" {
			qs.Type = TypeMultipleChoice
		}
	}
	q.RecalculateMaxPoints()
}

// questionFields - Question без методов, чтобы не зациклить UnmarshalJSON.
type questionFields Question

// UnmarshalJSON подставляет DefaultQuestionPoints, только если points нет.
func (qs *Question) UnmarshalJSON(data []byte) error {
	var raw struct {
		questionFields
		Points *int `json:"points"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*qs = Question(raw.questionFields)
	qs.Points = DefaultQuestionPoints
	if raw.Points != nil {
		qs.Points = *raw.Points
	}
	return nil
}

// RecalculateMaxPoints выставляет MaxPoints как сумму очков вопросов.
func (q *Quiz) RecalculateMaxPoints() {
	q.MaxPoints = MaxPoints(q.Questions)
}

// MaxPoints возвращает сумму очков по вопросам.
func MaxPoints(questions []Question) int {
	total := 0
	for _, qs := range questions {
		if qs.Points > 0 {
			total += qs.Points
		}
	}
	return total
}

// Validate проверяет квиз перед сохранением.
func (q *Quiz) Validate() error {
	if !shared.ValidID(q.ID) {
		return shared.NewDomainError("quiz", "Validate", shared.ErrInvalidID, "invalid quiz ID")
	}
	if !shared.ValidID(q.LessonID) {
		return shared.NewDomainError("quiz", "Validate", shared.ErrInvalidID, "invalid lesson ID")
	}
	if q.PassingScore < 0 || q.PassingScore > 100 {
		return shared.NewDomainError("quiz", "Validate", shared.ErrInvalidInput, "passing score must be within 0..100")
	}
	seen := make(map[string]struct{}, len(q.Questions))
	for _, qs := range q.Questions {
		if !qs.Type.IsValid() || qs.Points < 0 {
			return shared.ErrInvalidQuestion
		}
		if _, dup := seen[qs.ID]; dup {
			return shared.NewDomainError("quiz", "Validate", shared.ErrInvalidInput, "duplicate question ID "+qs.ID)
		}
		seen[qs.ID] = struct{}{}
	}
	return nil
}

// Redacted возвращает копию вопросов без правильных ответов и пояснений.
// Сохранённый квиз не меняется.
func (q *Quiz) Redacted() []Question {
	out := make([]Question, len(q.Questions))
	for i, qs := range q.Questions {
		cp := qs
		if qs.Options != nil {
			cp.Options = append([]string(nil), qs.Options...)
		}
		cp.CorrectAnswer = ""
		cp.Explanation = ""
		out[i] = cp
	}
	return out
}

// Snapshot возвращает независимую копию вопросов для оценки.
func (q *Quiz) Snapshot() []Question {
	out := make([]Question, len(q.Questions))
	for i, qs := range q.Questions {
		cp := qs
		if qs.Options != nil {
			cp.Options = append([]string(nil), qs.Options...)
		}
		out[i] = cp
	}
	return out
}

// Repository - каталог квизов.
type Repository interface {
	// GetByID возвращает квиз по ID.
	// Возвращает ErrQuizNotFound, если квиза нет.
	GetByID(ctx context.Context, id string) (*Quiz, error)

	// ListByLesson возвращает активные квизы урока.
	ListByLesson(ctx context.Context, lessonID string) ([]*Quiz, error)

	// Save создаёт или заменяет квиз; MaxPoints пересчитывается перед записью.
	Save(ctx context.Context, q *Quiz) error
}
