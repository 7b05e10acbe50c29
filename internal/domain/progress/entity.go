// Package progress содержит записи прогресса ученика: уроки и попытки квизов.
//
// Оба типа записей меняются только условной записью в хранилище:
// завершение урока монотонно (true никогда не становится false),
// результат попытки фиксируется один раз.
package progress

import (
	"time"

	"github.com/golearn/learning-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LESSON PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

// LessonProgress - прогресс ученика по уроку. Ключ (LearnerID, LessonID) уникален.
type LessonProgress struct {
	LearnerID        string
	LessonID         string
	StartedAt        time.Time
	CompletedAt      *time.Time
	IsCompleted      bool
	TimeSpentMinutes int

	// Difficulty - снимок сложности урока на момент завершения,
	// нужен для агрегатов (beginner_lessons, difficulty_variety).
	Difficulty shared.Difficulty
}

// NewLessonProgress создаёт запись «урок начат».
func NewLessonProgress(learnerID, lessonID string, at time.Time) *LessonProgress {
	return &LessonProgress{
		LearnerID: learnerID,
		LessonID:  lessonID,
		StartedAt: at.UTC(),
	}
}

// Complete применяет завершение к записи в памяти.
// Возвращает false, если урок уже был завершён (запись не меняется).
func (p *LessonProgress) Complete(difficulty shared.Difficulty, at time.Time) bool {
	if p.IsCompleted {
		return false
	}
	t := at.UTC()
	p.IsCompleted = true
	p.CompletedAt = &t
	p.Difficulty = difficulty
	if !p.StartedAt.IsZero() && t.After(p.StartedAt) {
		p.TimeSpentMinutes = int(t.Sub(p.StartedAt).Minutes())
	}
	return true
}

// ══════════════════════════════════════════════════════════════════════════════
// QUIZ ATTEMPT
// ══════════════════════════════════════════════════════════════════════════════

// QuizAttempt - попытка прохождения квиза.
type QuizAttempt struct {
	ID               string
	LearnerID        string
	QuizID           string
	Answers          map[string]string
	Score            int
	MaxScore         int
	Passed           bool
	StartedAt        time.Time
	CompletedAt      *time.Time
	IsCompleted      bool
	TimeTakenSeconds int
}

// NewQuizAttempt создаёт открытую попытку; MaxScore копируется из квиза.
func NewQuizAttempt(id, learnerID, quizID string, maxScore int, at time.Time) *QuizAttempt {
	return &QuizAttempt{
		ID:        id,
		LearnerID: learnerID,
		QuizID:    quizID,
		Answers:   map[string]string{},
		MaxScore:  maxScore,
		StartedAt: at.UTC(),
	}
}

// Submission - данные, фиксируемые при сдаче попытки.
type Submission struct {
	Answers     map[string]string
	Score       int
	MaxScore    int
	Passed      bool
	CompletedAt time.Time
}

// Apply применяет сдачу к попытке в памяти.
// Возвращает false, если попытка уже сдана.
func (a *QuizAttempt) Apply(s Submission) bool {
	if a.IsCompleted {
		return false
	}
	t := s.CompletedAt.UTC()
	a.Answers = copyAnswers(s.Answers)
	a.Score = s.Score
	a.MaxScore = s.MaxScore
	a.Passed = s.Passed
	a.CompletedAt = &t
	a.IsCompleted = true
	if t.After(a.StartedAt) {
		a.TimeTakenSeconds = int(t.Sub(a.StartedAt).Seconds())
	}
	return true
}

// Percentage возвращает процент набранных очков.
func (a *QuizAttempt) Percentage() float64 {
	if a.MaxScore <= 0 {
		return 0
	}
	return float64(a.Score) * 100 / float64(a.MaxScore)
}

// Clone возвращает независимую копию.
func (a *QuizAttempt) Clone() *QuizAttempt {
	cp := *a
	cp.Answers = copyAnswers(a.Answers)
	if a.CompletedAt != nil {
		t := *a.CompletedAt
		cp.CompletedAt = &t
	}
	return &cp
}

func copyAnswers(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
