// Package achievement содержит определения достижений, агрегатную статистику
// ученика и чистую функцию проверки критериев.
package achievement

import (
	"strings"
	"time"

	"github.com/golearn/learning-hub/internal/domain/shared"
)

// Criteria - набор порогов: метрика -> минимальное значение.
type Criteria map[Metric]int

// Achievement - определение достижения.
type Achievement struct {
	ID           string   `json:"id" bson:"_id"`
	Title        string   `json:"title" bson:"title"`
	Description  string   `json:"description" bson:"description"`
	Icon         string   `json:"icon" bson:"icon"`
	BadgeColor   string   `json:"badge_color" bson:"badge_color"`
	PointsReward int      `json:"points_reward" bson:"points_reward"`
	Criteria     Criteria `json:"criteria" bson:"criteria"`
	IsActive     bool     `json:"is_active" bson:"is_active"`

	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// Validate проверяет определение перед сохранением.
func (a *Achievement) Validate() error {
	if !shared.ValidID(a.ID) {
		return shared.NewDomainError("achievement", "Validate", shared.ErrInvalidID, "invalid achievement ID")
	}
	if strings.TrimSpace(a.Title) == "" {
		return shared.NewDomainError("achievement", "Validate", shared.ErrEmptyValue, "achievement title is required")
	}
	if a.PointsReward < 0 {
		return shared.NewDomainError("achievement", "Validate", shared.ErrInvalidInput, "points reward cannot be negative")
	}
	return nil
}

// UserAchievement - факт получения достижения. Ключ (LearnerID, AchievementID) уникален.
type UserAchievement struct {
	LearnerID     string    `json:"learner_id"`
	AchievementID string    `json:"achievement_id"`
	EarnedAt      time.Time `json:"earned_at"`
	Progress      float64   `json:"progress"`
}

// Credit - результат операции ledger.
type Credit struct {
	// Granted - начисление действительно произошло в этом вызове.
	Granted bool

	Amount   int
	NewTotal int
	OldLevel int
	NewLevel int
}

// LeveledUp сообщает, поднялся ли уровень в результате начисления.
func (c Credit) LeveledUp() bool {
	return c.Granted && c.NewLevel > c.OldLevel
}

// LessonReason - причина начисления за урок в points_history.
func LessonReason(lessonID string) string {
	return "lesson_completed:" + lessonID
}

// AchievementReason - причина начисления за достижение.
func AchievementReason(achievementID string) string {
	return "achievement:" + achievementID
}

// QuizPassReason - причина начисления за первое прохождение квиза.
func QuizPassReason(quizID string) string {
	return "quiz_passed:" + quizID
}
