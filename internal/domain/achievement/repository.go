package achievement

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository - определения достижений и полученные учениками достижения.
type Repository interface {
	// GetByID возвращает определение.
	// Возвращает ErrAchievementNotFound, если его нет.
	GetByID(ctx context.Context, id string) (*Achievement, error)

	// ListActive возвращает все активные определения.
	ListActive(ctx context.Context) ([]*Achievement, error)

	// ListUnearned возвращает активные определения, которых у ученика ещё нет.
	ListUnearned(ctx context.Context, learnerID string) ([]*Achievement, error)

	// ListEarned возвращает полученные учеником достижения (новые первыми).
	ListEarned(ctx context.Context, learnerID string) ([]*UserAchievement, error)

	// Upsert создаёт или обновляет определение (сиды, админка).
	Upsert(ctx context.Context, a *Achievement) error
}

// StatsReader пересчитывает агрегаты ученика из исходных записей.
type StatsReader interface {
	LearnerStats(ctx context.Context, learnerID string) (Stats, error)
}

// Ledger - атомарные примитивы начисления.
//
// Каждый метод - одна транзакция хранилища: запись факта, изменение
// баланса и строка points_history либо применяются вместе, либо никак.
type Ledger interface {
	// GrantAchievement вставляет (learner, achievement) и начисляет points,
	// только если вставка действительно произошла. Если запись уже есть,
	// возвращает ErrStorageConflict и Credit.Granted=false.
	GrantAchievement(ctx context.Context, learnerID, achievementID string, points int) (Credit, error)

	// GrantQuizPass - то же самое для бонуса за первое прохождение квиза.
	GrantQuizPass(ctx context.Context, learnerID, quizID string, points int) (Credit, error)

	// GrantLessonReward записывает факт награды за урок (learner, lesson) и
	// начисляет points. Факт пишется и при points = 0: по нему повторный
	// вызов завершения урока понимает, что награда уже выдана.
	// Если факт уже есть, возвращает ErrStorageConflict.
	GrantLessonReward(ctx context.Context, learnerID, lessonID string, points int) (Credit, error)
}

// HistoryEntry - строка журнала очков (points_history).
type HistoryEntry struct {
	Delta     int       `json:"delta"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

// HistoryReader читает журнал начислений ученика, новые записи первыми.
type HistoryReader interface {
	// PointsHistory возвращает не больше limit записей; limit <= 0 - все.
	PointsHistory(ctx context.Context, learnerID string, limit int) ([]HistoryEntry, error)
}
