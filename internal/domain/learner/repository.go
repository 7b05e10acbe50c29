package learner

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет операции хранилища над учениками.
type Repository interface {
	// GetByID возвращает ученика по ID.
	// Возвращает ErrLearnerNotFound, если ученик не найден.
	GetByID(ctx context.Context, id string) (*Learner, error)

	// Ensure создаёт ученика, если его ещё нет, и возвращает актуальную запись.
	// Существующая запись не перезаписывается (баланс и серия сохраняются).
	Ensure(ctx context.Context, learner *Learner) (*Learner, error)

	// TouchActivity атомарно применяет правило серии к ученику на момент at.
	// Чтение старой серии и запись новой выполняются как одна операция.
	TouchActivity(ctx context.Context, learnerID string, at time.Time) (StreakChange, error)

	// TopByPoints возвращает учеников с наибольшим балансом (для перестроения лидерборда).
	TopByPoints(ctx context.Context, limit int) ([]*Learner, error)
}
