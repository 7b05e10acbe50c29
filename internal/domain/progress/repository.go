package progress

import (
	"context"
	"time"

	"github.com/golearn/learning-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет операции над прогрессом уроков и попытками квизов.
type Repository interface {
	// ─────────────────────────────────────────────────────────────────────────
	// Lessons
	// ─────────────────────────────────────────────────────────────────────────

	// StartLesson создаёт запись «урок начат», если её нет.
	// created=false означает, что запись уже существовала (дубликат не создаётся).
	StartLesson(ctx context.Context, learnerID, lessonID string, at time.Time) (p *LessonProgress, created bool, err error)

	// CompleteLesson выполняет условную запись: upsert, который меняет строку
	// только если она ещё не завершена. transitioned=true ровно для одного
	// вызова на пару (ученик, урок), даже при конкурентных вызовах.
	CompleteLesson(ctx context.Context, learnerID, lessonID string, difficulty shared.Difficulty, at time.Time) (p *LessonProgress, transitioned bool, err error)

	// GetLessonProgress возвращает прогресс по уроку.
	// Возвращает shared.ErrNotFound, если записи нет.
	GetLessonProgress(ctx context.Context, learnerID, lessonID string) (*LessonProgress, error)

	// ─────────────────────────────────────────────────────────────────────────
	// Quiz attempts
	// ─────────────────────────────────────────────────────────────────────────

	// CreateAttempt сохраняет новую открытую попытку.
	CreateAttempt(ctx context.Context, attempt *QuizAttempt) error

	// GetAttempt возвращает попытку по ID.
	// Возвращает ErrAttemptNotFound, если попытки нет.
	GetAttempt(ctx context.Context, attemptID string) (*QuizAttempt, error)

	// SubmitAttempt фиксирует результат условной записью (WHERE is_completed = false).
	// Возвращает ErrAttemptAlreadySubmitted, если попытка уже сдана.
	SubmitAttempt(ctx context.Context, attemptID string, s Submission) (*QuizAttempt, error)

	// ListAttempts возвращает попытки ученика (новые первыми).
	ListAttempts(ctx context.Context, learnerID string, limit int) ([]*QuizAttempt, error)
}
