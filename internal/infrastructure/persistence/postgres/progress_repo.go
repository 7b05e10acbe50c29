package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/golearn/learning-hub/internal/domain/progress"
	"github.com/golearn/learning-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// ProgressRepository implements progress.Repository using PostgreSQL.
type ProgressRepository struct {
	conn *Connection
}

// NewProgressRepository creates a new PostgreSQL progress repository.
func NewProgressRepository(conn *Connection) *ProgressRepository {
	return &ProgressRepository{conn: conn}
}

const lessonProgressColumns = `learner_id, lesson_id, started_at, completed_at, is_completed, time_spent_minutes, difficulty`

// StartLesson inserts the "started" row if none exists.
func (r *ProgressRepository) StartLesson(ctx context.Context, learnerID, lessonID string, at time.Time) (*progress.LessonProgress, bool, error) {
	query := `
		INSERT INTO lesson_progress (learner_id, lesson_id, started_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (learner_id, lesson_id) DO NOTHING
		RETURNING ` + lessonProgressColumns

	p, err := scanLessonProgress(r.conn.QueryRow(ctx, query, learnerID, lessonID, at.UTC()))
	switch {
	case err == nil:
		return p, true, nil
	case IsNoRows(err):
		// строка уже была
		p, err = r.GetLessonProgress(ctx, learnerID, lessonID)
		return p, false, err
	case IsForeignKeyViolation(err):
		return nil, false, shared.ErrLearnerNotFound
	}
	return nil, false, storageError("progress", "StartLesson", err)
}

// CompleteLesson is a single conditional upsert. The DO UPDATE branch only
// fires while is_completed is false, so RETURNING yields a row for exactly
// one caller per (learner, lesson).
func (r *ProgressRepository) CompleteLesson(ctx context.Context, learnerID, lessonID string, difficulty shared.Difficulty, at time.Time) (*progress.LessonProgress, bool, error) {
	query := `
		INSERT INTO lesson_progress (learner_id, lesson_id, started_at, completed_at, is_completed, difficulty)
		VALUES ($1, $2, $3, $3, TRUE, $4)
		ON CONFLICT (learner_id, lesson_id) DO UPDATE SET
			is_completed = TRUE,
			completed_at = EXCLUDED.completed_at,
			difficulty = EXCLUDED.difficulty,
			time_spent_minutes = GREATEST(0,
				FLOOR(EXTRACT(EPOCH FROM (EXCLUDED.completed_at - lesson_progress.started_at)) / 60)::INTEGER)
		WHERE lesson_progress.is_completed = FALSE
		RETURNING ` + lessonProgressColumns

	p, err := scanLessonProgress(r.conn.QueryRow(ctx, query, learnerID, lessonID, at.UTC(), string(difficulty)))
	switch {
	case err == nil:
		return p, true, nil
	case IsNoRows(err):
		p, err = r.GetLessonProgress(ctx, learnerID, lessonID)
		return p, false, err
	case IsForeignKeyViolation(err):
		return nil, false, shared.ErrLearnerNotFound
	}
	return nil, false, storageError("progress", "CompleteLesson", err)
}

// GetLessonProgress returns the progress row of a lesson.
func (r *ProgressRepository) GetLessonProgress(ctx context.Context, learnerID, lessonID string) (*progress.LessonProgress, error) {
	query := `SELECT ` + lessonProgressColumns + ` FROM lesson_progress WHERE learner_id = $1 AND lesson_id = $2`

	p, err := scanLessonProgress(r.conn.QueryRow(ctx, query, learnerID, lessonID))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.NewDomainError("progress", "GetLessonProgress", shared.ErrNotFound, "lesson progress not found")
		}
		return nil, storageError("progress", "GetLessonProgress", err)
	}
	return p, nil
}

func scanLessonProgress(row pgx.Row) (*progress.LessonProgress, error) {
	var (
		p          progress.LessonProgress
		difficulty string
	)
	err := row.Scan(
		&p.LearnerID, &p.LessonID, &p.StartedAt, &p.CompletedAt,
		&p.IsCompleted, &p.TimeSpentMinutes, &difficulty,
	)
	if err != nil {
		return nil, err
	}
	p.Difficulty = shared.Difficulty(difficulty)
	return &p, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// QUIZ ATTEMPTS
// ══════════════════════════════════════════════════════════════════════════════

const attemptColumns = `id, learner_id, quiz_id, answers, score, max_score, passed, started_at, completed_at, is_completed, time_taken_seconds`

// CreateAttempt stores a new open attempt.
func (r *ProgressRepository) CreateAttempt(ctx context.Context, a *progress.QuizAttempt) error {
	answers, err := json.Marshal(nonNilAnswers(a.Answers))
	if err != nil {
		return shared.WrapError("progress", "CreateAttempt", shared.ErrInvalidInput, "failed to encode answers", err)
	}

	query := `
		INSERT INTO quiz_attempts (id, learner_id, quiz_id, answers, max_score, started_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = r.conn.Exec(ctx, query, a.ID, a.LearnerID, a.QuizID, answers, a.MaxScore, a.StartedAt.UTC())
	switch {
	case err == nil:
		return nil
	case IsUniqueViolation(err):
		return shared.WrapError("progress", "CreateAttempt", shared.ErrAlreadyExists, "attempt already exists", err)
	case IsForeignKeyViolation(err):
		return shared.ErrLearnerNotFound
	}
	return storageError("progress", "CreateAttempt", err)
}

// GetAttempt retrieves an attempt by ID.
func (r *ProgressRepository) GetAttempt(ctx context.Context, attemptID string) (*progress.QuizAttempt, error) {
	query := `SELECT ` + attemptColumns + ` FROM quiz_attempts WHERE id = $1`

	a, err := scanAttempt(r.conn.QueryRow(ctx, query, attemptID))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrAttemptNotFound
		}
		return nil, storageError("progress", "GetAttempt", err)
	}
	return a, nil
}

// SubmitAttempt records the result with an UPDATE guarded by
// is_completed = FALSE. A second submission updates nothing.
func (r *ProgressRepository) SubmitAttempt(ctx context.Context, attemptID string, s progress.Submission) (*progress.QuizAttempt, error) {
	answers, err := json.Marshal(nonNilAnswers(s.Answers))
	if err != nil {
		return nil, shared.WrapError("progress", "SubmitAttempt", shared.ErrInvalidInput, "failed to encode answers", err)
	}

	query := `
		UPDATE quiz_attempts SET
			answers = $2,
			score = $3,
			max_score = $4,
			passed = $5,
			completed_at = $6,
			is_completed = TRUE,
			time_taken_seconds = GREATEST(0, FLOOR(EXTRACT(EPOCH FROM ($6 - started_at)))::INTEGER)
		WHERE id = $1 AND is_completed = FALSE
		RETURNING ` + attemptColumns

	a, err := scanAttempt(r.conn.QueryRow(ctx, query,
		attemptID, answers, s.Score, s.MaxScore, s.Passed, s.CompletedAt.UTC(),
	))
	if err == nil {
		return a, nil
	}
	if !IsNoRows(err) {
		return nil, storageError("progress", "SubmitAttempt", err)
	}

	// ничего не обновлено: попытки нет или она уже сдана
	if _, err := r.GetAttempt(ctx, attemptID); err != nil {
		return nil, err
	}
	return nil, shared.ErrAttemptAlreadySubmitted
}

// ListAttempts returns attempts of a learner, newest first.
func (r *ProgressRepository) ListAttempts(ctx context.Context, learnerID string, limit int) ([]*progress.QuizAttempt, error) {
	query := `SELECT ` + attemptColumns + ` FROM quiz_attempts WHERE learner_id = $1 ORDER BY started_at DESC`
	args := []interface{}{learnerID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, storageError("progress", "ListAttempts", err)
	}
	defer rows.Close()

	var attempts []*progress.QuizAttempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, storageError("progress", "ListAttempts", err)
		}
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("progress", "ListAttempts", err)
	}
	return attempts, nil
}

func scanAttempt(row pgx.Row) (*progress.QuizAttempt, error) {
	var (
		a       progress.QuizAttempt
		answers []byte
	)
	err := row.Scan(
		&a.ID, &a.LearnerID, &a.QuizID, &answers,
		&a.Score, &a.MaxScore, &a.Passed,
		&a.StartedAt, &a.CompletedAt, &a.IsCompleted, &a.TimeTakenSeconds,
	)
	if err != nil {
		return nil, err
	}
	a.Answers = map[string]string{}
	if len(answers) > 0 {
		if err := json.Unmarshal(answers, &a.Answers); err != nil {
			return nil, err
		}
	}
	return &a, nil
}

func nonNilAnswers(in map[string]string) map[string]string {
	if in == nil {
		return map[string]string{}
	}
	return in
}
