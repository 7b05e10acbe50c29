package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/golearn/learning-hub/internal/domain/lesson"
	"github.com/golearn/learning-hub/internal/domain/quiz"
	"github.com/golearn/learning-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LESSON REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// LessonRepository implements lesson.Repository using PostgreSQL.
type LessonRepository struct {
	conn *Connection
}

// NewLessonRepository creates a new PostgreSQL lesson repository.
func NewLessonRepository(conn *Connection) *LessonRepository {
	return &LessonRepository{conn: conn}
}

const lessonColumns = `id, title, description, content, difficulty, estimated_minutes, points_reward, sort_order, tags, is_published, created_at, updated_at`

// GetByID retrieves a lesson, published or not.
func (r *LessonRepository) GetByID(ctx context.Context, id string) (*lesson.Lesson, error) {
	query := `SELECT ` + lessonColumns + ` FROM lessons WHERE id = $1`

	l, err := scanLesson(r.conn.QueryRow(ctx, query, id))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrLessonNotFound
		}
		return nil, storageError("lesson", "GetByID", err)
	}
	return l, nil
}

// List returns published lessons in catalog order.
func (r *LessonRepository) List(ctx context.Context) ([]*lesson.Lesson, error) {
	query := `SELECT ` + lessonColumns + ` FROM lessons WHERE is_published ORDER BY sort_order, id`

	rows, err := r.conn.Query(ctx, query)
	if err != nil {
		return nil, storageError("lesson", "List", err)
	}
	defer rows.Close()

	var lessons []*lesson.Lesson
	for rows.Next() {
		l, err := scanLesson(rows)
		if err != nil {
			return nil, storageError("lesson", "List", err)
		}
		lessons = append(lessons, l)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("lesson", "List", err)
	}
	return lessons, nil
}

// Save creates or replaces a lesson.
func (r *LessonRepository) Save(ctx context.Context, l *lesson.Lesson) error {
	l.Normalize()
	if err := l.Validate(); err != nil {
		return err
	}

	now := time.Now().UTC()
	if l.CreatedAt.IsZero() {
		l.CreatedAt = now
	}
	l.UpdatedAt = now
	tags := l.Tags
	if tags == nil {
		tags = []string{}
	}

	query := `
		INSERT INTO lessons (` + lessonColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			content = EXCLUDED.content,
			difficulty = EXCLUDED.difficulty,
			estimated_minutes = EXCLUDED.estimated_minutes,
			points_reward = EXCLUDED.points_reward,
			sort_order = EXCLUDED.sort_order,
			tags = EXCLUDED.tags,
			is_published = EXCLUDED.is_published,
			updated_at = EXCLUDED.updated_at
	`
	_, err := r.conn.Exec(ctx, query,
		l.ID, l.Title, l.Description, l.Content, string(l.Difficulty),
		l.EstimatedMinutes, l.PointsReward, l.Order, tags, l.IsPublished,
		l.CreatedAt, l.UpdatedAt,
	)
	return storageError("lesson", "Save", err)
}

func scanLesson(row pgx.Row) (*lesson.Lesson, error) {
	var (
		l          lesson.Lesson
		difficulty string
	)
	err := row.Scan(
		&l.ID, &l.Title, &l.Description, &l.Content, &difficulty,
		&l.EstimatedMinutes, &l.PointsReward, &l.Order, &l.Tags, &l.IsPublished,
		&l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	l.Difficulty = shared.ParseDifficulty(difficulty)
	return &l, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// QUIZ REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// QuizRepository implements quiz.Repository using PostgreSQL.
// Questions are kept as one JSONB document per quiz.
type QuizRepository struct {
	conn *Connection
}

// NewQuizRepository creates a new PostgreSQL quiz repository.
func NewQuizRepository(conn *Connection) *QuizRepository {
	return &QuizRepository{conn: conn}
}

const quizColumns = `id, lesson_id, title, description, questions, passing_score, time_limit_minutes, max_points, is_active, created_at, updated_at`

// GetByID retrieves a quiz, active or not.
func (r *QuizRepository) GetByID(ctx context.Context, id string) (*quiz.Quiz, error) {
	query := `SELECT ` + quizColumns + ` FROM quizzes WHERE id = $1`

	q, err := scanQuiz(r.conn.QueryRow(ctx, query, id))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrQuizNotFound
		}
		return nil, storageError("quiz", "GetByID", err)
	}
	return q, nil
}

// ListByLesson returns active quizzes of a lesson.
func (r *QuizRepository) ListByLesson(ctx context.Context, lessonID string) ([]*quiz.Quiz, error) {
	query := `SELECT ` + quizColumns + ` FROM quizzes WHERE lesson_id = $1 AND is_active ORDER BY id`

	rows, err := r.conn.Query(ctx, query, lessonID)
	if err != nil {
		return nil, storageError("quiz", "ListByLesson", err)
	}
	defer rows.Close()

	var quizzes []*quiz.Quiz
	for rows.Next() {
		q, err := scanQuiz(rows)
		if err != nil {
			return nil, storageError("quiz", "ListByLesson", err)
		}
		quizzes = append(quizzes, q)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("quiz", "ListByLesson", err)
	}
	return quizzes, nil
}

// Save creates or replaces a quiz. MaxPoints is recomputed from the questions.
func (r *QuizRepository) Save(ctx context.Context, q *quiz.Quiz) error {
	q.Normalize()
	if err := q.Validate(); err != nil {
		return err
	}

	questions, err := json.Marshal(q.Questions)
	if err != nil {
		return shared.WrapError("quiz", "Save", shared.ErrInvalidInput, "failed to encode questions", err)
	}

	now := time.Now().UTC()
	if q.CreatedAt.IsZero() {
		q.CreatedAt = now
	}
	q.UpdatedAt = now

	query := `
		INSERT INTO quizzes (` + quizColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			lesson_id = EXCLUDED.lesson_id,
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			questions = EXCLUDED.questions,
			passing_score = EXCLUDED.passing_score,
			time_limit_minutes = EXCLUDED.time_limit_minutes,
			max_points = EXCLUDED.max_points,
			is_active = EXCLUDED.is_active,
			updated_at = EXCLUDED.updated_at
	`
	_, err = r.conn.Exec(ctx, query,
		q.ID, q.LessonID, q.Title, q.Description, questions,
		q.PassingScore, q.TimeLimitMinutes, q.MaxPoints, q.IsActive,
		q.CreatedAt, q.UpdatedAt,
	)
	if IsForeignKeyViolation(err) {
		return shared.WrapError("quiz", "Save", shared.ErrNotFound, "lesson of quiz not found", err)
	}
	return storageError("quiz", "Save", err)
}

func scanQuiz(row pgx.Row) (*quiz.Quiz, error) {
	var (
		q         quiz.Quiz
		questions []byte
	)
	err := row.Scan(
		&q.ID, &q.LessonID, &q.Title, &q.Description, &questions,
		&q.PassingScore, &q.TimeLimitMinutes, &q.MaxPoints, &q.IsActive,
		&q.CreatedAt, &q.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(questions) > 0 {
		if err := json.Unmarshal(questions, &q.Questions); err != nil {
			return nil, err
		}
	}
	return &q, nil
}
