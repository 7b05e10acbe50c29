package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/golearn/learning-hub/internal/domain/learner"
	"github.com/golearn/learning-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEARNER REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// LearnerRepository implements learner.Repository using PostgreSQL.
type LearnerRepository struct {
	conn *Connection
}

// NewLearnerRepository creates a new PostgreSQL learner repository.
func NewLearnerRepository(conn *Connection) *LearnerRepository {
	return &LearnerRepository{conn: conn}
}

const learnerColumns = `id, email, full_name, role, points, level, streak_days, last_activity_at, created_at, updated_at`

// GetByID retrieves a learner by ID.
func (r *LearnerRepository) GetByID(ctx context.Context, id string) (*learner.Learner, error) {
	query := `SELECT ` + learnerColumns + ` FROM learners WHERE id = $1`

	l, err := scanLearner(r.conn.QueryRow(ctx, query, id))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrLearnerNotFound
		}
		return nil, storageError("learner", "GetByID", err)
	}
	return l, nil
}

// Ensure inserts the learner unless a row with the same ID already exists,
// and returns the stored row either way.
func (r *LearnerRepository) Ensure(ctx context.Context, l *learner.Learner) (*learner.Learner, error) {
	query := `
		INSERT INTO learners (id, email, full_name, role, points, level, streak_days, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		ON CONFLICT (id) DO NOTHING
	`

	createdAt := l.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	level := l.Level
	if level < int(shared.MinLevel) {
		level = int(shared.MinLevel)
	}

	if _, err := r.conn.Exec(ctx, query,
		l.ID, l.Email, l.FullName, string(l.Role), l.Points, level, l.StreakDays, createdAt,
	); err != nil {
		return nil, storageError("learner", "Ensure", err)
	}
	return r.GetByID(ctx, l.ID)
}

// TouchActivity advances the streak of a learner. The row is locked for the
// read-modify-write so concurrent activities of one learner serialize.
func (r *LearnerRepository) TouchActivity(ctx context.Context, learnerID string, at time.Time) (learner.StreakChange, error) {
	var change learner.StreakChange

	err := r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		var (
			days int
			last *time.Time
		)
		err := tx.QueryRow(ctx,
			`SELECT streak_days, last_activity_at FROM learners WHERE id = $1 FOR UPDATE`,
			learnerID,
		).Scan(&days, &last)
		if err != nil {
			if IsNoRows(err) {
				return shared.ErrLearnerNotFound
			}
			return err
		}

		current := learner.Streak{Days: days}
		if last != nil {
			current.LastActiveAt = *last
		}
		var next learner.Streak
		next, change = current.RecordActivity(at)

		_, err = tx.Exec(ctx,
			`UPDATE learners SET streak_days = $2, last_activity_at = $3, updated_at = $4 WHERE id = $1`,
			learnerID, next.Days, next.LastActiveAt, at.UTC(),
		)
		return err
	})
	if err != nil {
		if shared.IsNotFound(err) {
			return learner.StreakChange{}, err
		}
		return learner.StreakChange{}, storageError("learner", "TouchActivity", err)
	}
	return change, nil
}

// TopByPoints returns learners ordered by points, ties broken by ID.
func (r *LearnerRepository) TopByPoints(ctx context.Context, limit int) ([]*learner.Learner, error) {
	query := `SELECT ` + learnerColumns + ` FROM learners ORDER BY points DESC, id ASC`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, storageError("learner", "TopByPoints", err)
	}
	defer rows.Close()

	var learners []*learner.Learner
	for rows.Next() {
		l, err := scanLearner(rows)
		if err != nil {
			return nil, storageError("learner", "TopByPoints", err)
		}
		learners = append(learners, l)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("learner", "TopByPoints", err)
	}
	return learners, nil
}

func scanLearner(row pgx.Row) (*learner.Learner, error) {
	var (
		l    learner.Learner
		role string
	)
	err := row.Scan(
		&l.ID, &l.Email, &l.FullName, &role,
		&l.Points, &l.Level, &l.StreakDays, &l.LastActivityAt,
		&l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	l.Role = shared.Role(role)
	return &l, nil
}
