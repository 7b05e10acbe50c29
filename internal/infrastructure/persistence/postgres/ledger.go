package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/golearn/learning-hub/internal/domain/achievement"
	"github.com/golearn/learning-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEDGER
// Every method is one transaction: the learner row is locked first, then the
// reward fact is inserted, then points, level and points_history change.
// A fact that already exists rolls the whole transaction back.
// ══════════════════════════════════════════════════════════════════════════════

// Ledger implements achievement.Ledger using PostgreSQL.
type Ledger struct {
	conn     *Connection
	perLevel int
}

// NewLedger creates a ledger. perLevel is the level step.
func NewLedger(conn *Connection, perLevel int) *Ledger {
	if perLevel <= 0 {
		perLevel = shared.DefaultPointsPerLevel
	}
	return &Ledger{conn: conn, perLevel: perLevel}
}

var errFactExists = errors.New("reward fact already recorded")

// GrantAchievement records (learner, achievement) and credits points in the
// same transaction. Returns ErrAlreadyEarned if the pair exists.
func (l *Ledger) GrantAchievement(ctx context.Context, learnerID, achievementID string, points int) (achievement.Credit, error) {
	insert := func(ctx context.Context, tx pgx.Tx, at time.Time) error {
		tag, err := tx.Exec(ctx, `
			INSERT INTO user_achievements (learner_id, achievement_id, earned_at, progress)
			VALUES ($1, $2, $3, 1.0)
			ON CONFLICT (learner_id, achievement_id) DO NOTHING
		`, learnerID, achievementID, at)
		if err != nil {
			if IsForeignKeyViolation(err) {
				return shared.ErrAchievementNotFound
			}
			return err
		}
		if tag.RowsAffected() == 0 {
			return errFactExists
		}
		return nil
	}

	credit, err := l.grant(ctx, "GrantAchievement", learnerID, points, achievement.AchievementReason(achievementID), insert)
	if errors.Is(err, errFactExists) {
		return achievement.Credit{}, shared.ErrAlreadyEarned
	}
	return credit, err
}

// GrantQuizPass records the first-pass bonus of a quiz and credits points.
func (l *Ledger) GrantQuizPass(ctx context.Context, learnerID, quizID string, points int) (achievement.Credit, error) {
	insert := func(ctx context.Context, tx pgx.Tx, at time.Time) error {
		tag, err := tx.Exec(ctx, `
			INSERT INTO quiz_pass_rewards (learner_id, quiz_id, points, created_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (learner_id, quiz_id) DO NOTHING
		`, learnerID, quizID, points, at)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return errFactExists
		}
		return nil
	}

	credit, err := l.grant(ctx, "GrantQuizPass", learnerID, points, achievement.QuizPassReason(quizID), insert)
	if errors.Is(err, errFactExists) {
		return achievement.Credit{}, shared.WrapError("achievement", "GrantQuizPass", shared.ErrStorageConflict, "quiz pass already rewarded", err)
	}
	return credit, err
}

// GrantLessonReward records the reward of a completed lesson and credits
// points. The fact is written even for a zero reward.
func (l *Ledger) GrantLessonReward(ctx context.Context, learnerID, lessonID string, points int) (achievement.Credit, error) {
	insert := func(ctx context.Context, tx pgx.Tx, at time.Time) error {
		tag, err := tx.Exec(ctx, `
			INSERT INTO lesson_rewards (learner_id, lesson_id, points, created_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (learner_id, lesson_id) DO NOTHING
		`, learnerID, lessonID, points, at)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return errFactExists
		}
		return nil
	}

	credit, err := l.grant(ctx, "GrantLessonReward", learnerID, points, achievement.LessonReason(lessonID), insert)
	if errors.Is(err, errFactExists) {
		return achievement.Credit{}, shared.WrapError("achievement", "GrantLessonReward", shared.ErrStorageConflict, "lesson already rewarded", err)
	}
	return credit, err
}

func (l *Ledger) grant(
	ctx context.Context,
	op, learnerID string,
	points int,
	reason string,
	record func(ctx context.Context, tx pgx.Tx, at time.Time) error,
) (achievement.Credit, error) {
	var credit achievement.Credit
	now := time.Now().UTC()

	err := l.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		var total, level int
		err := tx.QueryRow(ctx,
			`SELECT points, level FROM learners WHERE id = $1 FOR UPDATE`,
			learnerID,
		).Scan(&total, &level)
		if err != nil {
			if IsNoRows(err) {
				return shared.ErrLearnerNotFound
			}
			return err
		}

		if err := record(ctx, tx, now); err != nil {
			return err
		}

		credit, err = l.credit(ctx, tx, learnerID, total, level, points, reason, now)
		return err
	})
	if err != nil {
		var domainErr *shared.DomainError
		if errors.As(err, &domainErr) || errors.Is(err, errFactExists) {
			return achievement.Credit{}, err
		}
		return achievement.Credit{}, storageError("achievement", op, err)
	}
	return credit, nil
}

// credit applies the balance change inside tx. The learner row is locked.
func (l *Ledger) credit(ctx context.Context, tx pgx.Tx, learnerID string, total, level, points int, reason string, at time.Time) (achievement.Credit, error) {
	oldLevel := level
	if oldLevel < int(shared.MinLevel) {
		oldLevel = int(shared.MinLevel)
	}
	newTotal := total + points
	newLevel := shared.Points(newTotal).Level(l.perLevel).Int()

	_, err := tx.Exec(ctx,
		`UPDATE learners SET points = $2, level = $3, updated_at = $4 WHERE id = $1`,
		learnerID, newTotal, newLevel, at,
	)
	if err != nil {
		return achievement.Credit{}, err
	}

	if points != 0 {
		_, err = tx.Exec(ctx,
			`INSERT INTO points_history (learner_id, delta, reason, created_at) VALUES ($1, $2, $3, $4)`,
			learnerID, points, reason, at,
		)
		if err != nil {
			return achievement.Credit{}, err
		}
	}

	return achievement.Credit{
		Granted:  true,
		Amount:   points,
		NewTotal: newTotal,
		OldLevel: oldLevel,
		NewLevel: newLevel,
	}, nil
}

// PointsHistory implements achievement.HistoryReader.
func (l *Ledger) PointsHistory(ctx context.Context, learnerID string, limit int) ([]achievement.HistoryEntry, error) {
	query := `SELECT delta, reason, created_at FROM points_history WHERE learner_id = $1 ORDER BY id DESC`
	args := []interface{}{learnerID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := l.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, storageError("achievement", "PointsHistory", err)
	}
	defer rows.Close()

	entries := []achievement.HistoryEntry{}
	for rows.Next() {
		var e achievement.HistoryEntry
		if err := rows.Scan(&e.Delta, &e.Reason, &e.CreatedAt); err != nil {
			return nil, storageError("achievement", "PointsHistory", err)
		}
		entries = append(entries, e)
	}
	return entries, storageError("achievement", "PointsHistory", rows.Err())
}
