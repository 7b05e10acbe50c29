package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/golearn/learning-hub/internal/domain/achievement"
	"github.com/golearn/learning-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENT REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// AchievementRepository implements achievement.Repository and
// achievement.StatsReader using PostgreSQL.
type AchievementRepository struct {
	conn *Connection
}

// NewAchievementRepository creates a new PostgreSQL achievement repository.
func NewAchievementRepository(conn *Connection) *AchievementRepository {
	return &AchievementRepository{conn: conn}
}

const achievementColumns = `a.id, a.title, a.description, a.icon, a.badge_color, a.points_reward, a.criteria, a.is_active, a.created_at`

// GetByID retrieves an achievement definition.
func (r *AchievementRepository) GetByID(ctx context.Context, id string) (*achievement.Achievement, error) {
	query := `SELECT ` + achievementColumns + ` FROM achievements a WHERE a.id = $1`

	a, err := scanAchievement(r.conn.QueryRow(ctx, query, id))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrAchievementNotFound
		}
		return nil, storageError("achievement", "GetByID", err)
	}
	return a, nil
}

// ListActive returns all active definitions.
func (r *AchievementRepository) ListActive(ctx context.Context) ([]*achievement.Achievement, error) {
	query := `SELECT ` + achievementColumns + ` FROM achievements a WHERE a.is_active ORDER BY a.id`
	return r.list(ctx, "ListActive", query)
}

// ListUnearned returns active definitions the learner does not hold yet.
func (r *AchievementRepository) ListUnearned(ctx context.Context, learnerID string) ([]*achievement.Achievement, error) {
	query := `
		SELECT ` + achievementColumns + `
		FROM achievements a
		WHERE a.is_active
		  AND NOT EXISTS (
			SELECT 1 FROM user_achievements ua
			WHERE ua.achievement_id = a.id AND ua.learner_id = $1
		  )
		ORDER BY a.id
	`
	return r.list(ctx, "ListUnearned", query, learnerID)
}

func (r *AchievementRepository) list(ctx context.Context, op, query string, args ...interface{}) ([]*achievement.Achievement, error) {
	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, storageError("achievement", op, err)
	}
	defer rows.Close()

	var achievements []*achievement.Achievement
	for rows.Next() {
		a, err := scanAchievement(rows)
		if err != nil {
			return nil, storageError("achievement", op, err)
		}
		achievements = append(achievements, a)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("achievement", op, err)
	}
	return achievements, nil
}

// ListEarned returns achievements earned by a learner, newest first.
func (r *AchievementRepository) ListEarned(ctx context.Context, learnerID string) ([]*achievement.UserAchievement, error) {
	query := `
		SELECT learner_id, achievement_id, earned_at, progress
		FROM user_achievements
		WHERE learner_id = $1
		ORDER BY earned_at DESC
	`

	rows, err := r.conn.Query(ctx, query, learnerID)
	if err != nil {
		return nil, storageError("achievement", "ListEarned", err)
	}
	defer rows.Close()

	var earned []*achievement.UserAchievement
	for rows.Next() {
		var ua achievement.UserAchievement
		if err := rows.Scan(&ua.LearnerID, &ua.AchievementID, &ua.EarnedAt, &ua.Progress); err != nil {
			return nil, storageError("achievement", "ListEarned", err)
		}
		earned = append(earned, &ua)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("achievement", "ListEarned", err)
	}
	return earned, nil
}

// Upsert creates or updates a definition. created_at is kept on update.
func (r *AchievementRepository) Upsert(ctx context.Context, a *achievement.Achievement) error {
	if err := a.Validate(); err != nil {
		return err
	}

	criteria, err := json.Marshal(a.Criteria)
	if err != nil {
		return shared.WrapError("achievement", "Upsert", shared.ErrInvalidInput, "failed to encode criteria", err)
	}
	createdAt := a.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query := `
		INSERT INTO achievements (id, title, description, icon, badge_color, points_reward, criteria, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			icon = EXCLUDED.icon,
			badge_color = EXCLUDED.badge_color,
			points_reward = EXCLUDED.points_reward,
			criteria = EXCLUDED.criteria,
			is_active = EXCLUDED.is_active
	`
	_, err = r.conn.Exec(ctx, query,
		a.ID, a.Title, a.Description, a.Icon, a.BadgeColor,
		a.PointsReward, criteria, a.IsActive, createdAt,
	)
	return storageError("achievement", "Upsert", err)
}

func scanAchievement(row pgx.Row) (*achievement.Achievement, error) {
	var (
		a        achievement.Achievement
		criteria []byte
	)
	err := row.Scan(
		&a.ID, &a.Title, &a.Description, &a.Icon, &a.BadgeColor,
		&a.PointsReward, &criteria, &a.IsActive, &a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.Criteria = achievement.Criteria{}
	if len(criteria) > 0 {
		if err := json.Unmarshal(criteria, &a.Criteria); err != nil {
			return nil, err
		}
	}
	return &a, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// STATS
// ══════════════════════════════════════════════════════════════════════════════

// LearnerStats recomputes every metric from source rows in one statement.
// A quiz counts once no matter how many attempts it has.
func (r *AchievementRepository) LearnerStats(ctx context.Context, learnerID string) (achievement.Stats, error) {
	query := `
		SELECT
			l.streak_days,
			l.points,
			COALESCE(lp.completed, 0),
			COALESCE(lp.beginner, 0),
			COALESCE(lp.intermediate, 0),
			COALESCE(lp.advanced, 0),
			COALESCE(lp.variety, 0),
			COALESCE(qa.completed, 0),
			COALESCE(qa.perfect, 0)
		FROM learners l
		LEFT JOIN LATERAL (
			SELECT
				COUNT(*) AS completed,
				COUNT(*) FILTER (WHERE difficulty = 'beginner') AS beginner,
				COUNT(*) FILTER (WHERE difficulty = 'intermediate') AS intermediate,
				COUNT(*) FILTER (WHERE difficulty = 'advanced') AS advanced,
				COUNT(DISTINCT difficulty) FILTER (
					WHERE difficulty IN ('beginner', 'intermediate', 'advanced')
				) AS variety
			FROM lesson_progress
			WHERE learner_id = l.id AND is_completed
		) lp ON TRUE
		LEFT JOIN LATERAL (
			SELECT
				COUNT(*) AS completed,
				COUNT(DISTINCT quiz_id) FILTER (WHERE max_score > 0 AND score = max_score) AS perfect
			FROM quiz_attempts
			WHERE learner_id = l.id AND is_completed
		) qa ON TRUE
		WHERE l.id = $1
	`

	var s achievement.Stats
	err := r.conn.QueryRow(ctx, query, learnerID).Scan(
		&s.StreakDays,
		&s.TotalPoints,
		&s.LessonsCompleted,
		&s.BeginnerLessons,
		&s.IntermediateLessons,
		&s.AdvancedLessons,
		&s.DifficultyVariety,
		&s.QuizzesCompleted,
		&s.PerfectQuizScore,
	)
	if err != nil {
		if IsNoRows(err) {
			return achievement.Stats{}, shared.ErrLearnerNotFound
		}
		return achievement.Stats{}, storageError("achievement", "LearnerStats", err)
	}
	return s, nil
}
