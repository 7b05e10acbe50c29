package query

import (
	"context"
	"time"

	"github.com/golearn/learning-hub/internal/domain/achievement"
	"github.com/golearn/learning-hub/internal/domain/learner"
	"github.com/golearn/learning-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET LEARNER STATS QUERY
// Агрегаты ученика (те же, по которым проверяются критерии) плюс баланс.
// ══════════════════════════════════════════════════════════════════════════════

// GetLearnerStatsQuery содержит параметры запроса.
type GetLearnerStatsQuery struct {
	LearnerID string
	Viewer    Viewer
}

// GetLearnerStatsResult содержит результат запроса.
type GetLearnerStatsResult struct {
	LearnerID  string            `json:"learner_id"`
	Stats      achievement.Stats `json:"stats"`
	Points     int               `json:"points"`
	Level      int               `json:"level"`
	LevelTitle string            `json:"level_title"`

	// StreakDays - актуальная серия: 0, если последний активный день раньше вчера.
	StreakDays     int        `json:"streak_days"`
	LastActivityAt *time.Time `json:"last_activity_at,omitempty"`
}

// GetLearnerStatsHandler обрабатывает запрос.
type GetLearnerStatsHandler struct {
	learners learner.Repository
	stats    achievement.StatsReader
	clock    timeutil.Clock
}

// NewGetLearnerStatsHandler создаёт обработчик.
func NewGetLearnerStatsHandler(learners learner.Repository, stats achievement.StatsReader, clock timeutil.Clock) *GetLearnerStatsHandler {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	return &GetLearnerStatsHandler{learners: learners, stats: stats, clock: clock}
}

// Handle выполняет запрос.
func (h *GetLearnerStatsHandler) Handle(ctx context.Context, q GetLearnerStatsQuery) (*GetLearnerStatsResult, error) {
	if err := q.Viewer.canView(q.LearnerID); err != nil {
		return nil, err
	}

	l, err := h.learners.GetByID(ctx, q.LearnerID)
	if err != nil {
		return nil, err
	}
	stats, err := h.stats.LearnerStats(ctx, q.LearnerID)
	if err != nil {
		return nil, err
	}

	streak := learner.Streak{Days: l.StreakDays}
	if l.LastActivityAt != nil {
		streak.LastActiveAt = *l.LastActivityAt
	}

	return &GetLearnerStatsResult{
		LearnerID:      l.ID,
		Stats:          stats,
		Points:         l.Points,
		Level:          l.Level,
		LevelTitle:     l.LevelTitle(),
		StreakDays:     streak.Current(h.clock.Now()),
		LastActivityAt: l.LastActivityAt,
	}, nil
}
