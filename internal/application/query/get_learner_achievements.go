package query

import (
	"context"
	"fmt"
	"time"

	"github.com/golearn/learning-hub/internal/domain/achievement"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET LEARNER ACHIEVEMENTS QUERY
// Полученные достижения и прогресс по остальным активным достижениям.
// ══════════════════════════════════════════════════════════════════════════════

// GetLearnerAchievementsQuery содержит параметры запроса.
type GetLearnerAchievementsQuery struct {
	LearnerID string
	Viewer    Viewer
}

// AchievementDTO - достижение с состоянием для конкретного ученика.
type AchievementDTO struct {
	ID           string               `json:"id"`
	Title        string               `json:"title"`
	Description  string               `json:"description"`
	Icon         string               `json:"icon"`
	BadgeColor   string               `json:"badge_color"`
	PointsReward int                  `json:"points_reward"`
	Criteria     achievement.Criteria `json:"criteria"`
	Earned       bool                 `json:"earned"`
	EarnedAt     *time.Time           `json:"earned_at,omitempty"`

	// Progress - доля выполнения критериев (0..1).
	Progress float64 `json:"progress"`
}

// GetLearnerAchievementsResult содержит результат запроса.
type GetLearnerAchievementsResult struct {
	LearnerID    string           `json:"learner_id"`
	Earned       []AchievementDTO `json:"earned"`
	InProgress   []AchievementDTO `json:"in_progress"`
	EarnedCount  int              `json:"earned_count"`
	TotalActive  int              `json:"total_active"`
	EarnedPoints int              `json:"earned_points"`
}

// GetLearnerAchievementsHandler обрабатывает запрос.
type GetLearnerAchievementsHandler struct {
	achievements achievement.Repository
	stats        achievement.StatsReader
}

// NewGetLearnerAchievementsHandler создаёт обработчик.
func NewGetLearnerAchievementsHandler(achievements achievement.Repository, stats achievement.StatsReader) *GetLearnerAchievementsHandler {
	return &GetLearnerAchievementsHandler{achievements: achievements, stats: stats}
}

// Handle выполняет запрос.
func (h *GetLearnerAchievementsHandler) Handle(ctx context.Context, q GetLearnerAchievementsQuery) (*GetLearnerAchievementsResult, error) {
	if err := q.Viewer.canView(q.LearnerID); err != nil {
		return nil, err
	}

	earned, err := h.achievements.ListEarned(ctx, q.LearnerID)
	if err != nil {
		return nil, fmt.Errorf("get_learner_achievements: %w", err)
	}
	active, err := h.achievements.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("get_learner_achievements: %w", err)
	}
	stats, err := h.stats.LearnerStats(ctx, q.LearnerID)
	if err != nil {
		return nil, err
	}

	earnedAt := make(map[string]time.Time, len(earned))
	for _, ua := range earned {
		earnedAt[ua.AchievementID] = ua.EarnedAt
	}

	result := &GetLearnerAchievementsResult{
		LearnerID:   q.LearnerID,
		Earned:      []AchievementDTO{},
		InProgress:  []AchievementDTO{},
		TotalActive: len(active),
	}

	// Полученное достижение остаётся в списке, даже если его деактивировали.
	defs := make(map[string]*achievement.Achievement, len(active))
	for _, a := range active {
		defs[a.ID] = a
	}
	for _, ua := range earned {
		a, ok := defs[ua.AchievementID]
		if !ok {
			a, err = h.achievements.GetByID(ctx, ua.AchievementID)
			if err != nil {
				continue
			}
		}
		at := ua.EarnedAt
		dto := toAchievementDTO(a)
		dto.Earned = true
		dto.EarnedAt = &at
		dto.Progress = 1
		result.Earned = append(result.Earned, dto)
		result.EarnedPoints += a.PointsReward
	}

	for _, a := range active {
		if _, ok := earnedAt[a.ID]; ok {
			continue
		}
		dto := toAchievementDTO(a)
		dto.Progress = achievement.Progress(a.Criteria, stats)
		result.InProgress = append(result.InProgress, dto)
	}

	result.EarnedCount = len(result.Earned)
	return result, nil
}

func toAchievementDTO(a *achievement.Achievement) AchievementDTO {
	return AchievementDTO{
		ID:           a.ID,
		Title:        a.Title,
		Description:  a.Description,
		Icon:         a.Icon,
		BadgeColor:   a.BadgeColor,
		PointsReward: a.PointsReward,
		Criteria:     a.Criteria,
	}
}
