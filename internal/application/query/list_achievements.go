package query

import (
	"context"
	"fmt"

	"github.com/golearn/learning-hub/internal/domain/achievement"
)

// ListAchievementsHandler возвращает активные определения достижений.
type ListAchievementsHandler struct {
	achievements achievement.Repository
}

// NewListAchievementsHandler создаёт обработчик.
func NewListAchievementsHandler(achievements achievement.Repository) *ListAchievementsHandler {
	return &ListAchievementsHandler{achievements: achievements}
}

// Handle выполняет запрос.
func (h *ListAchievementsHandler) Handle(ctx context.Context) ([]AchievementDTO, error) {
	active, err := h.achievements.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list_achievements: %w", err)
	}
	out := make([]AchievementDTO, 0, len(active))
	for _, a := range active {
		out = append(out, toAchievementDTO(a))
	}
	return out, nil
}
