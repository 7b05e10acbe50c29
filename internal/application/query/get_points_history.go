package query

import (
	"context"
	"fmt"

	"github.com/golearn/learning-hub/internal/domain/achievement"
	"github.com/golearn/learning-hub/internal/domain/learner"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET POINTS HISTORY QUERY
// Журнал начислений ученика: за что и когда пришли очки.
// ══════════════════════════════════════════════════════════════════════════════

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 200
)

// GetPointsHistoryQuery содержит параметры запроса.
type GetPointsHistoryQuery struct {
	LearnerID string
	Viewer    Viewer
	Limit     int
}

// GetPointsHistoryResult содержит результат запроса.
type GetPointsHistoryResult struct {
	LearnerID string                     `json:"learner_id"`
	Points    int                        `json:"points"`
	Entries   []achievement.HistoryEntry `json:"entries"`
}

// GetPointsHistoryHandler обрабатывает запрос.
type GetPointsHistoryHandler struct {
	learners learner.Repository
	history  achievement.HistoryReader
}

// NewGetPointsHistoryHandler создаёт обработчик.
func NewGetPointsHistoryHandler(learners learner.Repository, history achievement.HistoryReader) *GetPointsHistoryHandler {
	return &GetPointsHistoryHandler{learners: learners, history: history}
}

// Handle выполняет запрос. Лимит вне 1..MaxHistoryLimit заменяется
// значением по умолчанию или обрезается.
func (h *GetPointsHistoryHandler) Handle(ctx context.Context, q GetPointsHistoryQuery) (*GetPointsHistoryResult, error) {
	if err := q.Viewer.canView(q.LearnerID); err != nil {
		return nil, err
	}

	limit := q.Limit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	limit = min(limit, MaxHistoryLimit)

	l, err := h.learners.GetByID(ctx, q.LearnerID)
	if err != nil {
		return nil, err
	}
	entries, err := h.history.PointsHistory(ctx, q.LearnerID, limit)
	if err != nil {
		return nil, fmt.Errorf("get_points_history: %w", err)
	}

	return &GetPointsHistoryResult{
		LearnerID: l.ID,
		Points:    l.Points,
		Entries:   entries,
	}, nil
}
