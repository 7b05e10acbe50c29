package query

import (
	"context"
	"fmt"
	"time"

	"github.com/golearn/learning-hub/internal/domain/leaderboard"
	"github.com/golearn/learning-hub/internal/domain/learner"
	"github.com/golearn/learning-hub/internal/domain/shared"
	"github.com/golearn/learning-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET LEADERBOARD QUERY
// Получает топ-N учеников по очкам.
// Читает Redis-доску; если она недоступна или пуста - строит рейтинг
// из основного хранилища.
// ══════════════════════════════════════════════════════════════════════════════

// GetLeaderboardQuery содержит параметры запроса лидерборда.
type GetLeaderboardQuery struct {
	// Limit - количество записей (по умолчанию 20, максимум 100).
	Limit int

	// LearnerID - если задан, в ответ добавляется позиция этого ученика.
	LearnerID string
}

// Validate проверяет корректность параметров запроса.
func (q *GetLeaderboardQuery) Validate() error {
	if q.Limit < 0 {
		return shared.NewDomainError("query", "GetLeaderboard", shared.ErrValidation, "limit cannot be negative")
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
	if q.Limit == 0 {
		q.Limit = 20
	}
	return nil
}

// GetLeaderboardResult содержит результат запроса лидерборда.
type GetLeaderboardResult struct {
	Entries []leaderboard.Entry `json:"entries"`

	// Me - позиция запросившего ученика (nil, если его нет в рейтинге).
	Me *leaderboard.Entry `json:"me,omitempty"`

	// Source - "cache" или "store".
	Source string `json:"source"`

	GeneratedAt time.Time `json:"generated_at"`
}

// GetLeaderboardHandler обрабатывает запросы на получение лидерборда.
type GetLeaderboardHandler struct {
	board    leaderboard.Board
	learners learner.Repository
	perLevel int
	log      *logger.Logger
}

// NewGetLeaderboardHandler создаёт обработчик. board может быть nil.
func NewGetLeaderboardHandler(board leaderboard.Board, learners learner.Repository, perLevel int, log *logger.Logger) *GetLeaderboardHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &GetLeaderboardHandler{
		board:    board,
		learners: learners,
		perLevel: perLevel,
		log:      log.Named("get_leaderboard"),
	}
}

// Handle выполняет запрос.
func (h *GetLeaderboardHandler) Handle(ctx context.Context, q GetLeaderboardQuery) (*GetLeaderboardResult, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("get_leaderboard: %w", err)
	}

	if h.board != nil {
		entries, err := h.board.Top(ctx, q.Limit)
		switch {
		case err != nil:
			h.log.Warn("leaderboard cache unavailable, falling back to store", logger.Err(err))
		case len(entries) > 0:
			result := &GetLeaderboardResult{
				Entries:     entries,
				Source:      "cache",
				GeneratedAt: time.Now().UTC(),
			}
			if q.LearnerID != "" {
				if me, ok, err := h.board.RankOf(ctx, q.LearnerID); err == nil && ok {
					result.Me = &me
				}
			}
			return result, nil
		}
	}

	return h.fromStore(ctx, q)
}

func (h *GetLeaderboardHandler) fromStore(ctx context.Context, q GetLeaderboardQuery) (*GetLeaderboardResult, error) {
	top, err := h.learners.TopByPoints(ctx, q.Limit)
	if err != nil {
		return nil, fmt.Errorf("get_leaderboard: %w", err)
	}

	entries := make([]leaderboard.Entry, 0, len(top))
	for _, l := range top {
		entries = append(entries, leaderboard.NewEntry(l.ID, l.DisplayName(), l.Points, h.perLevel))
	}
	ranking := leaderboard.NewRanking(entries)

	result := &GetLeaderboardResult{
		Entries:     ranking.Top(0),
		Source:      "store",
		GeneratedAt: time.Now().UTC(),
	}
	if me, ok := ranking.Find(q.LearnerID); ok && q.LearnerID != "" {
		result.Me = &me
	}
	return result, nil
}
