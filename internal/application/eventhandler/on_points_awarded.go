// Package eventhandler содержит обработчики доменных событий.
// Обработчики реагируют на уже зафиксированные изменения и обновляют
// производные представления; их ошибки не влияют на исходную операцию.
package eventhandler

import (
	"context"
	"fmt"
	"time"

	"github.com/golearn/learning-hub/config"
	"github.com/golearn/learning-hub/internal/domain/leaderboard"
	"github.com/golearn/learning-hub/internal/domain/shared"
	"github.com/golearn/learning-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// ON POINTS AWARDED HANDLER
// Переносит новый баланс ученика в Redis-лидерборд.
// Событие несёт итоговый баланс (NewTotal), поэтому повторная или
// переупорядоченная доставка оставляет доску в корректном состоянии
// после следующего начисления или пересборки.
// ══════════════════════════════════════════════════════════════════════════════

// OnPointsAwardedHandler обновляет лидерборд при начислении очков.
type OnPointsAwardedHandler struct {
	board    leaderboard.Board
	features *config.FeatureFlags
	logger   *logger.Logger
	config   PointsAwardedConfig
}

// PointsAwardedConfig содержит конфигурацию обработчика.
type PointsAwardedConfig struct {
	// Timeout - ограничение на запись в доску.
	Timeout time.Duration
}

// DefaultPointsAwardedConfig возвращает конфигурацию по умолчанию.
func DefaultPointsAwardedConfig() PointsAwardedConfig {
	return PointsAwardedConfig{Timeout: 2 * time.Second}
}

// NewOnPointsAwardedHandler создаёт обработчик.
func NewOnPointsAwardedHandler(
	board leaderboard.Board,
	features *config.FeatureFlags,
	log *logger.Logger,
	cfg PointsAwardedConfig,
) *OnPointsAwardedHandler {
	if log == nil {
		log = logger.Nop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultPointsAwardedConfig().Timeout
	}
	return &OnPointsAwardedHandler{
		board:    board,
		features: features,
		logger:   log.Named("on_points_awarded"),
		config:   cfg,
	}
}

// Subscribe регистрирует обработчик на шине.
func (h *OnPointsAwardedHandler) Subscribe(bus shared.EventSubscriber) error {
	return bus.Subscribe(shared.EventPointsAwarded, h.Handle)
}

// Handle обрабатывает событие. Реализует shared.EventHandler.
func (h *OnPointsAwardedHandler) Handle(event shared.Event) error {
	rec, ok := event.(shared.PointsAwardedEvent)
	if !ok {
		h.logger.Warn("unexpected event", logger.EventType(string(event.EventType())))
		return nil
	}
	e := rec.Data

	if !h.features.Enabled(config.FeatureLeaderboard, e.LearnerID) {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	if err := h.board.SetPoints(ctx, e.LearnerID, e.NewTotal); err != nil {
		return fmt.Errorf("update leaderboard for %s: %w", e.LearnerID, err)
	}

	h.logger.Debug("leaderboard updated",
		logger.LearnerID(e.LearnerID),
		logger.Int("new_total", e.NewTotal),
		logger.String("reason", e.Reason),
	)
	return nil
}
