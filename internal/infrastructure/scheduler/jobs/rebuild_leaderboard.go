// Package jobs contains the scheduled jobs of the learning hub.
package jobs

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/golearn/learning-hub/internal/domain/leaderboard"
	"github.com/golearn/learning-hub/internal/domain/learner"
	"github.com/golearn/learning-hub/pkg/logger"
)

// RebuildLeaderboardJob converges the shared board to the balances in the
// primary store. Incremental updates can be lost on a Redis restart or a
// dropped event; the store is the source of truth.
type RebuildLeaderboardJob struct {
	learners learner.Repository
	board    leaderboard.Board
	log      *logger.Logger
	size     int
	perLevel int

	last atomic.Pointer[RebuildStats]
}

type RebuildLeaderboardConfig struct {
	Size           int // learners kept on the board
	PointsPerLevel int
}

func DefaultRebuildLeaderboardConfig() RebuildLeaderboardConfig {
	return RebuildLeaderboardConfig{Size: 1000, PointsPerLevel: 500}
}

// RebuildStats describes the last successful run. Drifted counts board rows
// whose points or position differed from the store before the rebuild.
type RebuildStats struct {
	FinishedAt time.Time
	Took       time.Duration
	Learners   int
	Drifted    int
}

func NewRebuildLeaderboardJob(
	learners learner.Repository,
	board leaderboard.Board,
	log *logger.Logger,
	cfg RebuildLeaderboardConfig,
) *RebuildLeaderboardJob {
	if log == nil {
		log = logger.Nop()
	}
	def := DefaultRebuildLeaderboardConfig()
	if cfg.Size <= 0 {
		cfg.Size = def.Size
	}
	if cfg.PointsPerLevel <= 0 {
		cfg.PointsPerLevel = def.PointsPerLevel
	}
	return &RebuildLeaderboardJob{
		learners: learners,
		board:    board,
		log:      log.With(logger.Component("rebuild_leaderboard")),
		size:     cfg.Size,
		perLevel: cfg.PointsPerLevel,
	}
}

func (j *RebuildLeaderboardJob) Name() string { return "rebuild_leaderboard" }

func (j *RebuildLeaderboardJob) Description() string {
	return "Rebuilds the points leaderboard from learner balances"
}

// Run is bounded by the scheduler's job timeout.
func (j *RebuildLeaderboardJob) Run(ctx context.Context) error {
	start := time.Now()

	top, err := j.learners.TopByPoints(ctx, j.size)
	if err != nil {
		return fmt.Errorf("load learners: %w", err)
	}
	want := make([]leaderboard.Entry, len(top))
	for i, l := range top {
		want[i] = leaderboard.NewEntry(l.ID, l.DisplayName(), l.Points, j.perLevel)
	}

	drifted := -1
	if current, err := j.board.Top(ctx, j.size); err != nil {
		j.log.Warn("cannot read board before rebuild", logger.Err(err))
	} else {
		drifted = drift(current, want)
	}

	if err := j.board.Replace(ctx, want); err != nil {
		return fmt.Errorf("replace board: %w", err)
	}

	stats := &RebuildStats{
		FinishedAt: time.Now(),
		Took:       time.Since(start),
		Learners:   len(want),
		Drifted:    drifted,
	}
	j.last.Store(stats)

	j.log.Info("leaderboard rebuilt",
		logger.Int("learners", stats.Learners),
		logger.Int("drifted", stats.Drifted),
		logger.Latency(stats.Took),
	)
	return nil
}

// drift counts positions where the two boards disagree on learner or points.
func drift(current, want []leaderboard.Entry) int {
	n := 0
	for i := range max(len(current), len(want)) {
		if i >= len(current) || i >= len(want) ||
			current[i].LearnerID != want[i].LearnerID ||
			current[i].Points != want[i].Points {
			n++
		}
	}
	return n
}

// LastRebuildStats returns the stats of the last successful run, or nil.
func (j *RebuildLeaderboardJob) LastRebuildStats() *RebuildStats {
	return j.last.Load()
}
