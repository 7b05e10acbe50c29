// Package projections implements in-process read models.
// They are rebuilt from the ledger and updated from domain events, so losing
// them on restart costs one rebuild, never data.
package projections

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golearn/learning-hub/internal/domain/leaderboard"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD VIEW - in-process leaderboard.Board
// ══════════════════════════════════════════════════════════════════════════════

// LeaderboardView keeps the points ranking in process memory. It serves
// single-instance deployments that run without Redis.
//
// Writes mark the sorted slice dirty; the next read re-sorts it once.
type LeaderboardView struct {
	mu sync.RWMutex

	perLevel int

	// maxSize > 0 trims the view to the best maxSize learners.
	maxSize int

	// entries holds the latest absolute balance per learner.
	entries map[string]*viewEntry

	// sorted is the ranking, valid while dirty is false.
	sorted []leaderboard.Entry
	dirty  bool

	metadata LeaderboardMetadata
	now      func() time.Time
}

type viewEntry struct {
	displayName string
	points      int
}

// LeaderboardMetadata holds aggregate statistics about the view.
type LeaderboardMetadata struct {
	TotalLearners int       `json:"total_learners"`
	TotalPoints   int       `json:"total_points"`
	TopPoints     int       `json:"top_points"`
	LastRebuildAt time.Time `json:"last_rebuild_at"`
	LastUpdatedAt time.Time `json:"last_updated_at"`

	// Version is incremented on every write.
	Version int64 `json:"version"`
}

// NewLeaderboardView creates an empty view.
func NewLeaderboardView(perLevel, maxSize int) *LeaderboardView {
	return &LeaderboardView{
		perLevel: perLevel,
		maxSize:  maxSize,
		entries:  make(map[string]*viewEntry),
		now:      time.Now,
	}
}

var _ leaderboard.Board = (*LeaderboardView)(nil)

// ══════════════════════════════════════════════════════════════════════════════
// WRITES
// ══════════════════════════════════════════════════════════════════════════════

// SetPoints records the balance of a learner. A value below the stored one
// is a late delivery and is ignored: balances only grow.
func (v *LeaderboardView) SetPoints(ctx context.Context, learnerID string, points int) error {
	if learnerID == "" {
		return errors.New("leaderboard view: learner id is empty")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if e, ok := v.entries[learnerID]; ok {
		if points <= e.points {
			return nil
		}
		e.points = points
	} else {
		v.entries[learnerID] = &viewEntry{points: points}
	}
	v.touch()
	v.trim()
	return nil
}

// Replace swaps the whole view for the given entries.
func (v *LeaderboardView) Replace(ctx context.Context, entries []leaderboard.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	next := make(map[string]*viewEntry, len(entries))
	for _, e := range entries {
		if e.LearnerID == "" {
			continue
		}
		next[e.LearnerID] = &viewEntry{displayName: e.DisplayName, points: e.Points}
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	v.entries = next
	v.touch()
	v.trim()
	v.metadata.LastRebuildAt = v.metadata.LastUpdatedAt
	return nil
}

// touch records a write. Caller holds the write lock.
func (v *LeaderboardView) touch() {
	v.dirty = true
	v.metadata.Version++
	v.metadata.LastUpdatedAt = v.now().UTC()
}

// trim drops the weakest learners beyond maxSize. Caller holds the write lock.
func (v *LeaderboardView) trim() {
	if v.maxSize <= 0 || len(v.entries) <= v.maxSize {
		return
	}
	ranked := v.rank()
	for _, e := range ranked[v.maxSize:] {
		delete(v.entries, e.LearnerID)
	}
	v.sorted = ranked[:v.maxSize]
	v.dirty = false
}

// ══════════════════════════════════════════════════════════════════════════════
// READS
// ══════════════════════════════════════════════════════════════════════════════

// Top returns the best learners, ranked.
func (v *LeaderboardView) Top(ctx context.Context, limit int) ([]leaderboard.Entry, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("leaderboard view: invalid limit %d", limit)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sorted := v.ranking()
	if limit > len(sorted) {
		limit = len(sorted)
	}
	out := make([]leaderboard.Entry, limit)
	copy(out, sorted[:limit])
	return out, nil
}

// RankOf returns the entry of one learner. ok=false if the learner is not ranked.
func (v *LeaderboardView) RankOf(ctx context.Context, learnerID string) (leaderboard.Entry, bool, error) {
	if err := ctx.Err(); err != nil {
		return leaderboard.Entry{}, false, err
	}
	for _, e := range v.ranking() {
		if e.LearnerID == learnerID {
			return e, true, nil
		}
	}
	return leaderboard.Entry{}, false, nil
}

// Metadata returns aggregate statistics of the view.
func (v *LeaderboardView) Metadata() LeaderboardMetadata {
	sorted := v.ranking()

	v.mu.RLock()
	defer v.mu.RUnlock()

	md := v.metadata
	md.TotalLearners = len(sorted)
	md.TotalPoints = 0
	md.TopPoints = 0
	for _, e := range sorted {
		md.TotalPoints += e.Points
	}
	if len(sorted) > 0 {
		md.TopPoints = sorted[0].Points
	}
	return md
}

// ranking returns the current sorted slice, re-sorting if a write happened.
// The returned slice must not be modified.
func (v *LeaderboardView) ranking() []leaderboard.Entry {
	v.mu.RLock()
	if !v.dirty {
		sorted := v.sorted
		v.mu.RUnlock()
		return sorted
	}
	v.mu.RUnlock()

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.dirty {
		v.sorted = v.rank()
		v.dirty = false
	}
	return v.sorted
}

// rank builds the ranking from entries. Caller holds the write lock.
func (v *LeaderboardView) rank() []leaderboard.Entry {
	entries := make([]leaderboard.Entry, 0, len(v.entries))
	for id, e := range v.entries {
		entries = append(entries, leaderboard.NewEntry(id, e.displayName, e.points, v.perLevel))
	}
	return leaderboard.NewRanking(entries).Top(0)
}
