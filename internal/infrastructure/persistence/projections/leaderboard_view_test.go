package projections

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/golearn/learning-hub/internal/domain/leaderboard"
)

func TestLeaderboardView_TopAndRank(t *testing.T) {
	ctx := context.Background()
	v := NewLeaderboardView(100, 0)

	require.NoError(t, v.SetPoints(ctx, "bob", 150))
	require.NoError(t, v.SetPoints(ctx, "alice", 300))
	require.NoError(t, v.SetPoints(ctx, "carol", 150))

	top, err := v.Top(ctx, 10)
	require.NoError(t, err)
	require.Len(t, top, 3)

	assert.Equal(t, "alice", top[0].LearnerID)
	assert.Equal(t, leaderboard.Rank(1), top[0].Rank)
	assert.Equal(t, 4, top[0].Level)

	// ties share a rank and are ordered by id
	assert.Equal(t, "bob", top[1].LearnerID)
	assert.Equal(t, "carol", top[2].LearnerID)
	assert.Equal(t, leaderboard.Rank(2), top[1].Rank)
	assert.Equal(t, leaderboard.Rank(2), top[2].Rank)

	e, ok, err := v.RankOf(ctx, "carol")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, leaderboard.Rank(2), e.Rank)

	_, ok, err = v.RankOf(ctx, "nobody")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLeaderboardView_SetPointsNeverLowersTotal(t *testing.T) {
	ctx := context.Background()
	v := NewLeaderboardView(100, 0)

	require.NoError(t, v.SetPoints(ctx, "u1", 60))
	require.NoError(t, v.SetPoints(ctx, "u1", 60))
	require.NoError(t, v.SetPoints(ctx, "u1", 160))
	// late delivery of an older total
	require.NoError(t, v.SetPoints(ctx, "u1", 10))
	assert.EqualValues(t, 2, v.Metadata().Version)

	e, ok, err := v.RankOf(ctx, "u1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 160, e.Points)
	assert.Equal(t, 1, v.Metadata().TotalLearners)
}

func TestLeaderboardView_ReplaceAndTrim(t *testing.T) {
	ctx := context.Background()
	v := NewLeaderboardView(100, 2)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	v.now = func() time.Time { return fixed }

	require.NoError(t, v.SetPoints(ctx, "old", 999))
	require.NoError(t, v.Replace(ctx, []leaderboard.Entry{
		{LearnerID: "a", DisplayName: "Ann", Points: 10},
		{LearnerID: "b", Points: 30},
		{LearnerID: "c", Points: 20},
		{LearnerID: ""},
	}))

	top, err := v.Top(ctx, 10)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "b", top[0].LearnerID)
	assert.Equal(t, "c", top[1].LearnerID)

	_, ok, _ := v.RankOf(ctx, "old")
	assert.False(t, ok)

	md := v.Metadata()
	assert.Equal(t, 2, md.TotalLearners)
	assert.Equal(t, 50, md.TotalPoints)
	assert.Equal(t, 30, md.TopPoints)
	assert.Equal(t, fixed, md.LastRebuildAt)
	assert.EqualValues(t, 2, md.Version)
}

func TestLeaderboardView_Errors(t *testing.T) {
	ctx := context.Background()
	v := NewLeaderboardView(100, 0)

	assert.Error(t, v.SetPoints(ctx, "", 1))

	_, err := v.Top(ctx, 0)
	assert.Error(t, err)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, v.SetPoints(cancelled, "u1", 1), context.Canceled)
}

func TestLeaderboardView_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	v := NewLeaderboardView(100, 50)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := string(rune('a' + i))
			for p := 0; p < 50; p++ {
				_ = v.SetPoints(ctx, id, p)
				_, _ = v.Top(ctx, 5)
				_, _, _ = v.RankOf(ctx, id)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 20, v.Metadata().TotalLearners)
}
