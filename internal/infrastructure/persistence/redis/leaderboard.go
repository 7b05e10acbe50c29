package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/golearn/learning-hub/internal/domain/leaderboard"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD
// ══════════════════════════════════════════════════════════════════════════════

// Leaderboard keeps the points ranking in Redis.
//
// Layout, under the cache namespace:
//   - Sorted Set "leaderboard:points" stores learnerID -> points
//   - Hash "leaderboard:names" stores learnerID -> display name
//
// Rank lookups are O(log N); ties share a rank (competition ranking).
type Leaderboard struct {
	client    *redis.Client
	pointsKey string
	namesKey  string
	perLevel  int

	// maxSize > 0 trims the set to the best maxSize learners.
	maxSize int
}

// NewLeaderboard creates a Leaderboard on top of the cache client.
func NewLeaderboard(cache *Cache, perLevel, maxSize int) *Leaderboard {
	return &Leaderboard{
		client:    cache.Client(),
		pointsKey: cache.Key("leaderboard:points"),
		namesKey:  cache.Key("leaderboard:names"),
		perLevel:  perLevel,
		maxSize:   maxSize,
	}
}

var _ leaderboard.Board = (*Leaderboard)(nil)

// SetPoints records the balance of a learner. Balances only grow, so a
// lower value than the stored one is a late delivery and is ignored (ZADD GT).
func (l *Leaderboard) SetPoints(ctx context.Context, learnerID string, points int) error {
	if learnerID == "" {
		return errors.New("leaderboard: learner id is empty")
	}

	pipe := l.client.Pipeline()
	pipe.ZAddArgs(ctx, l.pointsKey, redis.ZAddArgs{
		GT:      true,
		Members: []redis.Z{{Score: float64(points), Member: learnerID}},
	})
	if l.maxSize > 0 {
		// ZREMRANGEBYRANK counts from the lowest score
		pipe.ZRemRangeByRank(ctx, l.pointsKey, 0, int64(-l.maxSize-1))
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Top returns the best learners, ranked.
func (l *Leaderboard) Top(ctx context.Context, limit int) ([]leaderboard.Entry, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("leaderboard: invalid limit %d", limit)
	}

	members, err := l.client.ZRevRangeWithScores(ctx, l.pointsKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return []leaderboard.Entry{}, nil
	}

	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = m.Member.(string)
	}
	names, err := l.names(ctx, ids...)
	if err != nil {
		return nil, err
	}

	entries := make([]leaderboard.Entry, len(members))
	for i, m := range members {
		entries[i] = leaderboard.NewEntry(ids[i], names[ids[i]], int(m.Score), l.perLevel)
	}
	return leaderboard.NewRanking(entries).Top(0), nil
}

// RankOf returns the entry of one learner. ok=false if the learner is not ranked.
func (l *Leaderboard) RankOf(ctx context.Context, learnerID string) (leaderboard.Entry, bool, error) {
	score, err := l.client.ZScore(ctx, l.pointsKey, learnerID).Result()
	if errors.Is(err, redis.Nil) {
		return leaderboard.Entry{}, false, nil
	}
	if err != nil {
		return leaderboard.Entry{}, false, err
	}

	// rank = learners with a strictly higher score + 1
	above, err := l.client.ZCount(ctx, l.pointsKey, "("+strconv.FormatFloat(score, 'f', -1, 64), "+inf").Result()
	if err != nil {
		return leaderboard.Entry{}, false, err
	}

	names, err := l.names(ctx, learnerID)
	if err != nil {
		return leaderboard.Entry{}, false, err
	}

	entry := leaderboard.NewEntry(learnerID, names[learnerID], int(score), l.perLevel)
	entry.Rank = leaderboard.Rank(above + 1)
	return entry, true, nil
}

// Replace atomically swaps the whole board for the given entries.
func (l *Leaderboard) Replace(ctx context.Context, entries []leaderboard.Entry) error {
	pipe := l.client.TxPipeline()
	pipe.Del(ctx, l.pointsKey, l.namesKey)

	members := make([]redis.Z, 0, len(entries))
	names := make(map[string]interface{}, len(entries))
	for _, e := range entries {
		if e.LearnerID == "" {
			continue
		}
		members = append(members, redis.Z{Score: float64(e.Points), Member: e.LearnerID})
		if e.DisplayName != "" {
			names[e.LearnerID] = e.DisplayName
		}
	}
	if len(members) > 0 {
		pipe.ZAdd(ctx, l.pointsKey, members...)
	}
	if len(names) > 0 {
		pipe.HSet(ctx, l.namesKey, names)
	}

	_, err := pipe.Exec(ctx)
	return err
}

// Count returns the number of ranked learners.
func (l *Leaderboard) Count(ctx context.Context) (int64, error) {
	return l.client.ZCard(ctx, l.pointsKey).Result()
}

func (l *Leaderboard) names(ctx context.Context, ids ...string) (map[string]string, error) {
	values, err := l.client.HMGet(ctx, l.namesKey, ids...).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(ids))
	for i, v := range values {
		if s, ok := v.(string); ok {
			out[ids[i]] = s
		}
	}
	return out, nil
}
