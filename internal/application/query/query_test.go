package query

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/golearn/learning-hub/internal/domain/achievement"
	"github.com/golearn/learning-hub/internal/domain/leaderboard"
	"github.com/golearn/learning-hub/internal/domain/learner"
	"github.com/golearn/learning-hub/internal/domain/lesson"
	"github.com/golearn/learning-hub/internal/domain/quiz"
	"github.com/golearn/learning-hub/internal/domain/shared"
	"github.com/golearn/learning-hub/internal/infrastructure/persistence/memory"
	"github.com/golearn/learning-hub/pkg/timeutil"
)

var day = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func seed(t *testing.T) *memory.Store {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore(100)

	for _, id := range []string{"u1", "u2", "u3"} {
		l, err := learner.NewLearner(learner.NewLearnerParams{ID: id, FullName: "Learner " + id})
		require.NoError(t, err)
		_, err = store.Learners().Ensure(ctx, l)
		require.NoError(t, err)
	}
	for _, a := range achievement.Defaults() {
		require.NoError(t, store.Achievements().Upsert(ctx, &a))
	}
	require.NoError(t, store.Lessons().Save(ctx, &lesson.Lesson{
		ID: "b1", Title: "Variables", Difficulty: shared.DifficultyBeginner, PointsReward: 10, IsPublished: true,
	}))
	require.NoError(t, store.Quizzes().Save(ctx, &quiz.Quiz{
		ID:       "q1",
		LessonID: "b1",
		Title:    "Variables quiz",
		IsActive: true,
		Questions: []quiz.Question{
			{Text: "var or :=?", Type: quiz.TypeMultipleChoice, Options: []string{"var", ":="}, CorrectAnswer: ":=", Explanation: "short form", Points: 10},
			{Text: "Go is typed", Type: quiz.TypeTrueFalse, CorrectAnswer: "true", Points: 5},
		},
	}))
	return store
}

func TestGetLearnerAchievements(t *testing.T) {
	store := seed(t)
	ctx := context.Background()

	_, _, err := store.Progress().CompleteLesson(ctx, "u1", "b1", shared.DifficultyBeginner, day)
	require.NoError(t, err)
	_, err = store.Ledger().GrantAchievement(ctx, "u1", "first_lesson", 50)
	require.NoError(t, err)

	h := NewGetLearnerAchievementsHandler(store.Achievements(), store.Stats())
	res, err := h.Handle(ctx, GetLearnerAchievementsQuery{LearnerID: "u1", Viewer: Viewer{LearnerID: "u1"}})
	require.NoError(t, err)

	require.Len(t, res.Earned, 1)
	assert.Equal(t, "first_lesson", res.Earned[0].ID)
	assert.True(t, res.Earned[0].Earned)
	require.NotNil(t, res.Earned[0].EarnedAt)
	assert.Equal(t, 50, res.EarnedPoints)
	assert.Equal(t, 5, res.TotalActive)
	assert.Len(t, res.InProgress, 4)

	for _, a := range res.InProgress {
		if a.ID == "go_beginner" {
			assert.InDelta(t, 0.2, a.Progress, 1e-9)
		}
	}
}

func TestGetLearnerAchievements_Authorization(t *testing.T) {
	store := seed(t)
	h := NewGetLearnerAchievementsHandler(store.Achievements(), store.Stats())

	_, err := h.Handle(context.Background(), GetLearnerAchievementsQuery{LearnerID: "u1"})
	assert.ErrorIs(t, err, shared.ErrUnauthorized)

	_, err = h.Handle(context.Background(), GetLearnerAchievementsQuery{
		LearnerID: "u1",
		Viewer:    Viewer{LearnerID: "u2", Role: shared.RoleStudent},
	})
	assert.ErrorIs(t, err, shared.ErrForbidden)

	_, err = h.Handle(context.Background(), GetLearnerAchievementsQuery{
		LearnerID: "u1",
		Viewer:    Viewer{LearnerID: "t1", Role: shared.RoleTeacher},
	})
	assert.NoError(t, err)
}

func TestGetLearnerStats(t *testing.T) {
	store := seed(t)
	ctx := context.Background()

	_, err := store.Learners().TouchActivity(ctx, "u1", day)
	require.NoError(t, err)
	_, err = store.Learners().TouchActivity(ctx, "u1", day.AddDate(0, 0, 1))
	require.NoError(t, err)
	_, err = store.Ledger().GrantLessonReward(ctx, "u1", "manual", 230)
	require.NoError(t, err)

	clock := timeutil.NewFixedClock(day.AddDate(0, 0, 1))
	h := NewGetLearnerStatsHandler(store.Learners(), store.Stats(), clock)

	res, err := h.Handle(ctx, GetLearnerStatsQuery{LearnerID: "u1", Viewer: Viewer{LearnerID: "u1"}})
	require.NoError(t, err)
	assert.Equal(t, 230, res.Points)
	assert.Equal(t, 3, res.Level)
	assert.Equal(t, 2, res.StreakDays)
	assert.Equal(t, 230, res.Stats.TotalPoints)

	// пропущенный день обнуляет видимую серию
	clock.Advance(72 * time.Hour)
	res, err = h.Handle(ctx, GetLearnerStatsQuery{LearnerID: "u1", Viewer: Viewer{LearnerID: "u1"}})
	require.NoError(t, err)
	assert.Zero(t, res.StreakDays)

	_, err = h.Handle(ctx, GetLearnerStatsQuery{LearnerID: "ghost", Viewer: Viewer{LearnerID: "a", Role: shared.RoleAdmin}})
	assert.True(t, shared.IsNotFound(err))
}

func TestListAchievements(t *testing.T) {
	store := seed(t)
	ctx := context.Background()

	off := achievement.Achievement{ID: "retired", Title: "Retired", Criteria: achievement.Criteria{}, IsActive: false}
	require.NoError(t, store.Achievements().Upsert(ctx, &off))

	list, err := NewListAchievementsHandler(store.Achievements()).Handle(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 5)
	for _, a := range list {
		assert.NotEqual(t, "retired", a.ID)
	}
}

func TestGetLessonQuizzes_Redacted(t *testing.T) {
	store := seed(t)
	ctx := context.Background()
	h := NewGetLessonQuizzesHandler(store.Lessons(), store.Quizzes())

	list, err := h.Handle(ctx, "b1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 15, list[0].MaxPoints)
	for _, q := range list[0].Questions {
		assert.Empty(t, q.CorrectAnswer)
		assert.Empty(t, q.Explanation)
	}

	stored, err := store.Quizzes().GetByID(ctx, "q1")
	require.NoError(t, err)
	assert.Equal(t, ":=", stored.Questions[0].CorrectAnswer)

	_, err = h.Handle(ctx, "missing")
	assert.True(t, shared.IsNotFound(err))
}

type stubBoard struct {
	entries []leaderboard.Entry
	err     error
}

func (b *stubBoard) SetPoints(context.Context, string, int) error       { return nil }
func (b *stubBoard) Replace(context.Context, []leaderboard.Entry) error { return nil }

func (b *stubBoard) Top(_ context.Context, limit int) ([]leaderboard.Entry, error) {
	if b.err != nil {
		return nil, b.err
	}
	if limit < len(b.entries) {
		return b.entries[:limit], nil
	}
	return b.entries, nil
}

func (b *stubBoard) RankOf(_ context.Context, id string) (leaderboard.Entry, bool, error) {
	for _, e := range b.entries {
		if e.LearnerID == id {
			return e, true, nil
		}
	}
	return leaderboard.Entry{}, false, nil
}

func TestGetLeaderboard(t *testing.T) {
	store := seed(t)
	ctx := context.Background()
	for id, pts := range map[string]int{"u1": 120, "u2": 300, "u3": 120} {
		_, err := store.Ledger().GrantLessonReward(ctx, id, "manual", pts)
		require.NoError(t, err)
	}

	t.Run("falls back to store", func(t *testing.T) {
		board := &stubBoard{err: errors.New("redis down")}
		h := NewGetLeaderboardHandler(board, store.Learners(), 100, nil)

		res, err := h.Handle(ctx, GetLeaderboardQuery{LearnerID: "u3"})
		require.NoError(t, err)
		assert.Equal(t, "store", res.Source)
		require.Len(t, res.Entries, 3)
		assert.Equal(t, "u2", res.Entries[0].LearnerID)
		assert.Equal(t, leaderboard.Rank(2), res.Entries[1].Rank)
		assert.Equal(t, leaderboard.Rank(2), res.Entries[2].Rank)
		require.NotNil(t, res.Me)
		assert.Equal(t, "u3", res.Me.LearnerID)
	})

	t.Run("reads cache", func(t *testing.T) {
		board := &stubBoard{entries: []leaderboard.Entry{
			leaderboard.NewEntry("u2", "Learner u2", 300, 100),
		}}
		board.entries[0].Rank = 1
		h := NewGetLeaderboardHandler(board, store.Learners(), 100, nil)

		res, err := h.Handle(ctx, GetLeaderboardQuery{Limit: 500, LearnerID: "u2"})
		require.NoError(t, err)
		assert.Equal(t, "cache", res.Source)
		require.NotNil(t, res.Me)
		assert.Equal(t, leaderboard.Rank(1), res.Me.Rank)
	})

	t.Run("negative limit", func(t *testing.T) {
		h := NewGetLeaderboardHandler(nil, store.Learners(), 100, nil)
		_, err := h.Handle(ctx, GetLeaderboardQuery{Limit: -1})
		assert.True(t, shared.IsValidation(err))
	})
}

func TestGetPointsHistory(t *testing.T) {
	store := seed(t)
	ctx := context.Background()
	for _, lessonID := range []string{"a", "b", "c"} {
		_, err := store.Ledger().GrantLessonReward(ctx, "u1", lessonID, 10)
		require.NoError(t, err)
	}
	h := NewGetPointsHistoryHandler(store.Learners(), store.PointsLog())

	res, err := h.Handle(ctx, GetPointsHistoryQuery{LearnerID: "u1", Viewer: Viewer{LearnerID: "u1"}})
	require.NoError(t, err)
	assert.Equal(t, 30, res.Points)
	require.Len(t, res.Entries, 3)
	assert.Equal(t, achievement.LessonReason("c"), res.Entries[0].Reason)
	assert.Equal(t, achievement.LessonReason("a"), res.Entries[2].Reason)

	res, err = h.Handle(ctx, GetPointsHistoryQuery{LearnerID: "u1", Viewer: Viewer{LearnerID: "u1"}, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, res.Entries, 2)

	res, err = h.Handle(ctx, GetPointsHistoryQuery{LearnerID: "u2", Viewer: Viewer{LearnerID: "u2"}})
	require.NoError(t, err)
	assert.NotNil(t, res.Entries)
	assert.Empty(t, res.Entries)

	_, err = h.Handle(ctx, GetPointsHistoryQuery{LearnerID: "u1", Viewer: Viewer{LearnerID: "u2", Role: shared.RoleStudent}})
	assert.ErrorIs(t, err, shared.ErrForbidden)

	_, err = h.Handle(ctx, GetPointsHistoryQuery{LearnerID: "ghost", Viewer: Viewer{LearnerID: "t1", Role: shared.RoleTeacher}})
	assert.True(t, shared.IsNotFound(err))
}

func TestLessonCatalogQueries(t *testing.T) {
	store := seed(t)
	ctx := context.Background()
	require.NoError(t, store.Lessons().Save(ctx, &lesson.Lesson{
		ID: "a1", Title: "Runtime internals", Difficulty: shared.DifficultyAdvanced, PointsReward: 30, Order: 5, IsPublished: true,
	}))
	require.NoError(t, store.Lessons().Save(ctx, &lesson.Lesson{
		ID: "wip", Title: "Work in progress", Difficulty: shared.DifficultyBeginner, PointsReward: 10,
	}))

	list := NewListLessonsHandler(store.Lessons())
	all, err := list.Handle(ctx, ListLessonsQuery{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "b1", all[0].ID)
	assert.NotNil(t, all[0].Tags)

	advanced, err := list.Handle(ctx, ListLessonsQuery{Difficulty: " Advanced "})
	require.NoError(t, err)
	require.Len(t, advanced, 1)
	assert.Equal(t, "a1", advanced[0].ID)

	_, err = list.Handle(ctx, ListLessonsQuery{Difficulty: "guru"})
	assert.True(t, shared.IsValidation(err))

	get := NewGetLessonHandler(store.Lessons())
	_, err = get.Handle(ctx, GetLessonQuery{LessonID: "wip", Viewer: Viewer{LearnerID: "u1", Role: shared.RoleStudent}})
	assert.ErrorIs(t, err, shared.ErrLessonNotFound)

	l, err := get.Handle(ctx, GetLessonQuery{LessonID: "wip", Viewer: Viewer{LearnerID: "adm", Role: shared.RoleAdmin}})
	require.NoError(t, err)
	assert.Equal(t, "Work in progress", l.Title)
}
