package command

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/golearn/learning-hub/internal/application/reward"
	"github.com/golearn/learning-hub/internal/application/saga"
	"github.com/golearn/learning-hub/internal/domain/achievement"
	"github.com/golearn/learning-hub/internal/domain/lesson"
	"github.com/golearn/learning-hub/internal/domain/quiz"
	"github.com/golearn/learning-hub/internal/domain/shared"
	"github.com/golearn/learning-hub/internal/infrastructure/persistence/memory"
	"github.com/golearn/learning-hub/pkg/timeutil"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.Event
}

func (p *recordingPublisher) Publish(e shared.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) count(t shared.EventType) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.EventType() == t {
			n++
		}
	}
	return n
}

type fixture struct {
	store *memory.Store
	bus   *recordingPublisher
	clock *timeutil.FixedClock
	deps  Dependencies
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	store := memory.NewStore(500)
	bus := &recordingPublisher{}
	clock := timeutil.NewFixedClock(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC))

	lessons := []lesson.Lesson{
		{ID: "b1", Title: "Introduction to GO", Difficulty: shared.DifficultyBeginner, PointsReward: 10, IsPublished: true},
		{ID: "b2", Title: "Variables", Difficulty: shared.DifficultyBeginner, PointsReward: 10, IsPublished: true},
		{ID: "b3", Title: "Functions", Difficulty: shared.DifficultyBeginner, PointsReward: 10, IsPublished: true},
		{ID: "b4", Title: "Slices", Difficulty: shared.DifficultyBeginner, PointsReward: 10, IsPublished: true},
		{ID: "b5", Title: "Maps", Difficulty: shared.DifficultyBeginner, PointsReward: 10, IsPublished: true},
		{ID: "i1", Title: "Interfaces", Difficulty: shared.DifficultyIntermediate, PointsReward: 20, IsPublished: true},
		{ID: "a1", Title: "Generics", Difficulty: shared.DifficultyAdvanced, PointsReward: 30, IsPublished: true},
	}
	for i := range lessons {
		require.NoError(t, store.Lessons().Save(ctx, &lessons[i]))
	}

	require.NoError(t, store.Quizzes().Save(ctx, &quiz.Quiz{
		ID:           "intro-quiz",
		LessonID:     "b1",
		Title:        "GO Basics",
		PassingScore: 70,
		IsActive:     true,
		Questions: []quiz.Question{
			{Text: "Who created GO?", Type: quiz.TypeMultipleChoice, Options: []string{"Google", "Microsoft"}, CorrectAnswer: "Google", Explanation: "Robert Griesemer, Rob Pike and Ken Thompson", Points: 10},
			{Text: "GO is statically typed", Type: quiz.TypeTrueFalse, CorrectAnswer: "true", Points: 5},
			{Text: "Zero value of a string", Type: quiz.TypeFreeText, CorrectAnswer: `""`, Points: 15},
		},
	}))
	require.NoError(t, store.Quizzes().Save(ctx, &quiz.Quiz{
		ID:       "empty-quiz",
		LessonID: "b2",
		Title:    "Nothing to score",
		IsActive: true,
	}))

	for _, a := range achievement.Defaults() {
		require.NoError(t, store.Achievements().Upsert(ctx, &a))
	}

	ledger := reward.NewLedger(store.Ledger(), bus, nil, nil)
	flow := saga.NewAchievementFlowSaga(store.Stats(), store.Achievements(), ledger, nil, saga.DefaultAchievementFlowConfig())

	return &fixture{
		store: store,
		bus:   bus,
		clock: clock,
		deps: Dependencies{
			Learners:  store.Learners(),
			Lessons:   store.Lessons(),
			Quizzes:   store.Quizzes(),
			Progress:  store.Progress(),
			Ledger:    ledger,
			Flow:      flow,
			Publisher: bus,
			Clock:     clock,
		},
	}
}

func achievementIDs(list []*achievement.Achievement) []string {
	ids := make([]string, 0, len(list))
	for _, a := range list {
		ids = append(ids, a.ID)
	}
	return ids
}

// flakyRewards fails the next lesson reward and quiz pass grants, after the
// progress write has already committed.
type flakyRewards struct {
	achievement.Ledger
	mu          sync.Mutex
	lessonFails int
	quizFails   int
}

var errRewardStoreDown = errors.New("reward store unavailable")

func (r *flakyRewards) GrantLessonReward(ctx context.Context, learnerID, lessonID string, points int) (achievement.Credit, error) {
	r.mu.Lock()
	fail := r.lessonFails > 0
	if fail {
		r.lessonFails--
	}
	r.mu.Unlock()
	if fail {
		return achievement.Credit{}, errRewardStoreDown
	}
	return r.Ledger.GrantLessonReward(ctx, learnerID, lessonID, points)
}

func (r *flakyRewards) GrantQuizPass(ctx context.Context, learnerID, quizID string, points int) (achievement.Credit, error) {
	r.mu.Lock()
	fail := r.quizFails > 0
	if fail {
		r.quizFails--
	}
	r.mu.Unlock()
	if fail {
		return achievement.Credit{}, errRewardStoreDown
	}
	return r.Ledger.GrantQuizPass(ctx, learnerID, quizID, points)
}

func (f *fixture) failRewardsOnce(lesson, quiz bool) {
	r := &flakyRewards{Ledger: f.store.Ledger()}
	if lesson {
		r.lessonFails = 1
	}
	if quiz {
		r.quizFails = 1
	}
	f.deps.Ledger = reward.NewLedger(r, f.bus, nil, nil)
}

// ══════════════════════════════════════════════════════════════════════════════
// LESSONS
// ══════════════════════════════════════════════════════════════════════════════

func TestStartLesson_NoDuplicate(t *testing.T) {
	f := newFixture(t)
	h := NewStartLessonHandler(f.deps)
	ctx := context.Background()

	first, err := h.Handle(ctx, StartLessonCommand{LearnerID: "u1", LessonID: "b1"})
	require.NoError(t, err)
	assert.True(t, first.Created)
	assert.False(t, first.Progress.IsCompleted)

	f.clock.Advance(time.Hour)
	second, err := h.Handle(ctx, StartLessonCommand{LearnerID: "u1", LessonID: "b1"})
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.Progress.StartedAt, second.Progress.StartedAt)
	assert.Equal(t, 1, f.bus.count(shared.EventLessonStarted))

	_, err = h.Handle(ctx, StartLessonCommand{LearnerID: "u1", LessonID: "missing"})
	assert.True(t, shared.IsNotFound(err))
}

func TestCompleteLesson_Idempotent(t *testing.T) {
	f := newFixture(t)
	h := NewCompleteLessonHandler(f.deps)
	ctx := context.Background()

	first, err := h.Handle(ctx, CompleteLessonCommand{LearnerID: "u1", LessonID: "b1"})
	require.NoError(t, err)
	assert.True(t, first.Transitioned)
	assert.Equal(t, 10, first.PointsAwarded)
	assert.Equal(t, []string{"first_lesson"}, achievementIDs(first.NewAchievements))
	assert.Equal(t, 60, first.Balance.TotalPoints)
	assert.Equal(t, 1, first.Balance.StreakDays)

	second, err := h.Handle(ctx, CompleteLessonCommand{LearnerID: "u1", LessonID: "b1"})
	require.NoError(t, err)
	assert.False(t, second.Transitioned)
	assert.Zero(t, second.PointsAwarded)
	assert.Empty(t, second.NewAchievements)
	assert.Equal(t, 60, second.Balance.TotalPoints)
	assert.Equal(t, first.Progress.CompletedAt, second.Progress.CompletedAt)

	history := f.store.History("u1")
	require.Len(t, history, 2)
	assert.Equal(t, "lesson_completed:b1", history[0].Reason)
	assert.Equal(t, "achievement:first_lesson", history[1].Reason)
	assert.Equal(t, 1, f.bus.count(shared.EventLessonCompleted))
}

func TestCompleteLesson_UnknownLesson(t *testing.T) {
	f := newFixture(t)
	h := NewCompleteLessonHandler(f.deps)

	_, err := h.Handle(context.Background(), CompleteLessonCommand{LearnerID: "u1", LessonID: "nope"})
	require.Error(t, err)
	assert.True(t, shared.IsNotFound(err))

	_, err = h.Handle(context.Background(), CompleteLessonCommand{LearnerID: "", LessonID: "b1"})
	assert.True(t, shared.IsValidation(err))
}

func TestCompleteLesson_RetryPaysRewardLostAfterCommit(t *testing.T) {
	f := newFixture(t)
	f.failRewardsOnce(true, false)
	h := NewCompleteLessonHandler(f.deps)
	ctx := context.Background()

	_, err := h.Handle(ctx, CompleteLessonCommand{LearnerID: "u1", LessonID: "b1"})
	require.ErrorIs(t, err, errRewardStoreDown)

	p, err := f.store.Progress().GetLessonProgress(ctx, "u1", "b1")
	require.NoError(t, err)
	assert.True(t, p.IsCompleted, "completion is committed before the reward")
	assert.Zero(t, f.bus.count(shared.EventLessonCompleted))

	retry, err := h.Handle(ctx, CompleteLessonCommand{LearnerID: "u1", LessonID: "b1"})
	require.NoError(t, err)
	assert.True(t, retry.Transitioned)
	assert.Equal(t, 10, retry.PointsAwarded)
	assert.Equal(t, []string{"first_lesson"}, achievementIDs(retry.NewAchievements))
	assert.Equal(t, 60, retry.Balance.TotalPoints)
	assert.Equal(t, 1, f.bus.count(shared.EventLessonCompleted))

	third, err := h.Handle(ctx, CompleteLessonCommand{LearnerID: "u1", LessonID: "b1"})
	require.NoError(t, err)
	assert.False(t, third.Transitioned)
	assert.Zero(t, third.PointsAwarded)
	assert.Equal(t, 60, third.Balance.TotalPoints)
	assert.Len(t, f.store.History("u1"), 2)
}

func TestCompleteLesson_ConcurrentCallersCreditOnce(t *testing.T) {
	f := newFixture(t)
	h := NewCompleteLessonHandler(f.deps)
	ctx := context.Background()

	const callers = 16
	var (
		wg           sync.WaitGroup
		mu           sync.Mutex
		transitioned int
		unlocked     int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := h.Handle(ctx, CompleteLessonCommand{LearnerID: "u1", LessonID: "b1"})
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if res.Transitioned {
				transitioned++
			}
			unlocked += len(res.NewAchievements)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, transitioned)
	assert.Equal(t, 1, unlocked)

	l, err := f.store.Learners().GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 60, l.Points)
	assert.Len(t, f.store.History("u1"), 2)
}

func TestCompleteLesson_FifthBeginnerLessonUnlocksBadge(t *testing.T) {
	f := newFixture(t)
	h := NewCompleteLessonHandler(f.deps)
	ctx := context.Background()

	for i := 1; i <= 4; i++ {
		res, err := h.Handle(ctx, CompleteLessonCommand{LearnerID: "u1", LessonID: fmt.Sprintf("b%d", i)})
		require.NoError(t, err)
		assert.NotContains(t, achievementIDs(res.NewAchievements), "go_beginner")
	}

	res, err := h.Handle(ctx, CompleteLessonCommand{LearnerID: "u1", LessonID: "b5"})
	require.NoError(t, err)
	assert.Equal(t, []string{"go_beginner"}, achievementIDs(res.NewAchievements))
	// 5 * 10 + first_lesson 50 + go_beginner 150
	assert.Equal(t, 250, res.Balance.TotalPoints)

	earned, err := f.store.Achievements().ListEarned(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, earned, 2)
}

func TestCompleteLesson_DifficultyVariety(t *testing.T) {
	f := newFixture(t)
	h := NewCompleteLessonHandler(f.deps)
	ctx := context.Background()

	_, err := h.Handle(ctx, CompleteLessonCommand{LearnerID: "u1", LessonID: "b1"})
	require.NoError(t, err)
	_, err = h.Handle(ctx, CompleteLessonCommand{LearnerID: "u1", LessonID: "i1"})
	require.NoError(t, err)
	res, err := h.Handle(ctx, CompleteLessonCommand{LearnerID: "u1", LessonID: "a1"})
	require.NoError(t, err)

	assert.Equal(t, []string{"code_explorer"}, achievementIDs(res.NewAchievements))
	// 10 + 20 + 30 + 50 + 300 = 410, still level 1
	assert.Equal(t, 410, res.Balance.TotalPoints)
	assert.Equal(t, 1, res.Balance.Level)
}

func TestCompleteLesson_StreakAcrossDays(t *testing.T) {
	f := newFixture(t)
	h := NewCompleteLessonHandler(f.deps)
	ctx := context.Background()

	lessons := []string{"b1", "b2", "b3", "b4", "b5", "i1", "a1"}
	var last *CompleteLessonResult
	for _, id := range lessons {
		res, err := h.Handle(ctx, CompleteLessonCommand{LearnerID: "u1", LessonID: id})
		require.NoError(t, err)
		last = res
		f.clock.Advance(24 * time.Hour)
	}

	assert.Equal(t, 7, last.Balance.StreakDays)
	assert.Contains(t, achievementIDs(last.NewAchievements), "week_streak")
	assert.True(t, last.Balance.Level >= 2)
	assert.Equal(t, 1, f.bus.count(shared.EventLevelUp))
}

// ══════════════════════════════════════════════════════════════════════════════
// QUIZZES
// ══════════════════════════════════════════════════════════════════════════════

func TestStartQuizAttempt_RedactsWithoutMutation(t *testing.T) {
	f := newFixture(t)
	h := NewStartQuizAttemptHandler(f.deps)
	ctx := context.Background()

	res, err := h.Handle(ctx, StartQuizAttemptCommand{LearnerID: "u1", QuizID: "intro-quiz"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Attempt.ID)
	assert.Equal(t, 30, res.Attempt.MaxScore)
	require.Len(t, res.Questions, 3)
	for _, q := range res.Questions {
		assert.Empty(t, q.CorrectAnswer)
		assert.Empty(t, q.Explanation)
	}
	assert.Equal(t, []string{"Google", "Microsoft"}, res.Questions[0].Options)

	stored, err := f.store.Quizzes().GetByID(ctx, "intro-quiz")
	require.NoError(t, err)
	assert.Equal(t, "Google", stored.Questions[0].CorrectAnswer)
	assert.NotEmpty(t, stored.Questions[0].Explanation)

	_, err = h.Handle(ctx, StartQuizAttemptCommand{LearnerID: "u1", QuizID: "missing"})
	assert.True(t, shared.IsNotFound(err))
}

func startAttempt(t *testing.T, f *fixture, learnerID, quizID string) string {
	t.Helper()
	res, err := NewStartQuizAttemptHandler(f.deps).Handle(context.Background(), StartQuizAttemptCommand{LearnerID: learnerID, QuizID: quizID})
	require.NoError(t, err)
	return res.Attempt.ID
}

func TestSubmitQuizAttempt_ScoresOnce(t *testing.T) {
	f := newFixture(t)
	h := NewSubmitQuizAttemptHandler(f.deps, SubmitQuizAttemptConfig{})
	ctx := context.Background()
	id := startAttempt(t, f, "u1", "intro-quiz")

	res, err := h.Handle(ctx, SubmitQuizAttemptCommand{
		AttemptID: id,
		LearnerID: "u1",
		Answers:   map[string]string{"0": "Google", "1": "false", "2": `""`},
	})
	require.NoError(t, err)
	assert.Equal(t, 25, res.Score.Score)
	assert.Equal(t, 30, res.Score.MaxScore)
	assert.True(t, res.Score.Passed)
	assert.True(t, res.Attempt.IsCompleted)
	assert.Empty(t, res.NewAchievements)

	_, err = h.Handle(ctx, SubmitQuizAttemptCommand{
		AttemptID: id,
		LearnerID: "u1",
		Answers:   map[string]string{"0": "Google", "1": "true", "2": `""`},
	})
	require.Error(t, err)
	assert.True(t, shared.IsConflict(err))

	stored, err := f.store.Progress().GetAttempt(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 25, stored.Score)
}

func TestSubmitQuizAttempt_ConcurrentSubmissions(t *testing.T) {
	f := newFixture(t)
	h := NewSubmitQuizAttemptHandler(f.deps, SubmitQuizAttemptConfig{})
	id := startAttempt(t, f, "u1", "intro-quiz")

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		ok        int
		conflicts int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.Handle(context.Background(), SubmitQuizAttemptCommand{
				AttemptID: id,
				LearnerID: "u1",
				Answers:   map[string]string{"0": "Google", "1": "true", "2": `""`},
			})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				ok++
			} else if shared.IsConflict(err) {
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, 7, conflicts)
	assert.Equal(t, 1, f.bus.count(shared.EventAchievementUnlocked))
}

func TestSubmitQuizAttempt_ForeignAttempt(t *testing.T) {
	f := newFixture(t)
	h := NewSubmitQuizAttemptHandler(f.deps, SubmitQuizAttemptConfig{})
	id := startAttempt(t, f, "owner", "intro-quiz")

	_, err := h.Handle(context.Background(), SubmitQuizAttemptCommand{AttemptID: id, LearnerID: "intruder"})
	require.Error(t, err)
	assert.True(t, shared.IsNotFound(err))

	stored, err := f.store.Progress().GetAttempt(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, stored.IsCompleted)
}

func TestSubmitQuizAttempt_PerfectScoreUnlocksQuizMaster(t *testing.T) {
	f := newFixture(t)
	h := NewSubmitQuizAttemptHandler(f.deps, SubmitQuizAttemptConfig{})
	id := startAttempt(t, f, "u1", "intro-quiz")

	res, err := h.Handle(context.Background(), SubmitQuizAttemptCommand{
		AttemptID: id,
		LearnerID: "u1",
		Answers:   map[string]string{"0": "Google", "1": "True", "2": ` "" `},
	})
	require.NoError(t, err)
	assert.True(t, res.Score.IsPerfect())
	assert.Equal(t, []string{"quiz_master"}, achievementIDs(res.NewAchievements))
	assert.Equal(t, 100, res.Balance.TotalPoints)
}

func TestSubmitQuizAttempt_DegenerateQuiz(t *testing.T) {
	f := newFixture(t)
	h := NewSubmitQuizAttemptHandler(f.deps, SubmitQuizAttemptConfig{})
	id := startAttempt(t, f, "u1", "empty-quiz")

	_, err := h.Handle(context.Background(), SubmitQuizAttemptCommand{AttemptID: id, LearnerID: "u1"})
	require.Error(t, err)
	assert.True(t, shared.IsDegenerate(err))

	stored, err := f.store.Progress().GetAttempt(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, stored.IsCompleted)
}

func TestSubmitQuizAttempt_PassBonusOncePerQuiz(t *testing.T) {
	f := newFixture(t)
	h := NewSubmitQuizAttemptHandler(f.deps, SubmitQuizAttemptConfig{QuizPassPoints: 20})
	ctx := context.Background()
	passing := map[string]string{"0": "Google", "2": `""`}

	first, err := h.Handle(ctx, SubmitQuizAttemptCommand{AttemptID: startAttempt(t, f, "u1", "intro-quiz"), LearnerID: "u1", Answers: passing})
	require.NoError(t, err)
	assert.Equal(t, 20, first.BonusAwarded)

	second, err := h.Handle(ctx, SubmitQuizAttemptCommand{AttemptID: startAttempt(t, f, "u1", "intro-quiz"), LearnerID: "u1", Answers: passing})
	require.NoError(t, err)
	assert.Zero(t, second.BonusAwarded)
	assert.Equal(t, 20, second.Balance.TotalPoints)
}

func TestSubmitQuizAttempt_ResubmissionPaysLostPassBonus(t *testing.T) {
	f := newFixture(t)
	f.failRewardsOnce(false, true)
	h := NewSubmitQuizAttemptHandler(f.deps, SubmitQuizAttemptConfig{QuizPassPoints: 20})
	ctx := context.Background()
	id := startAttempt(t, f, "u1", "intro-quiz")
	passing := map[string]string{"0": "Google", "2": `""`}

	_, err := h.Handle(ctx, SubmitQuizAttemptCommand{AttemptID: id, LearnerID: "u1", Answers: passing})
	require.ErrorIs(t, err, errRewardStoreDown)

	l, err := f.store.Learners().GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, l.Points)

	_, err = h.Handle(ctx, SubmitQuizAttemptCommand{AttemptID: id, LearnerID: "u1", Answers: passing})
	require.Error(t, err)
	assert.True(t, shared.IsConflict(err))

	l, err = f.store.Learners().GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 20, l.Points)

	_, err = h.Handle(ctx, SubmitQuizAttemptCommand{AttemptID: id, LearnerID: "u1", Answers: passing})
	assert.True(t, shared.IsConflict(err))

	l, err = f.store.Learners().GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 20, l.Points)
}

func TestSubmitQuizAttempt_StatsCountEveryAttempt(t *testing.T) {
	f := newFixture(t)
	h := NewSubmitQuizAttemptHandler(f.deps, SubmitQuizAttemptConfig{})
	ctx := context.Background()
	perfect := map[string]string{"0": "Google", "1": "true", "2": `""`}

	for i := 0; i < 2; i++ {
		_, err := h.Handle(ctx, SubmitQuizAttemptCommand{AttemptID: startAttempt(t, f, "u1", "intro-quiz"), LearnerID: "u1", Answers: perfect})
		require.NoError(t, err)
	}
	startAttempt(t, f, "u1", "intro-quiz")

	stats, err := f.store.Stats().LearnerStats(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.QuizzesCompleted)
	assert.Equal(t, 1, stats.PerfectQuizScore)
}
