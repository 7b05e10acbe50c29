package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/golearn/learning-hub/internal/application/command"
	"github.com/golearn/learning-hub/internal/application/query"
	"github.com/golearn/learning-hub/internal/application/reward"
	"github.com/golearn/learning-hub/internal/application/saga"
	"github.com/golearn/learning-hub/internal/domain/achievement"
	"github.com/golearn/learning-hub/internal/domain/lesson"
	"github.com/golearn/learning-hub/internal/domain/quiz"
	"github.com/golearn/learning-hub/internal/domain/shared"
	"github.com/golearn/learning-hub/internal/infrastructure/metrics"
	"github.com/golearn/learning-hub/internal/infrastructure/persistence/memory"
	"github.com/golearn/learning-hub/internal/interface/http/handlers"
	"github.com/golearn/learning-hub/pkg/logger"
	"github.com/golearn/learning-hub/pkg/timeutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testSecret = "test-secret"

type testServer struct {
	server  *Server
	auth    *handlers.Authenticator
	health  *handlers.CompositeHealthChecker
	metrics *metrics.Metrics
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()

	store := memory.NewStore(500)
	clock := timeutil.NewFixedClock(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC))

	require.NoError(t, store.Lessons().Save(ctx, &lesson.Lesson{
		ID: "b1", Title: "Introduction to GO", Difficulty: shared.DifficultyBeginner, PointsReward: 10, IsPublished: true,
	}))
	require.NoError(t, store.Lessons().Save(ctx, &lesson.Lesson{
		ID: "i1", Title: "Generics in depth", Difficulty: shared.DifficultyIntermediate, PointsReward: 20, Order: 2, IsPublished: true,
	}))
	require.NoError(t, store.Lessons().Save(ctx, &lesson.Lesson{
		ID: "draft", Title: "Unreleased", Difficulty: shared.DifficultyBeginner, PointsReward: 5, Order: 3,
	}))
	require.NoError(t, store.Quizzes().Save(ctx, &quiz.Quiz{
		ID:           "intro-quiz",
		LessonID:     "b1",
		Title:        "GO Basics",
		PassingScore: 70,
		IsActive:     true,
		Questions: []quiz.Question{
			{Text: "Who created GO?", Type: quiz.TypeMultipleChoice, Options: []string{"Google", "Microsoft"}, CorrectAnswer: "Google", Points: 10},
			{Text: "GO is statically typed", Type: quiz.TypeTrueFalse, CorrectAnswer: "true", Points: 5},
			{Text: "Zero value of a string", Type: quiz.TypeFreeText, CorrectAnswer: `""`, Points: 15},
		},
	}))
	require.NoError(t, store.Quizzes().Save(ctx, &quiz.Quiz{
		ID: "empty-quiz", LessonID: "b1", Title: "Nothing to score", IsActive: true,
	}))
	for _, a := range achievement.Defaults() {
		require.NoError(t, store.Achievements().Upsert(ctx, &a))
	}

	m := metrics.New()
	ledger := reward.NewLedger(store.Ledger(), nil, m, nil)
	flow := saga.NewAchievementFlowSaga(store.Stats(), store.Achievements(), ledger, nil, saga.DefaultAchievementFlowConfig())
	deps := command.Dependencies{
		Learners: store.Learners(),
		Lessons:  store.Lessons(),
		Quizzes:  store.Quizzes(),
		Progress: store.Progress(),
		Ledger:   ledger,
		Flow:     flow,
		Clock:    clock,
	}

	auth, err := handlers.NewAuthenticator(handlers.AuthConfig{Secret: testSecret, Issuer: "learning-hub", TokenTTL: time.Hour})
	require.NoError(t, err)
	health := handlers.NewCompositeHealthChecker("test")
	health.AddCheck("store", handlers.NewPingCheck(store))

	srv := NewServer(DefaultConfig(), Dependencies{
		StartLesson:            command.NewStartLessonHandler(deps),
		CompleteLesson:         command.NewCompleteLessonHandler(deps),
		StartQuizAttempt:       command.NewStartQuizAttemptHandler(deps),
		SubmitQuizAttempt:      command.NewSubmitQuizAttemptHandler(deps, command.SubmitQuizAttemptConfig{}),
		GetLeaderboard:         query.NewGetLeaderboardHandler(nil, store.Learners(), 500, logger.Nop()),
		GetLearnerAchievements: query.NewGetLearnerAchievementsHandler(store.Achievements(), store.Stats()),
		GetLearnerStats:        query.NewGetLearnerStatsHandler(store.Learners(), store.Stats(), clock),
		ListAchievements:       query.NewListAchievementsHandler(store.Achievements()),
		GetLessonQuizzes:       query.NewGetLessonQuizzesHandler(store.Lessons(), store.Quizzes()),
		ListLessons:            query.NewListLessonsHandler(store.Lessons()),
		GetLesson:              query.NewGetLessonHandler(store.Lessons()),
		GetPointsHistory:       query.NewGetPointsHistoryHandler(store.Learners(), store.PointsLog()),
		Auth:                   auth,
		HealthChecker:          health,
		Metrics:                m,
		Logger:                 logger.Nop(),
	})

	return &testServer{server: srv, auth: auth, health: health, metrics: m}
}

func (ts *testServer) token(t *testing.T, learnerID string, role shared.Role) string {
	t.Helper()
	tok, err := ts.auth.IssueToken(learnerID, role)
	require.NoError(t, err)
	return tok
}

func (ts *testServer) do(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, JSONResponse) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(rec, req)

	var resp JSONResponse
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

// data decodes the envelope payload into out.
func data(t *testing.T, resp JSONResponse, out interface{}) {
	t.Helper()
	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, out))
}

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH
// ══════════════════════════════════════════════════════════════════════════════

func TestHealth(t *testing.T) {
	t.Run("all checks pass", func(t *testing.T) {
		ts := newTestServer(t)
		rec, resp := ts.do(t, http.MethodGet, "/health", "", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, resp.Success)
		assert.NotEmpty(t, rec.Header().Get(handlers.HeaderRequestID))
	})

	t.Run("optional dependency down degrades but stays ready", func(t *testing.T) {
		ts := newTestServer(t)
		ts.health.AddOptionalCheck("redis", func(context.Context) error { return errors.New("connection refused") })

		rec, resp := ts.do(t, http.MethodGet, "/health", "", nil)
		assert.Equal(t, http.StatusOK, rec.Code)

		var status handlers.HealthStatus
		data(t, resp, &status)
		assert.False(t, status.Healthy)
		assert.True(t, status.Ready)
		assert.Contains(t, status.Message, "redis")

		rec, _ = ts.do(t, http.MethodGet, "/ready", "", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("critical dependency down", func(t *testing.T) {
		ts := newTestServer(t)
		ts.health.AddCheck("postgres", func(context.Context) error { return errors.New("timeout") })

		rec, _ := ts.do(t, http.MethodGet, "/health", "", nil)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		rec, _ = ts.do(t, http.MethodGet, "/ready", "", nil)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodGet, "/api/v1/achievements", "", nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "learning_hub_http_requests_total")
	assert.Contains(t, rec.Body.String(), `route="/api/v1/achievements"`)
}

// ══════════════════════════════════════════════════════════════════════════════
// AUTH
// ══════════════════════════════════════════════════════════════════════════════

func TestAuthRequired(t *testing.T) {
	ts := newTestServer(t)

	rec, resp := ts.do(t, http.MethodPost, "/api/v1/lessons/b1/progress", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, resp.Success)

	rec, _ = ts.do(t, http.MethodPost, "/api/v1/lessons/b1/progress", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthDisabled_UsesHeaders(t *testing.T) {
	ts := newTestServer(t)
	srv := NewServer(DefaultConfig(), Dependencies{
		StartLesson: ts.server.deps.StartLesson,
		Logger:      logger.Nop(),
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/lessons/b1/progress", nil)
	req.Header.Set(handlers.HeaderLearnerID, "dev-user")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

func TestStartLesson(t *testing.T) {
	ts := newTestServer(t)
	tok := ts.token(t, "u1", shared.RoleStudent)

	rec, resp := ts.do(t, http.MethodPost, "/api/v1/lessons/b1/progress", tok, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var p lessonProgressResponse
	data(t, resp, &p)
	assert.Equal(t, "u1", p.LearnerID)
	assert.False(t, p.IsCompleted)

	rec, _ = ts.do(t, http.MethodPost, "/api/v1/lessons/b1/progress", tok, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, resp = ts.do(t, http.MethodPost, "/api/v1/lessons/missing/progress", tok, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", resp.Error.Code)
}

func TestCompleteLesson_Idempotent(t *testing.T) {
	ts := newTestServer(t)
	tok := ts.token(t, "u1", shared.RoleStudent)

	rec, resp := ts.do(t, http.MethodPut, "/api/v1/lessons/b1/complete", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var first completeLessonResponse
	data(t, resp, &first)
	assert.True(t, first.Transitioned)
	assert.Equal(t, 10, first.PointsAwarded)
	require.Len(t, first.NewAchievements, 1)
	assert.Equal(t, "first_lesson", first.NewAchievements[0].ID)
	assert.Equal(t, 60, first.Balance.TotalPoints)

	rec, resp = ts.do(t, http.MethodPut, "/api/v1/lessons/b1/complete", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var second completeLessonResponse
	data(t, resp, &second)
	assert.False(t, second.Transitioned)
	assert.Zero(t, second.PointsAwarded)
	assert.Empty(t, second.NewAchievements)
	assert.Equal(t, 60, second.Balance.TotalPoints)
	assert.True(t, second.Progress.IsCompleted)
}

// ══════════════════════════════════════════════════════════════════════════════
// QUIZ ATTEMPTS
// ══════════════════════════════════════════════════════════════════════════════

func TestQuizAttemptFlow(t *testing.T) {
	ts := newTestServer(t)
	tok := ts.token(t, "u1", shared.RoleStudent)

	rec, resp := ts.do(t, http.MethodPost, "/api/v1/quizzes/intro-quiz/attempts", tok, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var started startAttemptResponse
	data(t, resp, &started)
	require.NotEmpty(t, started.AttemptID)
	assert.Equal(t, 30, started.MaxScore)
	require.Len(t, started.Questions, 3)
	for _, q := range started.Questions {
		assert.Empty(t, q.CorrectAnswer)
	}

	answers := map[string]interface{}{
		"answers": map[string]string{"0": "Google", "1": "true", "2": `""`},
	}
	path := fmt.Sprintf("/api/v1/attempts/%s/submit", started.AttemptID)

	rec, resp = ts.do(t, http.MethodPost, path, tok, answers)
	require.Equal(t, http.StatusOK, rec.Code)
	var submitted submitAttemptResponse
	data(t, resp, &submitted)
	assert.Equal(t, 30, submitted.Result.Score)
	assert.True(t, submitted.Result.Passed)
	assert.True(t, submitted.Attempt.IsCompleted)
	assert.Contains(t, achievementIDsOf(submitted.NewAchievements), "quiz_master")

	rec, resp = ts.do(t, http.MethodPost, path, tok, answers)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "conflict", resp.Error.Code)
}

func TestSubmitQuizAttempt_Errors(t *testing.T) {
	ts := newTestServer(t)
	owner := ts.token(t, "u1", shared.RoleStudent)
	other := ts.token(t, "u2", shared.RoleStudent)

	_, resp := ts.do(t, http.MethodPost, "/api/v1/quizzes/intro-quiz/attempts", owner, nil)
	var started startAttemptResponse
	data(t, resp, &started)
	path := fmt.Sprintf("/api/v1/attempts/%s/submit", started.AttemptID)

	t.Run("missing body", func(t *testing.T) {
		rec, _ := ts.do(t, http.MethodPost, path, owner, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("attempt of another learner", func(t *testing.T) {
		rec, _ := ts.do(t, http.MethodPost, path, other, map[string]interface{}{"answers": map[string]string{}})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("degenerate quiz", func(t *testing.T) {
		_, resp := ts.do(t, http.MethodPost, "/api/v1/quizzes/empty-quiz/attempts", owner, nil)
		var empty startAttemptResponse
		data(t, resp, &empty)

		rec, resp := ts.do(t, http.MethodPost, fmt.Sprintf("/api/v1/attempts/%s/submit", empty.AttemptID), owner,
			map[string]interface{}{"answers": map[string]string{}})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, "degenerate_content", resp.Error.Code)
	})
}

func achievementIDsOf(list []*achievement.Achievement) []string {
	ids := make([]string, 0, len(list))
	for _, a := range list {
		ids = append(ids, a.ID)
	}
	return ids
}

// ══════════════════════════════════════════════════════════════════════════════
// READS
// ══════════════════════════════════════════════════════════════════════════════

func TestLearnerStats_Visibility(t *testing.T) {
	ts := newTestServer(t)
	student := ts.token(t, "u1", shared.RoleStudent)
	teacher := ts.token(t, "t1", shared.RoleTeacher)

	rec, _ := ts.do(t, http.MethodPut, "/api/v1/lessons/b1/complete", student, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, resp := ts.do(t, http.MethodGet, "/api/v1/learners/me/stats", student, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats query.GetLearnerStatsResult
	data(t, resp, &stats)
	assert.Equal(t, "u1", stats.LearnerID)
	assert.Equal(t, 1, stats.Stats.LessonsCompleted)
	assert.Equal(t, 60, stats.Points)

	rec, _ = ts.do(t, http.MethodGet, "/api/v1/learners/u1/stats", ts.token(t, "u2", shared.RoleStudent), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = ts.do(t, http.MethodGet, "/api/v1/learners/u1/achievements", teacher, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCatalogReads(t *testing.T) {
	ts := newTestServer(t)
	tok := ts.token(t, "u1", shared.RoleStudent)

	rec, resp := ts.do(t, http.MethodGet, "/api/v1/achievements", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, resp.Meta.TotalCount)

	rec, _ = ts.do(t, http.MethodGet, "/api/v1/lessons/b1/quizzes", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, resp = ts.do(t, http.MethodGet, "/api/v1/lessons/b1/quizzes", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var quizzes []query.QuizDTO
	data(t, resp, &quizzes)
	require.NotEmpty(t, quizzes)
	for _, q := range quizzes {
		for _, question := range q.Questions {
			assert.Empty(t, question.CorrectAnswer)
		}
	}
}

func TestLessonCatalog(t *testing.T) {
	ts := newTestServer(t)
	student := ts.token(t, "u1", shared.RoleStudent)
	teacher := ts.token(t, "t1", shared.RoleTeacher)

	t.Run("auth required", func(t *testing.T) {
		rec, _ := ts.do(t, http.MethodGet, "/api/v1/lessons", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		rec, _ = ts.do(t, http.MethodGet, "/api/v1/lessons/b1", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("list published in order", func(t *testing.T) {
		rec, resp := ts.do(t, http.MethodGet, "/api/v1/lessons", student, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var lessons []query.LessonDTO
		data(t, resp, &lessons)
		require.Len(t, lessons, 2)
		assert.Equal(t, "b1", lessons[0].ID)
		assert.Equal(t, "i1", lessons[1].ID)
		assert.Equal(t, 2, resp.Meta.TotalCount)
	})

	t.Run("difficulty filter", func(t *testing.T) {
		rec, resp := ts.do(t, http.MethodGet, "/api/v1/lessons?difficulty=intermediate", student, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var lessons []query.LessonDTO
		data(t, resp, &lessons)
		require.Len(t, lessons, 1)
		assert.Equal(t, "i1", lessons[0].ID)

		rec, _ = ts.do(t, http.MethodGet, "/api/v1/lessons?difficulty=expert", student, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("get one", func(t *testing.T) {
		rec, resp := ts.do(t, http.MethodGet, "/api/v1/lessons/b1", student, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var l query.LessonDTO
		data(t, resp, &l)
		assert.Equal(t, "Introduction to GO", l.Title)
		assert.Equal(t, 10, l.PointsReward)

		rec, _ = ts.do(t, http.MethodGet, "/api/v1/lessons/missing", student, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("unpublished visible to staff only", func(t *testing.T) {
		rec, _ := ts.do(t, http.MethodGet, "/api/v1/lessons/draft", student, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)

		rec, resp := ts.do(t, http.MethodGet, "/api/v1/lessons/draft", teacher, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var l query.LessonDTO
		data(t, resp, &l)
		assert.False(t, l.IsPublished)
	})
}

func TestPointsHistory(t *testing.T) {
	ts := newTestServer(t)
	student := ts.token(t, "u1", shared.RoleStudent)

	rec, _ := ts.do(t, http.MethodPut, "/api/v1/lessons/b1/complete", student, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, resp := ts.do(t, http.MethodGet, "/api/v1/learners/me/points", student, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var history query.GetPointsHistoryResult
	data(t, resp, &history)
	assert.Equal(t, "u1", history.LearnerID)
	assert.Equal(t, 60, history.Points)
	require.Len(t, history.Entries, 2)
	// newest first: the achievement bonus follows the lesson reward
	assert.Equal(t, "achievement:first_lesson", history.Entries[0].Reason)
	assert.Equal(t, 50, history.Entries[0].Delta)
	assert.Equal(t, "lesson_completed:b1", history.Entries[1].Reason)
	assert.Equal(t, 10, history.Entries[1].Delta)

	rec, resp = ts.do(t, http.MethodGet, "/api/v1/learners/u1/points?limit=1", student, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	data(t, resp, &history)
	require.Len(t, history.Entries, 1)
	assert.Equal(t, 1, resp.Meta.TotalCount)

	rec, _ = ts.do(t, http.MethodGet, "/api/v1/learners/u1/points?limit=abc", student, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = ts.do(t, http.MethodGet, "/api/v1/learners/u1/points", ts.token(t, "u2", shared.RoleStudent), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = ts.do(t, http.MethodGet, "/api/v1/learners/u1/points", ts.token(t, "t1", shared.RoleTeacher), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLeaderboard(t *testing.T) {
	ts := newTestServer(t)
	rec, _ := ts.do(t, http.MethodPut, "/api/v1/lessons/b1/complete", ts.token(t, "u1", shared.RoleStudent), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, resp := ts.do(t, http.MethodGet, "/api/v1/leaderboard?limit=5&learner_id=u1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var board query.GetLeaderboardResult
	data(t, resp, &board)
	require.Len(t, board.Entries, 1)
	assert.Equal(t, "u1", board.Entries[0].LearnerID)
	require.NotNil(t, board.Me)
	assert.Equal(t, "store", board.Source)

	rec, _ = ts.do(t, http.MethodGet, "/api/v1/leaderboard?limit=abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec, _ = ts.do(t, http.MethodGet, "/api/v1/leaderboard?limit=-1", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{shared.ErrLessonNotFound, http.StatusNotFound},
		{fmt.Errorf("wrapped: %w", shared.ErrAttemptNotFound), http.StatusNotFound},
		{shared.ErrAttemptAlreadySubmitted, http.StatusConflict},
		{shared.ErrAlreadyEarned, http.StatusConflict},
		{shared.ErrDegenerateQuiz, http.StatusUnprocessableEntity},
		{shared.NewDomainError("x", "y", shared.ErrValidation, "bad"), http.StatusBadRequest},
		{shared.ErrInvalidLearner, http.StatusBadRequest},
		{shared.NewDomainError("x", "y", shared.ErrUnauthorized, "who"), http.StatusUnauthorized},
		{shared.NewDomainError("x", "y", shared.ErrForbidden, "no"), http.StatusForbidden},
		{shared.NewDomainError("x", "y", shared.ErrTimeout, "slow"), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		status, _ := errorStatus(tt.err)
		assert.Equal(t, tt.want, status, tt.err.Error())
	}
}
