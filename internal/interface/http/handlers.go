package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/golearn/learning-hub/internal/application/command"
	"github.com/golearn/learning-hub/internal/application/query"
	"github.com/golearn/learning-hub/internal/domain/achievement"
	"github.com/golearn/learning-hub/internal/domain/progress"
	"github.com/golearn/learning-hub/internal/domain/quiz"
	"github.com/golearn/learning-hub/internal/domain/shared"
	"github.com/golearn/learning-hub/internal/interface/http/handlers"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleHealth reports every check. A degraded service (optional dependency
// down) still answers 200.
func (s *Server) handleHealth(c *gin.Context) {
	status := s.deps.HealthChecker.Check(c.Request.Context())
	if !status.Ready {
		writeJSON(c, http.StatusServiceUnavailable, status)
		return
	}
	writeJSON(c, http.StatusOK, status)
}

// handleReady handles the readiness check.
func (s *Server) handleReady(c *gin.Context) {
	status := s.deps.HealthChecker.Check(c.Request.Context())
	if !status.Ready {
		writeJSON(c, http.StatusServiceUnavailable, gin.H{
			"status": "not_ready",
			"reason": status.Message,
		})
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": "ready"})
}

// handleLive handles the liveness check.
func (s *Server) handleLive(c *gin.Context) {
	writeJSON(c, http.StatusOK, gin.H{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE DTOs
// ══════════════════════════════════════════════════════════════════════════════

type lessonProgressResponse struct {
	LearnerID        string     `json:"learner_id"`
	LessonID         string     `json:"lesson_id"`
	StartedAt        time.Time  `json:"started_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	IsCompleted      bool       `json:"is_completed"`
	TimeSpentMinutes int        `json:"time_spent_minutes"`
}

func toLessonProgressResponse(p *progress.LessonProgress) lessonProgressResponse {
	return lessonProgressResponse{
		LearnerID:        p.LearnerID,
		LessonID:         p.LessonID,
		StartedAt:        p.StartedAt,
		CompletedAt:      p.CompletedAt,
		IsCompleted:      p.IsCompleted,
		TimeSpentMinutes: p.TimeSpentMinutes,
	}
}

type attemptResponse struct {
	ID               string            `json:"id"`
	LearnerID        string            `json:"learner_id"`
	QuizID           string            `json:"quiz_id"`
	Answers          map[string]string `json:"answers,omitempty"`
	Score            int               `json:"score"`
	MaxScore         int               `json:"max_score"`
	Passed           bool              `json:"passed"`
	StartedAt        time.Time         `json:"started_at"`
	CompletedAt      *time.Time        `json:"completed_at,omitempty"`
	IsCompleted      bool              `json:"is_completed"`
	TimeTakenSeconds int               `json:"time_taken_seconds"`
}

func toAttemptResponse(a *progress.QuizAttempt) attemptResponse {
	return attemptResponse{
		ID:               a.ID,
		LearnerID:        a.LearnerID,
		QuizID:           a.QuizID,
		Answers:          a.Answers,
		Score:            a.Score,
		MaxScore:         a.MaxScore,
		Passed:           a.Passed,
		StartedAt:        a.StartedAt,
		CompletedAt:      a.CompletedAt,
		IsCompleted:      a.IsCompleted,
		TimeTakenSeconds: a.TimeTakenSeconds,
	}
}

type balanceResponse struct {
	TotalPoints int `json:"total_points"`
	Level       int `json:"level"`
	StreakDays  int `json:"streak_days"`
}

func toBalanceResponse(b command.Balance) balanceResponse {
	return balanceResponse{TotalPoints: b.TotalPoints, Level: b.Level, StreakDays: b.StreakDays}
}

func nonNilAchievements(in []*achievement.Achievement) []*achievement.Achievement {
	if in == nil {
		return []*achievement.Achievement{}
	}
	return in
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleStartLesson handles POST /api/v1/lessons/:id/progress.
// 201 on the first call, 200 when the lesson was already started.
func (s *Server) handleStartLesson(c *gin.Context) {
	id, _ := handlers.GetIdentity(c)

	result, err := s.deps.StartLesson.Handle(c.Request.Context(), command.StartLessonCommand{
		LearnerID: id.LearnerID,
		LessonID:  c.Param("id"),
	})
	if err != nil {
		s.writeError(c, "StartLesson", err)
		return
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	writeJSON(c, status, toLessonProgressResponse(result.Progress))
}

type completeLessonResponse struct {
	Progress        lessonProgressResponse     `json:"progress"`
	Transitioned    bool                       `json:"transitioned"`
	PointsAwarded   int                        `json:"points_awarded"`
	NewAchievements []*achievement.Achievement `json:"new_achievements"`
	Balance         balanceResponse            `json:"balance"`
}

// handleCompleteLesson handles PUT /api/v1/lessons/:id/complete.
// Repeating the call returns the stored progress and awards nothing.
func (s *Server) handleCompleteLesson(c *gin.Context) {
	id, _ := handlers.GetIdentity(c)

	result, err := s.deps.CompleteLesson.Handle(c.Request.Context(), command.CompleteLessonCommand{
		LearnerID: id.LearnerID,
		LessonID:  c.Param("id"),
	})
	if err != nil {
		s.writeError(c, "CompleteLesson", err)
		return
	}

	writeJSON(c, http.StatusOK, completeLessonResponse{
		Progress:        toLessonProgressResponse(result.Progress),
		Transitioned:    result.Transitioned,
		PointsAwarded:   result.PointsAwarded,
		NewAchievements: nonNilAchievements(result.NewAchievements),
		Balance:         toBalanceResponse(result.Balance),
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// QUIZ ATTEMPT HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type startAttemptResponse struct {
	AttemptID        string          `json:"attempt_id"`
	QuizID           string          `json:"quiz_id"`
	QuizTitle        string          `json:"quiz_title"`
	PassingScore     int             `json:"passing_score"`
	TimeLimitMinutes *int            `json:"time_limit_minutes,omitempty"`
	MaxScore         int             `json:"max_score"`
	StartedAt        time.Time       `json:"started_at"`
	Questions        []quiz.Question `json:"questions"`
}

// handleStartQuizAttempt handles POST /api/v1/quizzes/:id/attempts.
func (s *Server) handleStartQuizAttempt(c *gin.Context) {
	id, _ := handlers.GetIdentity(c)

	result, err := s.deps.StartQuizAttempt.Handle(c.Request.Context(), command.StartQuizAttemptCommand{
		LearnerID: id.LearnerID,
		QuizID:    c.Param("id"),
	})
	if err != nil {
		s.writeError(c, "StartQuizAttempt", err)
		return
	}

	writeJSON(c, http.StatusCreated, startAttemptResponse{
		AttemptID:        result.Attempt.ID,
		QuizID:           result.Attempt.QuizID,
		QuizTitle:        result.QuizTitle,
		PassingScore:     result.PassingScore,
		TimeLimitMinutes: result.TimeLimitMinutes,
		MaxScore:         result.Attempt.MaxScore,
		StartedAt:        result.Attempt.StartedAt,
		Questions:        result.Questions,
	})
}

type submitAttemptRequest struct {
	// Answers maps question ID to the answer. Missing answers count as wrong.
	Answers map[string]string `json:"answers" binding:"required"`
}

type submitAttemptResponse struct {
	Attempt         attemptResponse            `json:"attempt"`
	Result          quiz.Result                `json:"result"`
	BonusAwarded    int                        `json:"bonus_awarded"`
	NewAchievements []*achievement.Achievement `json:"new_achievements"`
	Balance         balanceResponse            `json:"balance"`
}

// handleSubmitQuizAttempt handles POST /api/v1/attempts/:id/submit.
func (s *Server) handleSubmitQuizAttempt(c *gin.Context) {
	id, _ := handlers.GetIdentity(c)

	var req submitAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeJSONError(c, http.StatusBadRequest, "validation_error", "body must be {\"answers\": {...}}")
		return
	}

	result, err := s.deps.SubmitQuizAttempt.Handle(c.Request.Context(), command.SubmitQuizAttemptCommand{
		AttemptID: c.Param("id"),
		LearnerID: id.LearnerID,
		Answers:   req.Answers,
	})
	if err != nil {
		s.writeError(c, "SubmitQuizAttempt", err)
		return
	}

	writeJSON(c, http.StatusOK, submitAttemptResponse{
		Attempt:         toAttemptResponse(result.Attempt),
		Result:          result.Score,
		BonusAwarded:    result.BonusAwarded,
		NewAchievements: nonNilAchievements(result.NewAchievements),
		Balance:         toBalanceResponse(result.Balance),
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// LEARNER HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// learnerParam resolves :id; "me" stands for the caller.
func learnerParam(c *gin.Context, viewer query.Viewer) string {
	if id := c.Param("id"); id != "me" {
		return id
	}
	return viewer.LearnerID
}

func viewerOf(c *gin.Context) query.Viewer {
	id, _ := handlers.GetIdentity(c)
	return query.Viewer{LearnerID: id.LearnerID, Role: id.Role}
}

// handleGetLearnerAchievements handles GET /api/v1/learners/:id/achievements.
func (s *Server) handleGetLearnerAchievements(c *gin.Context) {
	viewer := viewerOf(c)

	result, err := s.deps.GetLearnerAchievements.Handle(c.Request.Context(), query.GetLearnerAchievementsQuery{
		LearnerID: learnerParam(c, viewer),
		Viewer:    viewer,
	})
	if err != nil {
		s.writeError(c, "GetLearnerAchievements", err)
		return
	}
	writeJSON(c, http.StatusOK, result)
}

// handleGetLearnerStats handles GET /api/v1/learners/:id/stats.
func (s *Server) handleGetLearnerStats(c *gin.Context) {
	viewer := viewerOf(c)

	result, err := s.deps.GetLearnerStats.Handle(c.Request.Context(), query.GetLearnerStatsQuery{
		LearnerID: learnerParam(c, viewer),
		Viewer:    viewer,
	})
	if err != nil {
		s.writeError(c, "GetLearnerStats", err)
		return
	}
	writeJSON(c, http.StatusOK, result)
}

// handleGetPointsHistory handles GET /api/v1/learners/:id/points?limit=N.
func (s *Server) handleGetPointsHistory(c *gin.Context) {
	viewer := viewerOf(c)
	limit, ok := s.limitParam(c, "GetPointsHistory")
	if !ok {
		return
	}

	result, err := s.deps.GetPointsHistory.Handle(c.Request.Context(), query.GetPointsHistoryQuery{
		LearnerID: learnerParam(c, viewer),
		Viewer:    viewer,
		Limit:     limit,
	})
	if err != nil {
		s.writeError(c, "GetPointsHistory", err)
		return
	}
	writeJSONWithMeta(c, http.StatusOK, result, &ResponseMeta{TotalCount: len(result.Entries)})
}

// limitParam parses the optional ?limit=. ok=false means the error is written.
func (s *Server) limitParam(c *gin.Context, op string) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil {
		s.writeError(c, op, shared.NewDomainError("query", op, shared.ErrValidation, "limit must be an integer"))
		return 0, false
	}
	return limit, true
}

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleListLessons handles GET /api/v1/lessons?difficulty=D.
func (s *Server) handleListLessons(c *gin.Context) {
	result, err := s.deps.ListLessons.Handle(c.Request.Context(), query.ListLessonsQuery{
		Difficulty: c.Query("difficulty"),
	})
	if err != nil {
		s.writeError(c, "ListLessons", err)
		return
	}
	writeJSONWithMeta(c, http.StatusOK, result, &ResponseMeta{TotalCount: len(result)})
}

// handleGetLesson handles GET /api/v1/lessons/:id.
func (s *Server) handleGetLesson(c *gin.Context) {
	result, err := s.deps.GetLesson.Handle(c.Request.Context(), query.GetLessonQuery{
		LessonID: c.Param("id"),
		Viewer:   viewerOf(c),
	})
	if err != nil {
		s.writeError(c, "GetLesson", err)
		return
	}
	writeJSON(c, http.StatusOK, result)
}

// handleListAchievements handles GET /api/v1/achievements.
func (s *Server) handleListAchievements(c *gin.Context) {
	result, err := s.deps.ListAchievements.Handle(c.Request.Context())
	if err != nil {
		s.writeError(c, "ListAchievements", err)
		return
	}
	writeJSONWithMeta(c, http.StatusOK, result, &ResponseMeta{TotalCount: len(result)})
}

// handleGetLessonQuizzes handles GET /api/v1/lessons/:id/quizzes.
func (s *Server) handleGetLessonQuizzes(c *gin.Context) {
	result, err := s.deps.GetLessonQuizzes.Handle(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, "GetLessonQuizzes", err)
		return
	}
	writeJSONWithMeta(c, http.StatusOK, result, &ResponseMeta{TotalCount: len(result)})
}

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetLeaderboard handles GET /api/v1/leaderboard?limit=N&learner_id=ID.
func (s *Server) handleGetLeaderboard(c *gin.Context) {
	limit, ok := s.limitParam(c, "GetLeaderboard")
	if !ok {
		return
	}
	q := query.GetLeaderboardQuery{LearnerID: c.Query("learner_id"), Limit: limit}

	result, err := s.deps.GetLeaderboard.Handle(c.Request.Context(), q)
	if err != nil {
		s.writeError(c, "GetLeaderboard", err)
		return
	}
	writeJSONWithMeta(c, http.StatusOK, result, &ResponseMeta{TotalCount: len(result.Entries)})
}
