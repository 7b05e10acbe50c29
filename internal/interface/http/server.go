// Package http implements the REST API of the learning hub: progress
// tracking, quiz attempts, achievements and the leaderboard, plus health
// and metrics endpoints.
package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"slices"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/golearn/learning-hub/internal/application/command"
	"github.com/golearn/learning-hub/internal/application/query"
	"github.com/golearn/learning-hub/internal/interface/http/handlers"
	"github.com/golearn/learning-hub/pkg/logger"
)

// Config holds listener and request limits.
type Config struct {
	Host string
	Port int

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	MaxHeaderBytes int
	MaxBodyBytes   int64 // 0 disables the limit

	// CORS; empty or "*" allows every origin
	AllowedOrigins []string

	// Reported by /health
	Version string
}

func DefaultConfig() Config {
	return Config{
		Host:           "0.0.0.0",
		Port:           8080,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    time.Minute,
		MaxHeaderBytes: 1 << 20,
		MaxBodyBytes:   1 << 20,
		AllowedOrigins: []string{"*"},
		Version:        "v1",
	}
}

func (c Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// MetricsExporter records request metrics and serves the scrape endpoint.
type MetricsExporter interface {
	handlers.HTTPObserver
	Handler() http.Handler
}

// Dependencies are the use cases behind the routes. Nil Auth means
// header-based identity; nil Metrics disables /metrics.
type Dependencies struct {
	// write side
	StartLesson       *command.StartLessonHandler
	CompleteLesson    *command.CompleteLessonHandler
	StartQuizAttempt  *command.StartQuizAttemptHandler
	SubmitQuizAttempt *command.SubmitQuizAttemptHandler

	// read side
	GetLeaderboard         *query.GetLeaderboardHandler
	GetLearnerAchievements *query.GetLearnerAchievementsHandler
	GetLearnerStats        *query.GetLearnerStatsHandler
	ListAchievements       *query.ListAchievementsHandler
	GetLessonQuizzes       *query.GetLessonQuizzesHandler
	ListLessons            *query.ListLessonsHandler
	GetLesson              *query.GetLessonHandler
	GetPointsHistory       *query.GetPointsHistoryHandler

	Auth          *handlers.Authenticator
	HealthChecker handlers.HealthChecker
	Metrics       MetricsExporter
	Logger        *logger.Logger
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER
// ══════════════════════════════════════════════════════════════════════════════

type Server struct {
	config Config
	deps   Dependencies
	engine *gin.Engine
	srv    *http.Server
	log    *logger.Logger

	started atomic.Bool
}

func NewServer(config Config, deps Dependencies) *Server {
	log := deps.Logger
	if log == nil {
		log = logger.Nop()
	}
	if deps.Auth == nil {
		deps.Auth, _ = handlers.NewAuthenticator(handlers.AuthConfig{Disabled: true})
	}
	if deps.HealthChecker == nil {
		deps.HealthChecker = handlers.NewCompositeHealthChecker(config.Version)
	}

	s := &Server{
		config: config,
		deps:   deps,
		engine: gin.New(),
		log:    log.Named("http"),
	}
	s.engine.Use(s.middleware()...)
	s.routes()

	s.srv = &http.Server{
		Addr:           config.Address(),
		Handler:        s.engine,
		ReadTimeout:    config.ReadTimeout,
		WriteTimeout:   config.WriteTimeout,
		IdleTimeout:    config.IdleTimeout,
		MaxHeaderBytes: config.MaxHeaderBytes,
	}
	return s
}

// Handler exposes the router for in-process requests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) middleware() []gin.HandlerFunc {
	chain := []gin.HandlerFunc{
		handlers.Recovery(s.log),
		handlers.RequestID(s.log),
		handlers.RequestLogger(s.log),
		cors.New(corsConfig(s.config.AllowedOrigins)),
		handlers.SecurityHeaders(),
	}
	if s.deps.Metrics != nil {
		chain = append(chain, handlers.Metrics(s.deps.Metrics))
	}
	if s.config.MaxBodyBytes > 0 {
		chain = append(chain, handlers.RequestSizeLimit(s.config.MaxBodyBytes))
	}
	return chain
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", handlers.HeaderRequestID},
		ExposeHeaders: []string{handlers.HeaderRequestID},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

func (s *Server) routes() {
	e := s.engine
	e.GET("/health", s.handleHealth)
	e.GET("/ready", s.handleReady)
	e.GET("/live", s.handleLive)
	if s.deps.Metrics != nil {
		e.GET("/metrics", gin.WrapH(s.deps.Metrics.Handler()))
	}

	v1 := e.Group("/api/v1")
	v1.GET("/achievements", s.handleListAchievements)
	v1.GET("/leaderboard", s.handleGetLeaderboard)

	// learner-scoped routes
	me := v1.Group("", s.deps.Auth.RequireAuth())
	me.GET("/lessons", s.handleListLessons)
	me.GET("/lessons/:id", s.handleGetLesson)
	me.GET("/lessons/:id/quizzes", s.handleGetLessonQuizzes)
	me.POST("/lessons/:id/progress", s.handleStartLesson)
	me.PUT("/lessons/:id/complete", s.handleCompleteLesson)
	me.POST("/quizzes/:id/attempts", s.handleStartQuizAttempt)
	me.POST("/attempts/:id/submit", s.handleSubmitQuizAttempt)
	me.GET("/learners/:id/achievements", s.handleGetLearnerAchievements)
	me.GET("/learners/:id/stats", s.handleGetLearnerStats)
	me.GET("/learners/:id/points", s.handleGetPointsHistory)
}

// Start binds the listener and serves until Shutdown. A bind failure is
// returned immediately.
func (s *Server) Start() error {
	if !s.started.CompareAndSwap(false, true) {
		return errors.New("http server already started")
	}

	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.srv.Addr, err)
	}
	s.log.Info("http server listening", logger.String("address", ln.Addr().String()))

	if err := s.srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests
// until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down http server")
	return s.srv.Shutdown(ctx)
}

func (s *Server) Address() string {
	return s.config.Address()
}
