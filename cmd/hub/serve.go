package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/golearn/learning-hub/internal/application/command"
	"github.com/golearn/learning-hub/internal/application/query"
	httpserver "github.com/golearn/learning-hub/internal/interface/http"
	"github.com/golearn/learning-hub/internal/interface/http/handlers"
	"github.com/golearn/learning-hub/pkg/logger"
	"github.com/golearn/learning-hub/pkg/timeutil"
)

func newServeCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), flags)
		},
	}
}

func runServe(ctx context.Context, flags *globalFlags) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. КОНФИГУРАЦИЯ И ЛОГИРОВАНИЕ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer log.Sync()

	log.Info("starting Learning Hub API",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("version", cfg.App.Version),
		logger.String("catalog", cfg.Catalog.Backend),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 2. ХРАНИЛИЩА, ШИНА И ЯДРО НАЧИСЛЕНИЙ
	// ─────────────────────────────────────────────────────────────────────────
	a, err := buildApp(ctx, cfg, log, flags)
	if err != nil {
		return err
	}
	defer a.close()

	// ─────────────────────────────────────────────────────────────────────────
	// 3. АУТЕНТИФИКАЦИЯ
	// ─────────────────────────────────────────────────────────────────────────
	auth, err := handlers.NewAuthenticator(handlers.AuthConfig{
		Secret:   cfg.Auth.JWTSecret,
		Issuer:   cfg.Auth.Issuer,
		TokenTTL: cfg.Auth.TokenTTL,
		Disabled: cfg.Auth.Disabled,
	})
	if err != nil {
		return fmt.Errorf("failed to init auth: %w", err)
	}
	if cfg.Auth.Disabled {
		log.Warn("auth disabled, identity is taken from X-Learner-ID headers")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. HTTP СЕРВЕР
	// ─────────────────────────────────────────────────────────────────────────
	deps := a.commandDeps()
	serverDeps := httpserver.Dependencies{
		StartLesson:      command.NewStartLessonHandler(deps),
		CompleteLesson:   command.NewCompleteLessonHandler(deps),
		StartQuizAttempt: command.NewStartQuizAttemptHandler(deps),
		SubmitQuizAttempt: command.NewSubmitQuizAttemptHandler(deps, command.SubmitQuizAttemptConfig{
			QuizPassPoints: cfg.Gamification.QuizPassPoints,
		}),

		GetLeaderboard:         query.NewGetLeaderboardHandler(a.board, a.store.Learners(), cfg.Gamification.PointsPerLevel, log),
		GetLearnerAchievements: query.NewGetLearnerAchievementsHandler(a.store.Achievements(), a.store.Stats()),
		GetLearnerStats:        query.NewGetLearnerStatsHandler(a.store.Learners(), a.store.Stats(), timeutil.SystemClock{}),
		ListAchievements:       query.NewListAchievementsHandler(a.store.Achievements()),
		GetLessonQuizzes:       query.NewGetLessonQuizzesHandler(a.lessons, a.quizzes),
		ListLessons:            query.NewListLessonsHandler(a.lessons),
		GetLesson:              query.NewGetLessonHandler(a.lessons),
		GetPointsHistory:       query.NewGetPointsHistoryHandler(a.store.Learners(), a.store.PointsLog()),

		Auth:          auth,
		HealthChecker: a.health,
		Logger:        log,
	}
	if a.metrics != nil {
		serverDeps.Metrics = a.metrics
	}

	httpCfg := httpserver.DefaultConfig()
	httpCfg.Host = cfg.HTTP.Host
	httpCfg.Port = cfg.HTTP.Port
	httpCfg.ReadTimeout = cfg.HTTP.ReadTimeout
	httpCfg.WriteTimeout = cfg.HTTP.WriteTimeout
	httpCfg.IdleTimeout = cfg.HTTP.IdleTimeout
	httpCfg.AllowedOrigins = cfg.HTTP.AllowedOrigins
	httpCfg.Version = cfg.App.Version

	server := httpserver.NewServer(httpCfg, serverDeps)

	// ─────────────────────────────────────────────────────────────────────────
	// 5. ЗАПУСК И GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	g, gctx := errgroup.WithContext(ctx)

	g.Go(server.Start)

	if cfg.Scheduler.Enabled {
		sched, err := newScheduler(a)
		if err != nil {
			return err
		}
		if err := sched.Start(gctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		defer func() { _ = sched.Stop() }()
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info("starting graceful shutdown...", logger.Duration("timeout", cfg.HTTP.ShutdownTimeout))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	log.Info("Learning Hub API is running", logger.String("address", server.Address()))

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("shutdown completed successfully")
	return nil
}
