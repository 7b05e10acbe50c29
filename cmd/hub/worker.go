package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/golearn/learning-hub/internal/infrastructure/scheduler"
	"github.com/golearn/learning-hub/internal/infrastructure/scheduler/jobs"
	"github.com/golearn/learning-hub/pkg/logger"
)

func newWorkerCmd(flags *globalFlags) *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run periodic jobs (leaderboard rebuild)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWorker(cmd.Context(), flags, once)
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "run every job once and exit")
	return cmd
}

func runWorker(ctx context.Context, flags *globalFlags, once bool) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. КОНФИГУРАЦИЯ И ЗАВИСИМОСТИ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer log.Sync()

	log.Info("starting Learning Hub worker", logger.String("env", string(cfg.App.Environment)))

	a, err := buildApp(ctx, cfg, log, flags)
	if err != nil {
		return err
	}
	defer a.close()

	// ─────────────────────────────────────────────────────────────────────────
	// 2. ПЛАНИРОВЩИК
	// ─────────────────────────────────────────────────────────────────────────
	if !a.sharedBoard {
		// Проекция в памяти принадлежит процессу serve, пересобирать её отсюда бессмысленно
		return errors.New("worker requires redis: the in-process leaderboard is rebuilt by serve")
	}
	sched, err := newScheduler(a)
	if err != nil {
		return err
	}

	if once {
		for _, info := range sched.ListJobs() {
			res, err := sched.RunNow(ctx, info.Name)
			if err != nil {
				return fmt.Errorf("job %s: %w", info.Name, err)
			}
			log.Info("job finished",
				logger.String("job", res.JobName),
				logger.Latency(res.Duration),
			)
		}
		return nil
	}

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	log.Info("Learning Hub worker is running")

	// Ожидаем сигнал завершения
	<-ctx.Done()
	log.Info("received shutdown signal")

	if err := sched.Stop(); err != nil {
		return err
	}
	log.Info("shutdown completed successfully")
	return nil
}

// newScheduler регистрирует периодические задачи.
func newScheduler(a *app) (*scheduler.Scheduler, error) {
	schedCfg := scheduler.DefaultConfig()
	schedCfg.Logger = a.log
	if a.cfg.Scheduler.JobTimeout > 0 {
		schedCfg.JobTimeout = a.cfg.Scheduler.JobTimeout
	}
	if a.metrics != nil {
		schedCfg.Observer = a.metrics
	}
	sched := scheduler.New(schedCfg)

	rebuild := jobs.NewRebuildLeaderboardJob(a.store.Learners(), a.board, a.log, jobs.RebuildLeaderboardConfig{
		Size:           a.cfg.Gamification.LeaderboardSize,
		PointsPerLevel: a.cfg.Gamification.PointsPerLevel,
	})
	if err := sched.Register(rebuild, scheduler.Every(a.cfg.Scheduler.RebuildLeaderboardInterval)); err != nil {
		return nil, fmt.Errorf("register %s: %w", rebuild.Name(), err)
	}
	return sched, nil
}
