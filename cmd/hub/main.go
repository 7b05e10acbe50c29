// Package main - точка входа Learning Hub.
//
// Один бинарник с подкомандами:
// - serve: REST API прогресса, квизов, достижений и лидерборда
// - worker: периодические задачи (пересборка лидерборда)
// - migrate: миграции схемы PostgreSQL
// - seed: определения достижений и демонстрационный каталог
// - token: выпуск JWT для разработки
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// version выставляется через -ldflags при сборке.
var version = "dev"

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	// Корневой контекст отменяется по SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

// globalFlags - флаги, общие для всех подкоманд.
type globalFlags struct {
	// memory заменяет PostgreSQL хранилищем в памяти процесса.
	memory bool
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           "hub",
		Short:         "Learning progress and gamification engine",
		Long:          "Learning Hub tracks lesson progress and quiz attempts, awards points and achievements and keeps a leaderboard.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVar(&flags.memory, "memory", false, "use the in-process store instead of PostgreSQL")

	root.AddCommand(
		newServeCmd(flags),
		newWorkerCmd(flags),
		newMigrateCmd(),
		newSeedCmd(flags),
		newTokenCmd(),
	)
	return root
}
