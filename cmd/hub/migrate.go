package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/golearn/learning-hub/internal/infrastructure/persistence/postgres"
	"github.com/golearn/learning-hub/pkg/logger"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the PostgreSQL schema",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply pending migrations",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrator(cmd.Context(), func(m *postgres.Migrator) error {
					return m.Migrate(cmd.Context())
				})
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the last applied migration",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrator(cmd.Context(), func(m *postgres.Migrator) error {
					return m.Rollback(cmd.Context())
				})
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show applied and pending migrations",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrator(cmd.Context(), func(m *postgres.Migrator) error {
					list, err := m.Status(cmd.Context())
					if err != nil {
						return err
					}
					printMigrations(cmd.OutOrStdout(), list)
					return nil
				})
			},
		},
	)
	return cmd
}

// withMigrator открывает соединение без автомиграций и передаёт мигратор в fn.
func withMigrator(ctx context.Context, fn func(m *postgres.Migrator) error) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer log.Sync()

	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL is required for migrations")
	}

	// Схемой управляет эта команда, а не подключение
	dbCfg := *cfg
	dbCfg.Database.AutoMigrate = false

	conn, err := connectPostgres(ctx, &dbCfg, log)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := fn(postgres.NewMigrator(conn)); err != nil {
		log.Error("migration failed", logger.Err(err))
		return err
	}
	return nil
}

func printMigrations(w io.Writer, list []postgres.Migration) {
	for _, m := range list {
		state := "pending"
		if m.IsApplied {
			state = "applied " + m.AppliedAt.UTC().Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(w, "%4d  %-40s %s\n", m.Version, m.Name, state)
	}
}
