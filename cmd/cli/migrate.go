package main

import (
	"context"
	"fmt"
	"time"

	"github.com/akeren/event-referrals/config"
	"github.com/akeren/event-referrals/internal/log"
	"github.com/akeren/event-referrals/pkg/migrations"
	"github.com/akeren/event-referrals/pkg/utils"
	"github.com/spf13/cobra"
)

const migrateTimeout = 5 * time.Minute

func migrateCmd(logger *log.Logger) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
		Long: `Applies the versioned SQL migrations for the configured DB_DRIVER.

Migrations are read from migrations/<driver> unless --dir or MIGRATIONS_DIR
points elsewhere.`,
	}
	cmd.PersistentFlags().StringVar(&dir, "dir", utils.GetEnvTrimmedOrDefault("MIGRATIONS_DIR", ""), "Migrations directory")

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrations(cmd.Context(), logger, dir, func(ctx context.Context, run migrationRunner) error {
				if err := run.up(ctx); err != nil {
					return err
				}
				logger.Info("Database migrations completed")
				return nil
			})
		},
	})

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back applied migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrations(cmd.Context(), logger, dir, func(ctx context.Context, run migrationRunner) error {
				if err := run.down(ctx, steps); err != nil {
					return err
				}
				logger.Info("Database rollback completed", "steps", steps)
				return nil
			})
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "Number of migrations to roll back")
	cmd.AddCommand(down)

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrations(cmd.Context(), logger, dir, func(ctx context.Context, run migrationRunner) error {
				status, err := run.status(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), formatStatus(status))
				return nil
			})
		},
	})

	return cmd
}

type migrationRunner struct {
	up     func(ctx context.Context) error
	down   func(ctx context.Context, steps int) error
	status func(ctx context.Context) (migrations.Status, error)
}

func withMigrations(parent context.Context, logger *log.Logger, dir string, fn func(context.Context, migrationRunner) error) error {
	db, closeDB, err := openDatabase(logger)
	if err != nil {
		return err
	}
	defer closeDB()

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get SQL DB instance: %w", err)
	}

	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(parent, migrateTimeout)
	defer cancel()

	cfg := migrations.Config{
		Driver: config.DatabaseDriver(),
		Dir:    dir,
		Logger: logger,
	}

	return fn(ctx, migrationRunner{
		up: func(ctx context.Context) error {
			return migrations.Up(ctx, sqlDB, cfg)
		},
		down: func(ctx context.Context, steps int) error {
			return migrations.Down(ctx, sqlDB, cfg, steps)
		},
		status: func(ctx context.Context) (migrations.Status, error) {
			return migrations.CurrentStatus(ctx, sqlDB, cfg)
		},
	})
}

func formatStatus(status migrations.Status) string {
	switch {
	case status.Pristine:
		return "no migrations applied"
	case status.Dirty:
		return fmt.Sprintf("version %d (dirty)", status.Version)
	default:
		return fmt.Sprintf("version %d", status.Version)
	}
}
