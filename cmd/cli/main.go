// Package main provides the operator CLI for the event referrals service.
package main

import (
	"fmt"
	"os"

	"github.com/akeren/event-referrals/config"
	"github.com/akeren/event-referrals/internal/log"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

func main() {
	logger := log.NewLoggerWithJSONOutput()

	config.InitializeEnvFile(logger) // Load envs early for CLI consistency

	if err := rootCmd(logger).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd(logger *log.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "cli",
		Short:         "Operator tooling for the event referrals service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(migrateCmd(logger))
	cmd.AddCommand(statusCmd(logger))

	return cmd
}

// openDatabase connects with the same settings the server uses.
func openDatabase(logger *log.Logger) (*gorm.DB, func(), error) {
	db, err := config.NewDatabase(logger, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}

	return db, func() { config.CloseDatabase(db, logger) }, nil
}
