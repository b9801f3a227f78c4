package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/akeren/event-referrals/config"
	"github.com/akeren/event-referrals/domain"
	"github.com/akeren/event-referrals/internal/log"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := log.NewLoggerWithJSONOutput()

	if err := serverCmd(logger).ExecuteContext(context.Background()); err != nil {
		logger.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
}

func serverCmd(logger *log.Logger) *cobra.Command {
	var autoMigrate bool

	cmd := &cobra.Command{
		Use:           "server",
		Short:         "Serve the event registration and referral API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), logger, autoMigrate)
		},
	}

	cmd.Flags().BoolVarP(&autoMigrate, "auto-migrate", "m", false, "run gorm AutoMigrate on startup (development environments only)")
	return cmd
}

func run(parent context.Context, logger *log.Logger, autoMigrate bool) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Event referrals server initialized", "auto_migrate", autoMigrate)

	appConfig, err := config.LoadApplicationConfiguration(logger, autoMigrate)
	if err != nil {
		return err
	}
	defer appConfig.Cleanup()

	domain.SetupCoreDomain(appConfig)

	// Workers stop with ctx, before Cleanup closes the connections they use.
	workerCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()
	appConfig.StartBackgroundWorkers(workerCtx)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- appConfig.RouterService.RunHTTPServer()
	}()

	select {
	case err := <-serverErr:
		if err == nil {
			err = errors.New("http server stopped unexpectedly")
		}
		return err
	case <-ctx.Done():
		logger.Info("Shutdown signal received, shutting down gracefully...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := appConfig.RouterService.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	} else {
		logger.Info("HTTP server shut down gracefully")
	}

	stopWorkers()
	logger.Info("Graceful shutdown completed")
	return nil
}
