package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/akeren/event-referrals/internal/log"
	"github.com/akeren/event-referrals/pkg/utils"
	"github.com/joho/godotenv"
)

const AppEnvKey = "APP_ENV"

var devEnvironments = []string{"", "dev", "development", "local", "test", "testing"}

// InitializeEnvFile loads .env (or the files listed in ENV_FILES) unless
// SKIP_DOTENV is set. Variables already in the environment win.
func InitializeEnvFile(logger *log.Logger) {
	if utils.GetEnvBool("SKIP_DOTENV", false) {
		logger.Info("Skipping .env file load (SKIP_DOTENV=true)")
		return
	}

	files := utils.GetEnvList("ENV_FILES")
	if err := godotenv.Load(files...); err != nil {
		logger.Warn("No .env file found or failed to load it", "files", files, "error", err.Error())
		return
	}

	logger.Info("Environment variables loaded from .env file", "files", files)
}

func GetAppEnv() string {
	return strings.ToLower(utils.GetEnvTrimmed(AppEnvKey))
}

func IsProduction(appEnv string) bool {
	env := strings.ToLower(strings.TrimSpace(appEnv))
	return env == "production" || env == "prod"
}

// ValidateAutoMigrateAllowed keeps gorm AutoMigrate away from shared
// environments; those are migrated with the CLI.
func ValidateAutoMigrateAllowed(appEnv string) error {
	env := strings.ToLower(strings.TrimSpace(appEnv))
	if slices.Contains(devEnvironments, env) {
		return nil
	}
	return fmt.Errorf("--auto-migrate is not allowed when %s=%q; run `cli migrate up` instead", AppEnvKey, env)
}
