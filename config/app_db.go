package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/akeren/event-referrals/internal/log"
	"github.com/akeren/event-referrals/pkg/retry"
	"github.com/akeren/event-referrals/pkg/utils"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	defaultSQLitePath = "event-referrals.db"
)

type DBConfig struct {
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	SSLMode         string // Default: "require" for prod safety
	PingAttempts    int
}

// NewDBConfig reads pool settings from DB_MAX_IDLE_CONNS, DB_MAX_OPEN_CONNS,
// DB_CONN_MAX_LIFETIME and DB_PING_ATTEMPTS.
func NewDBConfig() *DBConfig {
	return &DBConfig{
		MaxIdleConns:    int(utils.GetEnvPositiveInt("DB_MAX_IDLE_CONNS", 10)),
		MaxOpenConns:    int(utils.GetEnvPositiveInt("DB_MAX_OPEN_CONNS", 50)),
		ConnMaxLifetime: utils.GetEnvPositiveDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		SSLMode:         "require",
		PingAttempts:    int(utils.GetEnvPositiveInt("DB_PING_ATTEMPTS", 5)),
	}
}

// NewDatabase opens the store selected by DB_DRIVER. cfg may be nil.
func NewDatabase(logger *log.Logger, cfg *DBConfig) (*gorm.DB, error) {
	if cfg == nil {
		cfg = NewDBConfig()
	}

	if DatabaseDriver() == DriverSQLite {
		return newSQLiteDatabase(logger)
	}

	dsn, err := postgresDSN(logger, cfg.SSLMode)
	if err != nil {
		return nil, err
	}

	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		logger.Error("Failed to get database instance", "error", err)
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := pingWithRetry(sqlDB.Ping, cfg.PingAttempts); err != nil {
		logger.Error("Database ping failed", "error", err)
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	logger.Info("Database connection established successfully")
	return gdb, nil
}

// DatabaseDriver returns the configured DB_DRIVER, defaulting to postgres.
func DatabaseDriver() string {
	switch driver := strings.ToLower(utils.GetEnvUnquoted("DB_DRIVER")); driver {
	case "":
		return DriverPostgres
	case "sqlite3":
		return DriverSQLite
	default:
		return driver
	}
}

// newSQLiteDatabase opens the local development store at SQLITE_PATH.
func newSQLiteDatabase(logger *log.Logger) (*gorm.DB, error) {
	path := utils.GetEnvUnquotedOrDefault("SQLITE_PATH", defaultSQLitePath)

	gdb, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		logger.Error("Failed to open SQLite database", "path", path, "error", err)
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		logger.Error("Failed to get database instance", "error", err)
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	// SQLite allows a single writer.
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.Ping(); err != nil {
		logger.Error("Database ping failed", "error", err)
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	logger.Info("SQLite database opened", "path", path)
	return gdb, nil
}

func pingWithRetry(ping func() error, attempts int) error {
	policy := retry.NewExponentialBackoff(&retry.Config{
		MaxAttempts: attempts,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    5 * time.Second,
		Multiplier:  2.0,
	})

	return policy.Execute(ping)
}

// postgresDSN prefers APP_DATABASE_URL and otherwise assembles a key/value DSN
// from the POSTGRES_* variables.
func postgresDSN(logger *log.Logger, defaultSSLMode string) (string, error) {
	if url := utils.GetEnvUnquoted("APP_DATABASE_URL"); url != "" {
		logger.Info("Using APP_DATABASE_URL for database connection")
		return url, nil
	}

	settings := map[string]string{
		"host":     utils.GetEnvUnquoted("POSTGRES_HOST"),
		"port":     utils.GetEnvUnquoted("POSTGRES_PORT"),
		"user":     utils.GetEnvUnquoted("POSTGRES_USER"),
		"password": utils.GetEnvUnquoted("POSTGRES_PASSWORD"),
		"dbname":   utils.GetEnvUnquoted("POSTGRES_DB_NAME"),
		"sslmode":  utils.GetEnvUnquotedOrDefault("POSTGRES_SSLMODE", defaultSSLMode),
	}

	required := []struct{ key, env string }{
		{"host", "POSTGRES_HOST"},
		{"port", "POSTGRES_PORT"},
		{"user", "POSTGRES_USER"},
		{"dbname", "POSTGRES_DB_NAME"},
	}

	var missing []string
	for _, r := range required {
		if settings[r.key] == "" {
			missing = append(missing, r.env)
		}
	}
	if len(missing) > 0 {
		logger.Error("Missing required database environment variables", "missing_vars", strings.Join(missing, ", "))
		return "", fmt.Errorf("missing required database env vars: %s", strings.Join(missing, ", "))
	}

	if _, err := strconv.Atoi(settings["port"]); err != nil {
		logger.Error("Invalid POSTGRES_PORT", "error", err)
		return "", fmt.Errorf("invalid POSTGRES_PORT %q: %w", settings["port"], err)
	}

	logger.Info("Connecting to database",
		"host", settings["host"],
		"port", settings["port"],
		"user", settings["user"],
		"dbname", settings["dbname"],
		"sslmode", settings["sslmode"],
	)

	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		settings["host"], settings["port"], settings["user"], settings["password"], settings["dbname"], settings["sslmode"],
	), nil
}

func AutoMigrate(logger *log.Logger, db *gorm.DB, models ...interface{}) error {
	if db == nil {
		logger.Error("Cannot migrate: db is empty")
		return fmt.Errorf("cannot migrate: db is empty")
	}

	if err := db.AutoMigrate(models...); err != nil {
		logger.Error("Database migration failed", "error", err)
		return fmt.Errorf("auto-migrate failed: %w", err)
	}

	logger.Info("Database migration completed successfully")
	return nil
}

func CloseDatabase(db *gorm.DB, logger *log.Logger) {
	if db == nil {
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Error("Failed to get SQL DB instance", "error", err)
		return
	}

	if err := sqlDB.Close(); err != nil {
		logger.Error("Failed to close database", "error", err)
	} else {
		logger.Info("Database closed successfully")
	}
}
