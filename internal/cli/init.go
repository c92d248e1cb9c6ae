// Package cli provides common startup utilities shared by cmd/voicexpense,
// cmd/voicexpense-worker, and cmd/voicexpense-assistant.
package cli

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"voicexpense/internal/config"
	"voicexpense/internal/ledger"
	"voicexpense/internal/ledger/memory"
	applog "voicexpense/internal/log"
	"voicexpense/internal/storage"
)

// SetupLogger initializes structured logging for a binary and installs it as
// the process default.
func SetupLogger(component string) *applog.Logger {
	logger := applog.New(component, slog.LevelInfo)
	applog.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *applog.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

// InitStore builds the ledger backend selected by the config. Exits the
// process if the SQLite file cannot be opened.
func InitStore(logger *applog.Logger, cfg *config.Config) (ledger.Store, func() error) {
	switch cfg.DataBackend {
	case "sqlite":
		repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
		if err != nil {
			logger.Error("Failed to initialize SQLite repository",
				"error", err, "path", cfg.SQLiteDBPath)
			os.Exit(1)
		}
		logger.Info("Using SQLite backend", "path", cfg.SQLiteDBPath)
		return repo, repo.Close
	default:
		logger.Info("Using in-memory backend")
		return memory.NewStore(), func() error { return nil }
	}
}
