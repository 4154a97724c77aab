package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/DYAI2025/sentiment-analyzer-frontend/config"
	"github.com/DYAI2025/sentiment-analyzer-frontend/internal/db"
	"github.com/DYAI2025/sentiment-analyzer-frontend/internal/logging"
)

// schema manages the platform database tables the frontend depends on.
// Commands: up (default), down, version, verify.
func main() {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}
	config.LoadEnv(env)
	logging.InitLogger()

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		slog.Error("[Schema] DATABASE_URL is required")
		os.Exit(1)
	}

	migrationsDir := os.Getenv("MIGRATIONS_DIR")
	if migrationsDir == "" {
		migrationsDir = "migrations"
	}

	command := "up"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	switch command {
	case "up":
		if err := db.RunMigrations(databaseURL, migrationsDir); err != nil {
			slog.Error("[Schema] Migration failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
	case "down":
		if err := db.RollbackLast(databaseURL, migrationsDir); err != nil {
			slog.Error("[Schema] Rollback failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
	case "version":
		version, dirty, ok, err := db.MigrationVersion(databaseURL, migrationsDir)
		if err != nil {
			slog.Error("[Schema] Version check failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		if !ok {
			slog.Info("[Schema] No migrations applied yet")
			return
		}
		slog.Info("[Schema] Current version",
			slog.Uint64("version", uint64(version)),
			slog.Bool("dirty", dirty))
	case "verify":
		ctx := context.Background()
		pool, err := db.Connect(ctx, databaseURL)
		if err != nil {
			slog.Error("[Schema] Connection failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer pool.Close()

		if err := db.VerifySchema(ctx, pool); err != nil {
			slog.Error("[Schema] Verification failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		slog.Info("[Schema] All required tables present")
	default:
		slog.Error("[Schema] Unknown command, expected up|down|version|verify",
			slog.String("command", command))
		os.Exit(1)
	}
}
