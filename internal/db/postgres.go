package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/DYAI2025/sentiment-analyzer-frontend/internal/models"
)

const CONNECT_TIMEOUT = 5 * time.Second

// Connect opens a pgx pool against the platform database. Only the schema
// tool connects this way; the frontend itself goes through the platform's
// REST surface.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(ctx, CONNECT_TIMEOUT)
	defer cancel()

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("[DB] failed to open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("[DB] failed to ping database: %w", err)
	}

	slog.Info("[DB] Connected to PostgreSQL")
	return pool, nil
}

// VerifySchema checks that every table the frontend reads or writes exists.
func VerifySchema(ctx context.Context, pool *pgxpool.Pool) error {
	required := []string{models.TableJobs, models.TableAnnotations, models.TableAnalysisRequests}
	for _, table := range required {
		var exists bool
		err := pool.QueryRow(ctx,
			`SELECT EXISTS (
				SELECT 1 FROM information_schema.tables
				WHERE table_schema = 'public' AND table_name = $1
			)`, table).Scan(&exists)
		if err != nil {
			return fmt.Errorf("[DB] schema check for %s failed: %w", table, err)
		}
		if !exists {
			return fmt.Errorf("[DB] required table %s is missing", table)
		}
		slog.Debug("[DB] Table present", slog.String("table", table))
	}
	return nil
}
