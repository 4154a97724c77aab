package db

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func newMigrator(databaseURL, migrationsDir string) (*migrate.Migrate, error) {
	absDir, err := filepath.Abs(migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("[DB] failed to resolve migrations dir: %w", err)
	}

	sqlDB, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("[DB] failed to open connection for migrations: %w", err)
	}

	driver, err := pgxmigrate.WithInstance(sqlDB, &pgxmigrate.Config{})
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("[DB] failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+absDir, "pgx5", driver)
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("[DB] failed to create migration instance: %w", err)
	}
	return m, nil
}

// RunMigrations applies every pending migration.
func RunMigrations(databaseURL, migrationsDir string) error {
	m, err := newMigrator(databaseURL, migrationsDir)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("[DB] failed to run migrations: %w", err)
	}
	slog.Info("[DB] Migrations applied", slog.String("dir", migrationsDir))
	return nil
}

// RollbackLast undoes the most recent migration.
func RollbackLast(databaseURL, migrationsDir string) error {
	m, err := newMigrator(databaseURL, migrationsDir)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Steps(-1); err != nil {
		return fmt.Errorf("[DB] failed to roll back: %w", err)
	}
	slog.Info("[DB] Rolled back one migration")
	return nil
}

// MigrationVersion reports the currently applied version and whether the
// schema is dirty. ok is false when no migration has been applied yet.
func MigrationVersion(databaseURL, migrationsDir string) (version uint, dirty, ok bool, err error) {
	m, err := newMigrator(databaseURL, migrationsDir)
	if err != nil {
		return 0, false, false, err
	}
	defer m.Close()

	version, dirty, err = m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, false, nil
	}
	if err != nil {
		return 0, false, false, fmt.Errorf("[DB] failed to read version: %w", err)
	}
	return version, dirty, true, nil
}
