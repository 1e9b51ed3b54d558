package database

import (
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// RunMigrations applies pending embedded migrations. A dirty state from a
// failed run is forced back one version and retried.
func RunMigrations(databaseURL string) error {
	source, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("creating migration source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, toPgx5URL(databaseURL))
	if err != nil {
		return fmt.Errorf("creating migrate instance: %w", err)
	}
	defer m.Close()

	version, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		zap.L().Info("No migrations applied yet")
	case err != nil:
		return fmt.Errorf("reading migration version: %w", err)
	case dirty:
		zap.L().Warn("Dirty migration state detected, resetting to retry", zap.Uint("dirty_version", version))
		previous := int(version) - 1
		if previous < 1 {
			previous = -1
		}
		if err := m.Force(previous); err != nil {
			return fmt.Errorf("resetting dirty migration: %w", err)
		}
	default:
		zap.L().Info("Current migration version", zap.Uint("version", version))
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			zap.L().Info("Database is up to date")
			return nil
		}
		return fmt.Errorf("applying migrations: %w", err)
	}

	zap.L().Info("Migrations applied successfully")
	return nil
}

// toPgx5URL rewrites postgres:// URLs to the pgx5:// scheme the migrate
// driver registers under.
func toPgx5URL(databaseURL string) string {
	for _, prefix := range []string{"postgresql:", "postgres:"} {
		if strings.HasPrefix(databaseURL, prefix) {
			return "pgx5:" + strings.TrimPrefix(databaseURL, prefix)
		}
	}
	return databaseURL
}
