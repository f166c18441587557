// Copyright (c) 2026 WashPass. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package migration applies the Session Store schema with golang-migrate.
//
// It only runs when the PostgreSQL backend is selected. The version table has
// a portal-specific name so the portal can share a database with other services.
package migration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	// pgx5 driver registers the "pgx5" scheme for golang-migrate.
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	// file source reads .sql files from disk.
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// versionTable is the golang-migrate bookkeeping table.
const versionTable = "portal_schema_migrations"

// RunUp applies all pending up migrations found under migrationsPath.
func RunUp(dsn, migrationsPath string, logger *slog.Logger) error {
	databaseURL, err := MigrateDSN(dsn)
	if err != nil {
		return err
	}

	migrator, err := migrate.New("file://"+migrationsPath, databaseURL)
	if err != nil {
		return fmt.Errorf("migration: failed to initialize: %w", err)
	}
	defer func() {
		sourceErr, dbErr := migrator.Close()
		if sourceErr != nil {
			logger.Error("migration_source_close_failed", slog.Any("error", sourceErr))
		}
		if dbErr != nil {
			logger.Error("migration_db_close_failed", slog.Any("error", dbErr))
		}
	}()

	migrator.Log = &migrateLogger{logger: logger}

	currentVersion, dirty, err := migrator.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("migration: failed to get current version: %w", err)
	}
	if dirty {
		return fmt.Errorf("migration: database is dirty at version %d (manual intervention required)", currentVersion)
	}

	if err := migrator.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("migration_already_up_to_date", slog.Uint64("version", uint64(currentVersion)))
			return nil
		}
		return fmt.Errorf("migration: up failed: %w", err)
	}

	newVersion, _, _ := migrator.Version()
	logger.Info("migration_successful",
		slog.Uint64("from_version", uint64(currentVersion)),
		slog.Uint64("to_version", uint64(newVersion)),
	)
	return nil
}

// MigrateDSN rewrites a postgres:// DSN to the pgx5:// scheme golang-migrate
// expects and names its version table.
func MigrateDSN(dsn string) (string, error) {
	parsed, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("migration: invalid DSN: %w", err)
	}

	switch strings.ToLower(parsed.Scheme) {
	case "postgres", "postgresql", "pgx5":
		parsed.Scheme = "pgx5"
	default:
		return "", fmt.Errorf("migration: unsupported DSN scheme %q", parsed.Scheme)
	}

	query := parsed.Query()
	if !query.Has("x-migrations-table") {
		query.Set("x-migrations-table", versionTable)
	}
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

// migrateLogger adapts golang-migrate's logger interface to slog.
type migrateLogger struct {
	logger *slog.Logger
}

// Printf implements migrate.Logger.
func (l *migrateLogger) Printf(format string, args ...any) {
	l.logger.Debug("migration_progress", slog.String("detail", strings.TrimSpace(fmt.Sprintf(format, args...))))
}

// Verbose implements migrate.Logger.
func (l *migrateLogger) Verbose() bool {
	return l.logger.Enabled(context.Background(), slog.LevelDebug)
}
