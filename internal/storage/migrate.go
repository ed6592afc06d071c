package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	applog "dogedash/internal/log"
)

// archiveMigrations holds the dataset and statistics archive schema.
//
//go:embed migrations/*.sql
var archiveMigrations embed.FS

// RunMigrations brings the archive at dbPath up to the latest schema and
// returns the resulting version. An archive that is already current is left
// untouched. A dirty archive (a migration that failed halfway) is an error.
func RunMigrations(dbPath string) (uint, error) {
	// golang-migrate closes the handle it is given, so it gets its own
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return 0, fmt.Errorf("open archive for migration: %w", err)
	}
	defer db.Close()

	m, err := newArchiveMigrator(db)
	if err != nil {
		return 0, err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("migrate archive: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return 0, fmt.Errorf("read archive schema version: %w", err)
	}
	if dirty {
		return version, fmt.Errorf("archive schema version %d is dirty", version)
	}
	slog.Debug("Archive schema ready",
		applog.FieldComponent, applog.ComponentStorage,
		"schema_version", version,
		"path", dbPath)
	return version, nil
}

func newArchiveMigrator(db *sql.DB) (*migrate.Migrate, error) {
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("archive migration driver: %w", err)
	}
	src, err := iofs.New(archiveMigrations, "migrations")
	if err != nil {
		return nil, fmt.Errorf("archive migration source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("archive migrator: %w", err)
	}
	return m, nil
}
