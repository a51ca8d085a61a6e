// Package migrations owns the cache database schema. The schema version is a
// single incrementing integer; opening a database that is ahead of the binary
// or in a dirty state must fail loudly instead of being retried.
package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed files/*.sql
var migrationFiles embed.FS

// ErrSchemaVersion marks an unusable schema state (dirty or newer than this
// binary understands).
var ErrSchemaVersion = errors.New("cache schema version mismatch")

// Up brings db to the latest schema version.
func Up(db *sql.DB) error {
	m, err := newMigrate(db)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	// Closing m would close the shared db handle, so we do not.

	if version, dirty, err := m.Version(); err == nil && dirty {
		return fmt.Errorf("%w: dirty at version %d", ErrSchemaVersion, version)
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return nil
		}
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func newMigrate(db *sql.DB) (*migrate.Migrate, error) {
	sourceDriver, err := iofs.New(migrationFiles, "files")
	if err != nil {
		return nil, fmt.Errorf("read migration files: %w", err)
	}
	dbDriver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return nil, fmt.Errorf("create sqlite migrate driver: %w", err)
	}
	return migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", dbDriver)
}
