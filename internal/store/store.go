// Package store is the keyed local cache. Each collection keeps its declared
// index fields as plaintext SQLite columns and seals every other record field
// into a single encrypted payload blob, so the cache can be queried by index
// while remaining opaque at rest.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/exp/slog"

	"github.com/ZalaPanda/redmine-time-spender-sub000/internal/cipher"
	"github.com/ZalaPanda/redmine-time-spender-sub000/internal/store/migrations"
)

// ErrNotFound is returned by Get and Patch for a missing key.
var ErrNotFound = errors.New("store: record not found")

type Store struct {
	db     *sql.DB
	ciph   cipher.Cipher
	log    *slog.Logger
	closed bool
}

// Open opens (or creates) the cache database at path and brings it to the
// current schema version. The cipher seals record payloads; pass
// cipher.Plain{} for a non-encrypting store. Open fails on an unreachable
// database or a schema version mismatch.
func Open(path string, ciph cipher.Cipher, log *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}

	if err := migrations.Up(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}

	return &Store{db: db, ciph: ciph, log: log.With("component", "store")}, nil
}

func (s *Store) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// Wipe drops every record from every collection and the meta table. Used for
// the full reset flow before re-provisioning a key.
func (s *Store) Wipe(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin wipe: %w", err)
	}
	defer tx.Rollback()

	for _, sch := range []Schema{Projects, Issues, Activities, Priorities, Statuses, Entries, Tasks} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+sch.Name); err != nil {
			return fmt.Errorf("store: wipe %s: %w", sch.Name, err)
		}
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM meta"); err != nil {
		return fmt.Errorf("store: wipe meta: %w", err)
	}
	return tx.Commit()
}

// GetMeta reads a value from the meta table; ok is false when absent.
func (s *Store) GetMeta(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx, "SELECT v FROM meta WHERE k = ?", key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("store: get meta[%s]: %w", key, err)
	}
	return v, true, nil
}

// SetMeta upserts a value in the meta table.
func (s *Store) SetMeta(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO meta (k, v) VALUES (?, ?)
		ON CONFLICT(k) DO UPDATE SET v = excluded.v
	`, key, value)
	if err != nil {
		return fmt.Errorf("store: set meta[%s]: %w", key, err)
	}
	return nil
}
