// Package sqlite implements store.Store on SQLite via database/sql and
// the modernc.org/sqlite driver. Suited to single-process deployments and
// local development; the conditional-write semantics match the other
// backends exactly, so tests written against it transfer.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/novaops/steptrack/store"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// Store is a SQLite implementation of store.Store over an open *sql.DB
// handle. Close closes the handle.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// Option configures the Store.
type Option func(*Store)

// WithLogger sets the logger for the store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithClock sets the time source used for TTL expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a SQLite store over an open database handle.
func New(db *sql.DB, opts ...Option) *Store {
	s := &Store{db: db, logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open opens (or creates) a SQLite database at path and returns a Store
// owning the handle.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	return New(db, opts...), nil
}

// Migrate creates the items table.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS steptrack_items (
		    partition_key TEXT NOT NULL,
		    sort_key      TEXT NOT NULL,
		    attrs         TEXT NOT NULL DEFAULT '{}',
		    PRIMARY KEY (partition_key, sort_key)
		)`)
	if err != nil {
		return fmt.Errorf("sqlite: migrate: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return wrapErr(err)
	}
	return nil
}

// Close closes the database handle.
func (s *Store) Close() error { return s.db.Close() }

// Insert writes a new item; an existing live row rejects the write. Rows
// whose expires_at epoch lies in the past count as absent, mirroring
// store-side TTL sweeping.
func (s *Store) Insert(ctx context.Context, key store.Key, attrs store.Attributes) error {
	doc, err := json.Marshal(attrs)
	if err != nil {
		return fmt.Errorf("sqlite: marshal item %s: %w", key, err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO steptrack_items (partition_key, sort_key, attrs)
		VALUES (?, ?, ?)
		ON CONFLICT (partition_key, sort_key) DO UPDATE
		SET attrs = excluded.attrs
		WHERE json_extract(steptrack_items.attrs, '$.expires_at') IS NOT NULL
		  AND json_extract(steptrack_items.attrs, '$.expires_at') < ?`,
		key.Partition, key.Sort, string(doc), s.now().Unix())
	if err != nil {
		return wrapErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrapErr(err)
	}
	if n == 0 {
		return fmt.Errorf("sqlite: %w", store.ErrConditionFailed)
	}
	return nil
}

// Update merges set into the JSON document under the guard.
func (s *Store) Update(ctx context.Context, key store.Key, set store.Attributes, guard store.Guard) error {
	doc, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("sqlite: marshal update %s: %w", key, err)
	}

	var res sql.Result
	switch guard.Kind {
	case store.GuardFieldAbsent:
		res, err = s.db.ExecContext(ctx, `
			UPDATE steptrack_items SET attrs = json_patch(attrs, ?)
			WHERE partition_key = ? AND sort_key = ?
			  AND json_extract(attrs, ?) IS NULL`,
			string(doc), key.Partition, key.Sort, "$."+guard.Field)
	default:
		res, err = s.db.ExecContext(ctx, `
			UPDATE steptrack_items SET attrs = json_patch(attrs, ?)
			WHERE partition_key = ? AND sort_key = ?`,
			string(doc), key.Partition, key.Sort)
	}
	if err != nil {
		return wrapErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrapErr(err)
	}
	if n == 0 {
		return fmt.Errorf("sqlite: %w", store.ErrConditionFailed)
	}
	return nil
}

// Delete removes the item. Absent keys are not an error.
func (s *Store) Delete(ctx context.Context, key store.Key) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM steptrack_items
		WHERE partition_key = ? AND sort_key = ?`,
		key.Partition, key.Sort)
	if err != nil {
		return wrapErr(err)
	}
	return nil
}

// wrapErr normalizes driver failures into *store.Error.
func wrapErr(err error) error {
	return &store.Error{Err: fmt.Errorf("sqlite: %w", err)}
}
