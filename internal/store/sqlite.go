package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/shuttledesk/internal/logging"
	"github.com/nhle/shuttledesk/internal/model"
)

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db     *sqlx.DB
	path   string
	logger *slog.Logger
}

// Option configures a SQLiteStore.
type Option func(*SQLiteStore)

// WithLogger sets the logger used to report malformed stored data.
func WithLogger(l *slog.Logger) Option {
	return func(s *SQLiteStore) { s.logger = l }
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string, opts ...Option) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	return newStore(db, dbPath, opts...)
}

// NewFromDB wraps an already opened database. Migrations are applied.
func NewFromDB(db *sqlx.DB, opts ...Option) (*SQLiteStore, error) {
	return newStore(db, "", opts...)
}

func newStore(db *sqlx.DB, dbPath string, opts ...Option) (*SQLiteStore, error) {
	// A single connection serializes writers and keeps ":memory:"
	// databases from splitting across pooled connections.
	db.SetMaxOpenConns(1)

	if dbPath != "" {
		// Enable WAL mode for better concurrent read performance.
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enabling WAL mode: %w", err)
		}

		if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting busy timeout: %w", err)
		}
	}

	s := &SQLiteStore{db: db, path: dbPath}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.OrDiscard(s.logger)

	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Path returns the database file path, or "" for an in-memory or
// injected database.
func (s *SQLiteStore) Path() string {
	if s.path == ":memory:" {
		return ""
	}
	return s.path
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	// Check if schema_version table exists.
	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// SchemaVersion returns the highest applied migration.
func (s *SQLiteStore) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	if err := s.db.GetContext(ctx, &v, "SELECT COALESCE(MAX(version), 0) FROM schema_version"); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return v, nil
}

// Get returns the value stored under key, or ErrNotFound.
func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value string
	err := s.db.GetContext(ctx, &value, "SELECT value FROM kv WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("getting %s: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting %s: %w", key, err)
	}
	return []byte(value), nil
}

// Put inserts or replaces the value under key.
func (s *SQLiteStore) Put(ctx context.Context, key string, value []byte) error {
	return s.Commit(ctx, Entry{Key: key, Value: value})
}

// Delete removes key. Deleting a missing key is not an error.
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM kv WHERE key = ?", key); err != nil {
		return fmt.Errorf("deleting %s: %w", key, err)
	}
	return nil
}

// Commit inserts or replaces a batch of entries in one transaction.
func (s *SQLiteStore) Commit(ctx context.Context, entries ...Entry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, `
		INSERT OR REPLACE INTO kv (key, value, updated_at)
		VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing upsert statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, e.Key, string(e.Value), now); err != nil {
			return fmt.Errorf("writing %s: %w", e.Key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing %d entries: %w", len(entries), err)
	}
	return nil
}

// LoadFeed returns the stored feed of id, most recent first. A missing or
// malformed feed loads as empty.
func (s *SQLiteStore) LoadFeed(ctx context.Context, id model.Identity) ([]model.ChangeEvent, error) {
	key := FeedKey(id).String()
	data, err := s.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return []model.ChangeEvent{}, nil
	}
	if err != nil {
		return nil, err
	}

	events, skipped, err := DecodeFeed(data)
	if err != nil {
		s.logger.Warn("discarding malformed feed", "key", key, "err", err)
		return []model.ChangeEvent{}, nil
	}
	if skipped > 0 {
		s.logger.Warn("skipped malformed feed entries", "key", key, "skipped", skipped)
	}
	return events, nil
}

// LoadSnapshot returns the stored baseline of id. An admin with no scoped
// baseline falls back to the legacy global key. A missing or malformed
// baseline loads as empty, which suppresses events on the next poll.
func (s *SQLiteStore) LoadSnapshot(ctx context.Context, id model.Identity) (model.Snapshot, error) {
	key := SnapshotKey(id).String()
	data, err := s.Get(ctx, key)
	if errors.Is(err, ErrNotFound) && id.Role == model.RoleAdmin {
		key = LegacyAdminKey
		data, err = s.Get(ctx, key)
		if err == nil {
			s.logger.Info("importing legacy admin baseline", "identity", id.ID)
		}
	}
	if errors.Is(err, ErrNotFound) {
		return model.Snapshot{}, nil
	}
	if err != nil {
		return nil, err
	}

	snap, dropped, err := DecodeSnapshot(data)
	if err != nil {
		s.logger.Warn("discarding malformed baseline", "key", key, "err", err)
		return model.Snapshot{}, nil
	}
	if dropped > 0 {
		s.logger.Warn("dropped duplicate baseline ids", "key", key, "dropped", dropped)
	}
	return snap, nil
}

// ClaimDispatch records a send unless the same content was sent on channel
// within window.
func (s *SQLiteStore) ClaimDispatch(
	ctx context.Context,
	channel, contentHash, eventID string,
	window time.Duration,
) (bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	var count int
	err = tx.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM dispatch_log
		WHERE channel = ? AND content_hash = ? AND sent_at > ?`,
		channel, contentHash, now.Add(-window).UnixNano(),
	)
	if err != nil {
		return false, fmt.Errorf("querying dispatch log: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO dispatch_log (channel, content_hash, event_id, sent_at)
		VALUES (?, ?, ?, ?)`,
		channel, contentHash, eventID, now.UnixNano(),
	)
	if err != nil {
		return false, fmt.Errorf("recording dispatch: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing dispatch: %w", err)
	}
	return true, nil
}

// PruneDispatches deletes dispatch records sent before the cutoff.
func (s *SQLiteStore) PruneDispatches(ctx context.Context, before time.Time) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM dispatch_log WHERE sent_at < ?", before.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("pruning dispatch log: %w", err)
	}
	return nil
}
