package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/glebarez/go-sqlite"
)

// SQLite is a response store backed by a SQLite database file. Use
// "file::memory:?cache=shared" as the filename for an in-memory database.
type SQLite struct {
	db     *sql.DB
	maxAge time.Duration
	// SQLite only supports one writer at a time
	writeMutex sync.Mutex
}

// SQLiteOption is the signature for functional options for the SQLite store.
type SQLiteOption func(*SQLite)

// WithMaxAge bounds the lifetime of stored entries: entries older than the
// given age read as misses and are swept from the database on write. Zero
// keeps entries forever.
func WithMaxAge(age time.Duration) SQLiteOption {
	return func(s *SQLite) {
		s.maxAge = age
	}
}

// NewSQLite opens (and if needed initializes) the store in the given
// database file.
func NewSQLite(filename string, opts ...SQLiteOption) (*SQLite, error) {
	db, err := sql.Open("sqlite", filename)
	if err != nil {
		return nil, fmt.Errorf("could not open database %q: %w", filename, err)
	}
	if _, err := db.Exec(
		"CREATE TABLE IF NOT EXISTS responses (key TEXT PRIMARY KEY, stored INTEGER, bytes BLOB)",
	); err != nil {
		return nil, fmt.Errorf("could not initialize database: %w", err)
	}
	if _, err := db.Exec("CREATE INDEX IF NOT EXISTS stored_idx ON responses (stored)"); err != nil {
		return nil, fmt.Errorf("could not initialize database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("could not set journal mode: %w", err)
	}

	s := &SQLite{db: db}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

func (s *SQLite) Retrieve(ctx context.Context, key string) (*Snapshot, bool, error) {
	var stored int64
	var bytes []byte
	err := s.db.QueryRowContext(ctx, "SELECT stored, bytes FROM responses WHERE key = ?", key).Scan(&stored, &bytes)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("could not query key %q: %w", key, err)
	}
	if s.expired(stored) {
		return nil, false, nil
	}
	snap, err := bytesToSnapshot(bytes)
	if err != nil {
		return nil, false, err
	}
	return snap, true, nil
}

func (s *SQLite) Store(ctx context.Context, key string, snap *Snapshot) error {
	b, err := snapshotToBytes(snap)
	if err != nil {
		return err
	}
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	if s.maxAge > 0 {
		cutoff := time.Now().Add(-s.maxAge).UnixNano()
		if _, err := s.db.ExecContext(ctx, "DELETE FROM responses WHERE stored < ?", cutoff); err != nil {
			return fmt.Errorf("could not sweep expired entries: %w", err)
		}
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO responses (key, stored, bytes) VALUES (?, ?, ?)",
		key, time.Now().UnixNano(), b)
	if err != nil {
		return fmt.Errorf("could not store key %q: %w", key, err)
	}
	return nil
}

// expired reports whether an entry stored at the given unix nano time has
// outlived the configured maximum age.
func (s *SQLite) expired(stored int64) bool {
	if s.maxAge == 0 {
		return false
	}
	return time.Now().After(time.Unix(0, stored).Add(s.maxAge))
}

// Close closes the underlying database.
func (s *SQLite) Close() error {
	return s.db.Close()
}
