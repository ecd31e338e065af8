// Package state persists viewport states in a local SQLite database.
//
// States are stored as JSON under a caller-chosen key, usually the table
// name or a named layout such as "quotes/by-exchange".
package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // sqlite driver

	"github.com/leapstack-labs/gridview/pkg/core"
)

// ErrNotOpened is returned when the store is used before Open.
var ErrNotOpened = errors.New("database not opened")

// fixed width so that stored timestamps sort as text
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore implements core.StateStore using SQLite.
type SQLiteStore struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// NewSQLiteStore creates a new, unopened store.
func NewSQLiteStore() *SQLiteStore {
	return &SQLiteStore{now: time.Now}
}

// Open opens the database at path, creating parent directories, and runs
// pending migrations. Use ":memory:" for an in-memory database.
func Open(path string) (*SQLiteStore, error) {
	s := NewSQLiteStore()
	if err := s.Open(path); err != nil {
		return nil, err
	}
	if err := s.Migrate(); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Open opens a connection to the SQLite database.
func (s *SQLiteStore) Open(path string) error {
	dsn := ":memory:"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return fmt.Errorf("failed to create state directory: %w", err)
		}
		dsn = "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// one writer; also keeps a :memory: database on a single connection
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	s.db = db
	s.path = path
	return nil
}

// Path returns the path the store was opened with.
func (s *SQLiteStore) Path() string { return s.path }

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// SaveViewportState inserts or replaces the state stored under key.
func (s *SQLiteStore) SaveViewportState(ctx context.Context, key, table string, state *core.PersistedViewportState) error {
	if s.db == nil {
		return ErrNotOpened
	}
	if key == "" {
		return fmt.Errorf("viewport state key is empty")
	}

	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode viewport state: %w", err)
	}
	now := s.now().UTC().Format(timeLayout)

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO viewport_states (id, key, table_name, state, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET
			table_name = excluded.table_name,
			state = excluded.state,
			updated_at = excluded.updated_at`,
		uuid.NewString(), key, table, string(payload), now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to save viewport state %s: %w", key, err)
	}
	return nil
}

// LoadViewportState returns the state stored under key, or nil when none is.
func (s *SQLiteStore) LoadViewportState(ctx context.Context, key string) (*core.PersistedViewportState, error) {
	if s.db == nil {
		return nil, ErrNotOpened
	}

	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT state FROM viewport_states WHERE key = ?`, key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // absence is not an error
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load viewport state %s: %w", key, err)
	}

	var state core.PersistedViewportState
	if err := json.Unmarshal([]byte(payload), &state); err != nil {
		return nil, fmt.Errorf("failed to decode viewport state %s: %w", key, err)
	}
	return &state, nil
}

// ListViewportStates lists stored states, most recently updated first.
func (s *SQLiteStore) ListViewportStates(ctx context.Context) ([]core.StateSummary, error) {
	if s.db == nil {
		return nil, ErrNotOpened
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT key, table_name, updated_at FROM viewport_states ORDER BY updated_at DESC, key`)
	if err != nil {
		return nil, fmt.Errorf("failed to list viewport states: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []core.StateSummary
	for rows.Next() {
		var sum core.StateSummary
		var updated string
		if err := rows.Scan(&sum.Key, &sum.Table, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan viewport state: %w", err)
		}
		if sum.UpdatedAt, err = time.Parse(timeLayout, updated); err != nil {
			return nil, fmt.Errorf("invalid updated_at for %s: %w", sum.Key, err)
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating viewport states: %w", err)
	}
	return out, nil
}

// DeleteViewportState removes the state stored under key. Deleting a
// missing key is not an error.
func (s *SQLiteStore) DeleteViewportState(ctx context.Context, key string) error {
	if s.db == nil {
		return ErrNotOpened
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM viewport_states WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete viewport state %s: %w", key, err)
	}
	return nil
}

var _ core.StateStore = (*SQLiteStore)(nil)
