package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore holds sessions for many browsers in one database. Each browser
// gets its own namespace; Scope returns the Store for one of them.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath.
// Use ":memory:" for an in-memory database (useful in tests).
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}

	// A :memory: database exists per connection; pin the pool to one so
	// every query sees the same tables.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma busy_timeout: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		logger: logger.With("component", "session"),
		now:    time.Now,
	}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate creates all required tables and indexes.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	s.logger.Debug("sql", "op", "migrate")
	return migrate(ctx, s.db)
}

// Scope returns the Store for one namespace.
func (s *SQLiteStore) Scope(namespace string) Store {
	return &scopedStore{parent: s, namespace: namespace}
}

// Exists reports whether namespace holds any keys.
func (s *SQLiteStore) Exists(ctx context.Context, namespace string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM session_values WHERE namespace = ?`, namespace).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Touch marks namespace as seen now. A namespace in use is never purged,
// whether its requests read or write it.
func (s *SQLiteStore) Touch(ctx context.Context, namespace string) error {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE session_values SET updated_at = ? WHERE namespace = ?`,
		s.now().Unix(), namespace); err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

// Purge removes namespaces neither written nor touched for longer than idle.
// It returns the number of rows removed.
func (s *SQLiteStore) Purge(ctx context.Context, idle time.Duration) (int64, error) {
	cutoff := s.now().Add(-idle).Unix()
	s.logger.Debug("sql", "op", "purge", "table", "session_values", "cutoff", cutoff)

	result, err := s.db.ExecContext(ctx,
		`DELETE FROM session_values WHERE namespace IN (
			SELECT namespace FROM session_values GROUP BY namespace HAVING MAX(updated_at) < ?
		)`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

type scopedStore struct {
	parent    *SQLiteStore
	namespace string
}

func (st *scopedStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := st.parent.db.QueryRowContext(ctx,
		`SELECT value FROM session_values WHERE namespace = ? AND key = ?`,
		st.namespace, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, true, nil
}

func (st *scopedStore) Set(ctx context.Context, key, value string) error {
	st.parent.logger.Debug("sql", "op", "upsert", "table", "session_values", "key", key)

	now := st.parent.now().Unix()
	_, err := st.parent.db.ExecContext(ctx,
		`INSERT INTO session_values (namespace, key, value, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (namespace, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		st.namespace, key, value, now,
	)
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (st *scopedStore) Clear(ctx context.Context) error {
	st.parent.logger.Debug("sql", "op", "delete", "table", "session_values")

	if _, err := st.parent.db.ExecContext(ctx,
		`DELETE FROM session_values WHERE namespace = ?`, st.namespace); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}
