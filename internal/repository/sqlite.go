package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// connectionDefaults are applied to every pooled connection unless the DSN
// sets them. Immediate transactions make concurrent writers wait for the
// busy timeout instead of failing on lock upgrade.
var connectionDefaults = [][2]string{
	{"_foreign_keys", "on"},
	{"_busy_timeout", "5000"},
	{"_txlock", "immediate"},
}

// FileDSN returns the DSN of a file-backed database at path.
func FileDSN(path string) string {
	return withConnectionDefaults("file:" + path + "?mode=rwc&_journal_mode=WAL")
}

func withConnectionDefaults(dsn string) string {
	for _, kv := range connectionDefaults {
		if strings.Contains(dsn, kv[0]+"=") {
			continue
		}
		sep := "&"
		if !strings.Contains(dsn, "?") {
			sep = "?"
		}
		dsn += sep + kv[0] + "=" + kv[1]
	}
	return dsn
}

// NewSQLiteStore creates a new SQLite store. Shared-cache DSNs are rejected:
// their table locks fail at once and ignore the busy timeout.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	if strings.Contains(dsn, "cache=shared") {
		return nil, fmt.Errorf("shared-cache mode is not supported: %s", dsn)
	}
	db, err := sql.Open("sqlite3", withConnectionDefaults(dsn))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection to avoid schema/data disappearing across goroutines.
	if strings.HasPrefix(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// NewSQLiteStoreFromDB wraps an already opened database without migrating it.
func NewSQLiteStoreFromDB(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions(updated_at)`,
		`CREATE TABLE IF NOT EXISTS session_values (
			session_id TEXT NOT NULL,
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (session_id, key),
			FOREIGN KEY (session_id) REFERENCES sessions(session_id) ON DELETE CASCADE
		)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// EnsureSession creates the session row if it does not exist and marks it as used.
func (s *SQLiteStore) EnsureSession(ctx context.Context, sessionID string) error {
	return touchSession(ctx, s.db, sessionID)
}

// PurgeIdleSessions deletes sessions not used since idleSince together with their values.
func (s *SQLiteStore) PurgeIdleSessions(ctx context.Context, idleSince time.Time) (int64, error) {
	var purged int64
	cutoff := idleSince.UTC()
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM session_values WHERE session_id IN (SELECT session_id FROM sessions WHERE updated_at < ?)`,
			cutoff); err != nil {
			return fmt.Errorf("failed to purge session values: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE updated_at < ?`, cutoff)
		if err != nil {
			return fmt.Errorf("failed to purge sessions: %w", err)
		}
		purged, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, err
	}
	return purged, nil
}

// Get retrieves the value stored under key for a session.
func (s *SQLiteStore) Get(ctx context.Context, sessionID, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM session_values WHERE session_id = ? AND key = ?`,
		sessionID, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return value, true, nil
}

// Set stores value under key for a session.
func (s *SQLiteStore) Set(ctx context.Context, sessionID, key, value string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := touchSession(ctx, tx, sessionID); err != nil {
			return err
		}
		return upsertValue(ctx, tx, sessionID, key, value)
	})
}

// Remove deletes keys of a session in a single transaction.
func (s *SQLiteStore) Remove(ctx context.Context, sessionID string, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, key := range keys {
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM session_values WHERE session_id = ? AND key = ?`,
				sessionID, key); err != nil {
				return fmt.Errorf("failed to remove %s: %w", key, err)
			}
		}
		return nil
	})
}

// Update performs a transactional read-modify-write of key.
func (s *SQLiteStore) Update(ctx context.Context, sessionID, key string, fn UpdateFunc) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := touchSession(ctx, tx, sessionID); err != nil {
			return err
		}
		var current string
		ok := true
		err := tx.QueryRowContext(ctx,
			`SELECT value FROM session_values WHERE session_id = ? AND key = ?`,
			sessionID, key).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			ok = false
		} else if err != nil {
			return fmt.Errorf("failed to read %s: %w", key, err)
		}

		next, err := fn(current, ok)
		if err != nil {
			return err
		}
		return upsertValue(ctx, tx, sessionID, key, next)
	})
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func touchSession(ctx context.Context, db execer, sessionID string) error {
	now := time.Now().UTC()
	_, err := db.ExecContext(ctx,
		`INSERT INTO sessions (session_id, created_at, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET updated_at = excluded.updated_at`,
		sessionID, now, now)
	if err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}
	return nil
}

func upsertValue(ctx context.Context, db execer, sessionID, key, value string) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO session_values (session_id, key, value, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(session_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		sessionID, key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
