package repository

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newFileStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(FileDSN(filepath.Join(t.TempDir(), "sidekick.db")))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestFileDSN(t *testing.T) {
	dsn := FileDSN("/var/lib/sidekick.db")
	assert.Equal(t, "file:/var/lib/sidekick.db?mode=rwc&_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000&_txlock=immediate", dsn)
	assert.NotContains(t, dsn, "cache=shared")

	// explicit settings win
	assert.Equal(t, ":memory:?_busy_timeout=100&_foreign_keys=on&_txlock=immediate", withConnectionDefaults(":memory:?_busy_timeout=100"))
}

func TestNewSQLiteStoreRejectsSharedCache(t *testing.T) {
	_, err := NewSQLiteStore("file:" + filepath.Join(t.TempDir(), "x.db") + "?cache=shared&mode=rwc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shared-cache")
}

func TestSQLiteFileStoreConcurrentSessions(t *testing.T) {
	ctx := context.Background()
	store := newFileStore(t)

	const sessions, writes = 8, 20
	var wg sync.WaitGroup
	for i := 0; i < sessions; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for j := 0; j < writes; j++ {
				err := store.Update(ctx, id, "counter", func(current string, ok bool) (string, error) {
					n := 0
					if ok {
						n, _ = strconv.Atoi(current)
					}
					return strconv.Itoa(n + 1), nil
				})
				assert.NoError(t, err)
				assert.NoError(t, store.Set(ctx, id, "thread_id", fmt.Sprintf("thread_%d", j)))
			}
		}(fmt.Sprintf("s%d", i))
	}
	wg.Wait()

	for i := 0; i < sessions; i++ {
		got, ok, err := store.Get(ctx, fmt.Sprintf("s%d", i), "counter")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, strconv.Itoa(writes), got)
	}
}

func TestSQLiteFileStorePurgeRemovesValues(t *testing.T) {
	ctx := context.Background()
	store := newFileStore(t)

	// hold one pooled connection so the purge runs on another
	conn, err := store.db.Conn(ctx)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, store.Set(ctx, "old", "thread_id", "thread_1"))
	require.NoError(t, store.Set(ctx, "old", "chat_history", "[]"))

	n, err := store.PurgeIdleSessions(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, ok, err := store.Get(ctx, "old", "thread_id")
	require.NoError(t, err)
	assert.False(t, ok)

	var left int
	require.NoError(t, store.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM session_values`).Scan(&left))
	assert.Zero(t, left)

	var fk int
	require.NoError(t, conn.QueryRowContext(ctx, `PRAGMA foreign_keys`).Scan(&fk))
	assert.Equal(t, 1, fk)
}

func TestSQLiteStorePurgeRollsBackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM session_values").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("DELETE FROM sessions").
		WillReturnError(errors.New("database is locked"))
	mock.ExpectRollback()

	store := NewSQLiteStoreFromDB(db)
	n, err := store.PurgeIdleSessions(context.Background(), time.Now())
	require.Error(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteStoreGetSetRemove(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, ok, err := store.Get(ctx, "s1", "thread_id")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "s1", "thread_id", "thread_1"))
	require.NoError(t, store.Set(ctx, "s1", "assistant_id", "asst_1"))
	require.NoError(t, store.Set(ctx, "s2", "thread_id", "thread_2"))

	got, ok, err := store.Get(ctx, "s1", "thread_id")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "thread_1", got)

	require.NoError(t, store.Set(ctx, "s1", "thread_id", "thread_3"))
	got, _, err = store.Get(ctx, "s1", "thread_id")
	require.NoError(t, err)
	assert.Equal(t, "thread_3", got)

	require.NoError(t, store.Remove(ctx, "s1", "thread_id", "assistant_id", "missing"))
	_, ok, err = store.Get(ctx, "s1", "thread_id")
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = store.Get(ctx, "s1", "assistant_id")
	require.NoError(t, err)
	assert.False(t, ok)

	// other sessions are untouched
	got, ok, err = store.Get(ctx, "s2", "thread_id")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "thread_2", got)
}

func TestSQLiteStoreUpdate(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	err := store.Update(ctx, "s1", "counter", func(current string, ok bool) (string, error) {
		assert.False(t, ok)
		assert.Empty(t, current)
		return "1", nil
	})
	require.NoError(t, err)

	boom := errors.New("boom")
	err = store.Update(ctx, "s1", "counter", func(string, bool) (string, error) {
		return "", boom
	})
	assert.ErrorIs(t, err, boom)

	got, _, err := store.Get(ctx, "s1", "counter")
	require.NoError(t, err)
	assert.Equal(t, "1", got)
}

func TestSQLiteStoreConcurrentUpdates(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.Update(ctx, "s1", "counter", func(current string, ok bool) (string, error) {
				n := 0
				if ok {
					n, _ = strconv.Atoi(current)
				}
				return strconv.Itoa(n + 1), nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, _, err := store.Get(ctx, "s1", "counter")
	require.NoError(t, err)
	assert.Equal(t, "20", got)
}

func TestSQLiteStorePurgeIdleSessions(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Set(ctx, "old", "thread_id", "t1"))
	require.NoError(t, store.EnsureSession(ctx, "fresh"))

	n, err := store.PurgeIdleSessions(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, ok, err := store.Get(ctx, "old", "thread_id")
	require.NoError(t, err)
	assert.False(t, ok, "values cascade with their session")

	n, err = store.PurgeIdleSessions(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestScopedStore(t *testing.T) {
	ctx := context.Background()
	scoped := Scope(newTestStore(t), "s1")
	assert.Equal(t, "s1", scoped.SessionID())

	require.NoError(t, scoped.Set(ctx, "selected_model", "gpt-4o"))
	got, ok, err := scoped.Get(ctx, "selected_model")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "gpt-4o", got)

	require.NoError(t, scoped.Remove(ctx, "selected_model"))
	_, ok, err = scoped.Get(ctx, "selected_model")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLiteStoreRemoveRollsBackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM session_values").
		WithArgs("s1", "chat_history").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM session_values").
		WithArgs("s1", "thread_id").
		WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	store := NewSQLiteStoreFromDB(db)
	err = store.Remove(context.Background(), "s1", "chat_history", "thread_id")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to remove thread_id")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteStoreGetError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT value FROM session_values").
		WithArgs("s1", "chat_history").
		WillReturnError(errors.New("database is locked"))

	store := NewSQLiteStoreFromDB(db)
	_, _, err = store.Get(context.Background(), "s1", "chat_history")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database is locked")
	assert.NoError(t, mock.ExpectationsWereMet())
}
