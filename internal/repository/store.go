// Package repository provides persistence for browser sessions.
package repository

import (
	"context"
	"time"
)

// Store defines the interface for session persistence.
type Store interface {
	// Session operations
	EnsureSession(ctx context.Context, sessionID string) error
	PurgeIdleSessions(ctx context.Context, idleSince time.Time) (int64, error)

	// Key/value operations scoped to one session
	Get(ctx context.Context, sessionID, key string) (string, bool, error)
	Set(ctx context.Context, sessionID, key, value string) error
	Remove(ctx context.Context, sessionID string, keys ...string) error
	Update(ctx context.Context, sessionID, key string, fn UpdateFunc) error

	// Lifecycle
	Close() error
}

// UpdateFunc computes a new value from the current one. ok is false when the
// key is not set.
type UpdateFunc = func(current string, ok bool) (string, error)

// Scoped binds a Store to one session id.
type Scoped struct {
	store     Store
	sessionID string
}

// Scope returns a key/value view of one session.
func Scope(store Store, sessionID string) *Scoped {
	return &Scoped{store: store, sessionID: sessionID}
}

// SessionID returns the id the view is bound to.
func (s *Scoped) SessionID() string { return s.sessionID }

// Get returns the value stored under key.
func (s *Scoped) Get(ctx context.Context, key string) (string, bool, error) {
	return s.store.Get(ctx, s.sessionID, key)
}

// Set stores value under key.
func (s *Scoped) Set(ctx context.Context, key, value string) error {
	return s.store.Set(ctx, s.sessionID, key, value)
}

// Remove deletes all keys in one operation.
func (s *Scoped) Remove(ctx context.Context, keys ...string) error {
	return s.store.Remove(ctx, s.sessionID, keys...)
}

// Update performs a read-modify-write of key.
func (s *Scoped) Update(ctx context.Context, key string, fn UpdateFunc) error {
	return s.store.Update(ctx, s.sessionID, key, fn)
}
