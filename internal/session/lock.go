package session

import (
	"errors"
	"sync"
)

// ErrRunInFlight is returned when a session already has a run in progress.
var ErrRunInFlight = errors.New("a response is still being generated for this conversation")

// Locker allows at most one run per session at a time.
type Locker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewLocker creates an empty Locker.
func NewLocker() *Locker {
	return &Locker{held: make(map[string]struct{})}
}

// TryLock takes the run lock for sessionID without waiting. The returned
// function releases it and may be called more than once.
func (l *Locker) TryLock(sessionID string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.held[sessionID]; busy {
		return nil, ErrRunInFlight
	}
	l.held[sessionID] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, sessionID)
			l.mu.Unlock()
		})
	}, nil
}

// Busy reports whether sessionID currently holds the lock.
func (l *Locker) Busy(sessionID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, busy := l.held[sessionID]
	return busy
}
