package handlers

import (
	"strings"
	"sync"
	"time"
)

// failureLimiter counts failed attempts per key inside a fixed window. A key that reaches the
// limit is blocked until its window expires; a success clears it.
type failureLimiter interface {
	Blocked(key string) bool
	Fail(key string)
	Reset(key string)
}

type windowFailureLimiter struct {
	limit  int
	window time.Duration
	clock  func() time.Time
	mu     sync.Mutex
	store  map[string]failureEntry
}

type failureEntry struct {
	failures int
	reset    time.Time
}

func newFailureLimiter(limit int, window time.Duration, clock func() time.Time) failureLimiter {
	if limit <= 0 || window <= 0 {
		return nil
	}
	if clock == nil {
		clock = time.Now
	}
	return &windowFailureLimiter{
		limit:  limit,
		window: window,
		clock:  clock,
		store:  make(map[string]failureEntry),
	}
}

func (l *windowFailureLimiter) Blocked(key string) bool {
	if l == nil {
		return false
	}
	key = limiterKey(key)
	now := l.clock()
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.store[key]
	if !ok {
		return false
	}
	if now.After(entry.reset) {
		delete(l.store, key)
		return false
	}
	return entry.failures >= l.limit
}

func (l *windowFailureLimiter) Fail(key string) {
	if l == nil {
		return
	}
	key = limiterKey(key)
	now := l.clock()
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.store[key]
	if !ok || now.After(entry.reset) {
		l.store[key] = failureEntry{failures: 1, reset: now.Add(l.window)}
		l.pruneExpiredLocked(now)
		return
	}
	entry.failures++
	l.store[key] = entry
}

func (l *windowFailureLimiter) Reset(key string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	delete(l.store, limiterKey(key))
	l.mu.Unlock()
}

func (l *windowFailureLimiter) pruneExpiredLocked(now time.Time) {
	for key, entry := range l.store {
		if now.After(entry.reset) {
			delete(l.store, key)
		}
	}
}

func limiterKey(key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return "anonymous"
	}
	return key
}
