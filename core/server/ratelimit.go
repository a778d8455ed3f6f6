package server

import (
	"sync"
	"time"
)

// rateLimiter enforces a minimum interval between events from the same
// user. Limited events are dropped with an empty success response so
// the platform does not retry them.
type rateLimiter struct {
	interval time.Duration
	mu       sync.Mutex
	lastSeen map[string]time.Time
}

func newRateLimiter(interval time.Duration) *rateLimiter {
	if interval <= 0 {
		return nil
	}
	return &rateLimiter{
		interval: interval,
		lastSeen: make(map[string]time.Time),
	}
}

// Allow reports whether an event from the user may proceed. A nil
// limiter allows everything.
func (l *rateLimiter) Allow(userID string) bool {
	if l == nil || userID == "" {
		return true
	}
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	// GC entries that can no longer limit anything.
	if len(l.lastSeen) > 1024 {
		for id, ts := range l.lastSeen {
			if now.Sub(ts) > l.interval {
				delete(l.lastSeen, id)
			}
		}
	}

	if last, ok := l.lastSeen[userID]; ok && now.Sub(last) < l.interval {
		return false
	}
	l.lastSeen[userID] = now
	return true
}
