package wallet

import (
	"sync"
	"time"
)

const (
	limiterSweepThreshold = 10000
	limiterStaleFactor    = 100 // entries older than factor*minInterval are stale
)

// RateLimiter rejects a user's wager when it follows the previous one too
// quickly. In-memory only: the map is bounded by sweeping stale entries and
// the state does not survive a restart.
type RateLimiter struct {
	mu          sync.Mutex
	minInterval time.Duration
	last        map[int64]time.Time
	maxEntries  int
	now         func() time.Time
}

func NewRateLimiter(minInterval time.Duration) *RateLimiter {
	return &RateLimiter{
		minInterval: minInterval,
		last:        make(map[int64]time.Time),
		maxEntries:  limiterSweepThreshold,
		now:         time.Now,
	}
}

// Allow records the wager attempt and reports whether enough time passed
// since the user's previous one.
func (l *RateLimiter) Allow(userID int64) bool {
	if l.minInterval <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if prev, ok := l.last[userID]; ok && now.Sub(prev) < l.minInterval {
		return false
	}
	l.last[userID] = now

	if len(l.last) > l.maxEntries {
		l.sweep(now)
	}
	return true
}

// sweep drops entries old enough that they can no longer affect a decision.
func (l *RateLimiter) sweep(now time.Time) {
	cutoff := now.Add(-time.Duration(limiterStaleFactor) * l.minInterval)
	for id, ts := range l.last {
		if ts.Before(cutoff) {
			delete(l.last, id)
		}
	}
}
