package wallet

import (
	"testing"
	"time"
)

func TestRateLimiterBlocksRapidWagers(t *testing.T) {
	clock := time.Unix(1000, 0)
	l := NewRateLimiter(500 * time.Millisecond)
	l.now = func() time.Time { return clock }

	if !l.Allow(1) {
		t.Fatal("first wager should pass")
	}
	clock = clock.Add(100 * time.Millisecond)
	if l.Allow(1) {
		t.Fatal("wager 100ms after the previous one should be rejected")
	}
	clock = clock.Add(500 * time.Millisecond)
	if !l.Allow(1) {
		t.Fatal("wager after the interval should pass")
	}
}

func TestRateLimiterIsPerUser(t *testing.T) {
	clock := time.Unix(1000, 0)
	l := NewRateLimiter(500 * time.Millisecond)
	l.now = func() time.Time { return clock }

	if !l.Allow(1) {
		t.Fatal("user 1 first wager should pass")
	}
	if !l.Allow(2) {
		t.Fatal("user 2 must not be throttled by user 1")
	}
}

func TestRateLimiterZeroIntervalDisables(t *testing.T) {
	l := NewRateLimiter(0)
	for i := 0; i < 10; i++ {
		if !l.Allow(1) {
			t.Fatal("a zero interval should never throttle")
		}
	}
}

func TestRateLimiterSweepsStaleEntries(t *testing.T) {
	clock := time.Unix(1000, 0)
	l := NewRateLimiter(time.Millisecond)
	l.maxEntries = 10
	l.now = func() time.Time { return clock }

	for id := int64(0); id < 11; id++ {
		l.Allow(id)
	}

	// far enough in the future that every entry is stale; the next Allow
	// crosses the threshold and sweeps
	clock = clock.Add(time.Hour)
	l.Allow(99)

	l.mu.Lock()
	size := len(l.last)
	l.mu.Unlock()
	if size > 2 {
		t.Fatalf("stale entries should have been swept, map still has %d", size)
	}
}
