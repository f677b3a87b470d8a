package http

import (
	"sync"
	"time"

	"github.com/samber/lo"
)

// RateLimiter allows limit attempts per key within a sliding interval.
type RateLimiter struct {
	mu        sync.Mutex
	history   map[string][]time.Time
	limit     int
	interval  time.Duration
	now       func() time.Time
	lastSweep time.Time
}

func NewRateLimiter(limit int, interval time.Duration) *RateLimiter {
	return &RateLimiter{
		history:  make(map[string][]time.Time),
		limit:    limit,
		interval: interval,
		now:      time.Now,
	}
}

func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	windowStart := now.Add(-rl.interval)
	rl.sweep(now, windowStart)
	fresh := lo.Filter(rl.history[key], func(t time.Time, _ int) bool {
		return t.After(windowStart)
	})
	if len(fresh) >= rl.limit {
		if len(fresh) == 0 {
			delete(rl.history, key)
		} else {
			rl.history[key] = fresh
		}
		return false
	}
	rl.history[key] = append(fresh, now)
	return true
}

// sweep forgets keys with no attempt inside the window. It runs at most once
// per interval.
func (rl *RateLimiter) sweep(now, windowStart time.Time) {
	if now.Sub(rl.lastSweep) < rl.interval {
		return
	}
	rl.lastSweep = now
	for key, times := range rl.history {
		if len(times) == 0 || !times[len(times)-1].After(windowStart) {
			delete(rl.history, key)
		}
	}
}
