package util

import (
	"context"
	"sync"
	"time"
)

// RateLimiter spaces calls evenly, handing each caller the next free slot.
// A nil *RateLimiter never blocks.
type RateLimiter struct {
	mu       sync.Mutex
	interval time.Duration
	next     time.Time
}

// NewRateLimiter allows perMinute calls per minute. A non-positive perMinute
// returns nil, which does not limit.
func NewRateLimiter(perMinute int) *RateLimiter {
	if perMinute <= 0 {
		return nil
	}
	return &RateLimiter{interval: time.Minute / time.Duration(perMinute)}
}

// Wait blocks until the caller's slot arrives or ctx is done. A caller that
// gives up returns its slot unless a later caller already queued behind it.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if rl == nil {
		return ctx.Err()
	}

	rl.mu.Lock()
	slot := rl.next
	if now := time.Now(); slot.Before(now) {
		slot = now
	}
	rl.next = slot.Add(rl.interval)
	rl.mu.Unlock()

	delay := time.Until(slot)
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		rl.mu.Lock()
		if rl.next.Equal(slot.Add(rl.interval)) {
			rl.next = slot
		}
		rl.mu.Unlock()
		return ctx.Err()
	}
}
