package exchange

import (
	"context"
	"sync"
	"time"
)

// WeightLimiter is a token bucket sized in exchange request weight. The whole
// budget is restored once per window, matching the exchange's per-minute
// weight accounting.
type WeightLimiter struct {
	mu       sync.Mutex
	budget   int
	capacity int
	window   time.Duration
	resetAt  time.Time
	now      func() time.Time
}

// NewWeightLimiter allows capacity weight per window.
func NewWeightLimiter(capacity int, window time.Duration) *WeightLimiter {
	if capacity <= 0 {
		capacity = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	l := &WeightLimiter{capacity: capacity, window: window, now: time.Now}
	l.budget = capacity
	l.resetAt = l.now().Add(window)
	return l
}

// Wait blocks until weight can be spent or ctx is done. Weights above the
// capacity are clamped so a single call can never deadlock.
func (l *WeightLimiter) Wait(ctx context.Context, weight int) error {
	if weight <= 0 {
		weight = 1
	}
	if weight > l.capacity {
		weight = l.capacity
	}
	for {
		l.mu.Lock()
		now := l.now()
		if !now.Before(l.resetAt) {
			l.budget = l.capacity
			l.resetAt = now.Add(l.window)
		}
		if l.budget >= weight {
			l.budget -= weight
			l.mu.Unlock()
			return nil
		}
		delay := l.resetAt.Sub(now)
		l.mu.Unlock()

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Remaining reports the unspent weight in the current window.
func (l *WeightLimiter) Remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.now().Before(l.resetAt) {
		return l.capacity
	}
	return l.budget
}
