package exchange

import (
	"context"
	"testing"
	"time"
)

func TestWeightLimiterAllowsBurst(t *testing.T) {
	limiter := NewWeightLimiter(10, time.Minute)
	ctx := context.Background()

	start := time.Now()
	if err := limiter.Wait(ctx, 4); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := limiter.Wait(ctx, 6); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if time.Since(start) > 10*time.Millisecond {
		t.Fatalf("burst waits should return immediately")
	}
	if got := limiter.Remaining(); got != 0 {
		t.Fatalf("expected empty budget, got %d", got)
	}
}

func TestWeightLimiterRefill(t *testing.T) {
	limiter := NewWeightLimiter(2, 5*time.Millisecond)
	ctx := context.Background()

	if err := limiter.Wait(ctx, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	if err := limiter.Wait(ctx, 2); err != nil {
		t.Fatalf("expected budget after refill, got %v", err)
	}
}

func TestWeightLimiterClampsOversizedWeight(t *testing.T) {
	limiter := NewWeightLimiter(3, time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := limiter.Wait(ctx, 100); err != nil {
		t.Fatalf("oversized weight should be clamped, got %v", err)
	}
}

func TestWeightLimiterHonorsContext(t *testing.T) {
	limiter := NewWeightLimiter(1, time.Second)
	ctx := context.Background()
	_ = limiter.Wait(ctx, 1)

	timeoutCtx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	if err := limiter.Wait(timeoutCtx, 1); err == nil {
		t.Fatal("expected context deadline error")
	}
	if time.Since(start) > 200*time.Millisecond {
		t.Fatalf("wait should stop after context cancellation")
	}
}
