package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestAllowBurst(t *testing.T) {
	limiter := NewRateLimiter(1, 3)

	for i := 0; i < 3; i++ {
		if !limiter.Allow() {
			t.Fatalf("Allow() call %d = false, want true (burst capacity)", i+1)
		}
	}
	if limiter.Allow() {
		t.Error("Allow() after burst = true, want false")
	}
}

func TestWaitBlocksUntilRefill(t *testing.T) {
	limiter := NewRateLimiter(50, 1)

	if err := limiter.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	// Ведро пустое, следующий токен приходит через ~20ms
	start := time.Now()
	if err := limiter.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed < 10*time.Millisecond {
		t.Errorf("Wait() returned after %v, expected to block for refill", elapsed)
	}
}

func TestWaitCancelledContext(t *testing.T) {
	limiter := NewRateLimiter(0.1, 1)
	limiter.Allow() // опустошаем ведро

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := limiter.Wait(ctx); err != context.DeadlineExceeded {
		t.Errorf("Wait() error = %v, want context.DeadlineExceeded", err)
	}
}

func TestDefaultsForInvalidArgs(t *testing.T) {
	limiter := NewRateLimiter(-1, -1)
	if limiter.rate <= 0 || limiter.burst < limiter.rate {
		t.Errorf("rate = %v, burst = %v, want positive defaults", limiter.rate, limiter.burst)
	}
	if got := limiter.Tokens(); got <= 0 {
		t.Errorf("Tokens() = %v, want full bucket", got)
	}
}
