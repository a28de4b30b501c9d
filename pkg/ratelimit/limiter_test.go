package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNewRateLimiter_Defaults(t *testing.T) {
	tests := []struct {
		name        string
		rate, burst float64
		wantRate    float64
		wantBurst   float64
	}{
		{"explicit", 5, 10, 5, 10},
		{"zero rate", 0, 0, 10, 20},
		{"zero burst", 4, 0, 4, 8},
		{"burst below rate", 10, 3, 10, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rl := NewRateLimiter(tt.rate, tt.burst)
			if rl.Rate() != tt.wantRate {
				t.Errorf("Rate() = %v, want %v", rl.Rate(), tt.wantRate)
			}
			if rl.Burst() != tt.wantBurst {
				t.Errorf("Burst() = %v, want %v", rl.Burst(), tt.wantBurst)
			}
		})
	}
}

func TestRateLimiter_AllowBurst(t *testing.T) {
	now := time.Now()
	rl := NewRateLimiter(1, 3)
	rl.now = func() time.Time { return now }
	rl.lastRefill = now

	for i := 0; i < 3; i++ {
		if !rl.Allow() {
			t.Fatalf("Allow() #%d = false, want true within burst", i+1)
		}
	}
	if rl.Allow() {
		t.Error("Allow() after burst exhausted = true, want false")
	}

	// Через секунду появляется один токен
	now = now.Add(time.Second)
	if !rl.Allow() {
		t.Error("Allow() after refill = false, want true")
	}
}

func TestRateLimiter_WaitCancelled(t *testing.T) {
	rl := NewRateLimiter(0.1, 1) // один токен в 10 секунд
	if err := rl.Wait(context.Background()); err != nil {
		t.Fatalf("first Wait() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := rl.Wait(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() error = %v, want DeadlineExceeded", err)
	}
}

func TestMultiLimiter(t *testing.T) {
	ml := NewMultiLimiter()
	ml.Add("order", 1, 1)

	if !ml.Allow("order") {
		t.Error("Allow(order) first = false, want true")
	}
	if ml.Allow("order") {
		t.Error("Allow(order) second = true, want false")
	}

	// Категория без лимита всегда разрешена
	if !ml.Allow("market") {
		t.Error("Allow(market) = false, want true for unknown category")
	}
	if err := ml.Wait(context.Background(), "market"); err != nil {
		t.Errorf("Wait(market) error = %v", err)
	}
	if ml.Get("market") != nil {
		t.Error("Get(market) should be nil")
	}
}
