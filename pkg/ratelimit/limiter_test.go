package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

func TestNewLimiter_Disabled(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "zero rate", cfg: Config{RequestsPerSecond: 0, Burst: 5}},
		{name: "negative rate", cfg: Config{RequestsPerSecond: -1, Burst: 5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLimiter(tt.cfg, zerolog.Nop())
			if l != nil {
				t.Fatal("expected nil limiter when rate is disabled")
			}
			if err := l.Wait(context.Background()); err != nil {
				t.Errorf("nil limiter Wait() = %v, want nil", err)
			}
			if l.Limit() != rate.Inf {
				t.Errorf("nil limiter Limit() = %v, want Inf", l.Limit())
			}
		})
	}
}

func TestLimiter_BurstAllowed(t *testing.T) {
	l := NewLimiter(Config{RequestsPerSecond: 1, Burst: 3}, zerolog.Nop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := l.Wait(ctx); err != nil {
			t.Fatalf("Wait() #%d = %v, want nil within burst", i+1, err)
		}
	}
}

func TestLimiter_ThrottledByDeadline(t *testing.T) {
	l := NewLimiter(Config{RequestsPerSecond: 0.1, Burst: 1}, zerolog.Nop())

	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("first Wait() = %v, want nil", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := l.Wait(ctx)
	if !errors.Is(err, ErrThrottled) {
		t.Errorf("Wait() = %v, want ErrThrottled", err)
	}
}

func TestNewLimiter_BurstFloor(t *testing.T) {
	l := NewLimiter(Config{RequestsPerSecond: 5, Burst: 0}, zerolog.Nop())
	if l == nil {
		t.Fatal("expected limiter")
	}
	if got := l.limiter.Burst(); got != 1 {
		t.Errorf("Burst() = %d, want 1", got)
	}
	if got := l.Limit(); got != rate.Limit(5) {
		t.Errorf("Limit() = %v, want 5", got)
	}
}
