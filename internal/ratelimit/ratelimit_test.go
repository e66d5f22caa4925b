package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/keyxmakerx/chronicle/internal/apperror"
	"github.com/keyxmakerx/chronicle/internal/cache"
)

func TestAllowCapsAtTen(t *testing.T) {
	fixed := time.Unix(1_700_000_000, 0)
	l := NewWithClock(cache.NewMemWithClock(func() time.Time { return fixed }), func() time.Time { return fixed })
	ctx := context.Background()

	for i := 0; i < MaxPerWindow; i++ {
		if err := l.Allow(ctx, "root", "1.2.3.4"); err != nil {
			t.Fatalf("request %d should be allowed, got %v", i+1, err)
		}
	}
	if err := l.Allow(ctx, "root", "1.2.3.4"); apperror.SafeKind(err) != apperror.RateLimited {
		t.Fatalf("11th request should be rate limited, got %v", err)
	}
}

func TestLockoutAfterFiveFailures(t *testing.T) {
	fixed := time.Unix(1_700_000_000, 0)
	l := NewWithClock(cache.NewMemWithClock(func() time.Time { return fixed }), func() time.Time { return fixed })
	ctx := context.Background()

	for i := 0; i < LockoutThreshold; i++ {
		if err := l.RecordAuthFailure(ctx, "root", "9.9.9.9"); err != nil {
			t.Fatalf("record failure %d: %v", i+1, err)
		}
	}
	if err := l.CheckLockout(ctx, "root", "9.9.9.9"); apperror.SafeKind(err) != apperror.RateLimited {
		t.Fatalf("expected lockout after %d failures, got %v", LockoutThreshold, err)
	}
}

func TestNoLockoutBelowThreshold(t *testing.T) {
	l := New(cache.NewMem())
	ctx := context.Background()
	if err := l.RecordAuthFailure(ctx, "root", "1.1.1.1"); err != nil {
		t.Fatalf("record failure: %v", err)
	}
	if err := l.CheckLockout(ctx, "root", "1.1.1.1"); err != nil {
		t.Fatalf("should not be locked out yet: %v", err)
	}
}
