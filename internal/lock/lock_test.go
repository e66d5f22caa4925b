package lock

import (
	"context"
	"testing"
	"time"
)

func TestAcquireRelease(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()

	release, err := l.Acquire(ctx, "events:root")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	release()

	release2, err := l.Acquire(ctx, "events:root")
	if err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	release2()
}

func TestAcquireTimeout(t *testing.T) {
	l := NewInMemory()
	release, err := l.Acquire(context.Background(), "k")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = l.Acquire(ctx, "k")
	if err != ErrTimeout {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}
