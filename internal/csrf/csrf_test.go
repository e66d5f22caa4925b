package csrf

import (
	"context"
	"testing"

	"github.com/keyxmakerx/chronicle/internal/cache"
	"github.com/keyxmakerx/chronicle/internal/lock"
)

func newManager() *Manager {
	n := 0
	return New(cache.NewMem(), lock.NewInMemory(), func() string {
		n++
		if n == 1 {
			return "token-1"
		}
		return "token-2"
	})
}

func TestGenerateValidateSingleUse(t *testing.T) {
	m := newManager()
	ctx := context.Background()

	token, err := m.Generate(ctx, "user-1")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	ok, err := m.Validate(ctx, "user-1", token)
	if err != nil || !ok {
		t.Fatalf("expected first validate to succeed, ok=%v err=%v", ok, err)
	}

	ok, err = m.Validate(ctx, "user-1", token)
	if err != nil || ok {
		t.Fatalf("expected second validate to fail, ok=%v err=%v", ok, err)
	}
}

func TestValidateWrongToken(t *testing.T) {
	m := newManager()
	ctx := context.Background()

	if _, err := m.Generate(ctx, "user-1"); err != nil {
		t.Fatalf("generate: %v", err)
	}
	ok, err := m.Validate(ctx, "user-1", "not-the-token")
	if err != nil || ok {
		t.Fatalf("expected validate to fail for wrong token, ok=%v err=%v", ok, err)
	}
}

func TestValidateNoToken(t *testing.T) {
	m := newManager()
	ok, err := m.Validate(context.Background(), "ghost", "x")
	if err != nil || ok {
		t.Fatalf("expected false for missing token, ok=%v err=%v", ok, err)
	}
}
