package shortlink

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/keyxmakerx/chronicle/internal/apperror"
	"github.com/keyxmakerx/chronicle/internal/store"
)

func TestCreateRejectsInvalidURL(t *testing.T) {
	svc := New(store.NewMem(), "https://chronicle.example/r", nil, nil)
	_, err := svc.Create(context.Background(), CreateInput{TenantID: "root", TargetURL: "javascript:alert(1)"})
	if apperror.SafeKind(err) != apperror.BadInput {
		t.Fatalf("expected BAD_INPUT, got %v", err)
	}
}

func TestCreateAndRedirectSameTenant(t *testing.T) {
	s := store.NewMem()
	svc := New(s, "https://chronicle.example/r", func(host string) bool {
		return strings.EqualFold(host, "chronicle.example")
	}, nil)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateInput{TenantID: "root", TargetURL: "https://chronicle.example/e/x/1", EventID: "1", Surface: "poster"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !strings.Contains(created.Shortlink, created.Token) {
		t.Fatalf("shortlink should embed token")
	}

	var mu sync.Mutex
	var recorded []string
	done := make(chan struct{})
	result, err := svc.Redirect(ctx, created.Token, func(eventID, surface, sponsorID, token string) {
		mu.Lock()
		recorded = append(recorded, eventID, surface)
		mu.Unlock()
		close(done)
	})
	if err != nil {
		t.Fatalf("redirect: %v", err)
	}
	if result.Kind != "redirect" {
		t.Fatalf("expected redirect kind for same-tenant host, got %q", result.Kind)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("fire-and-forget analytics record never ran")
	}
	mu.Lock()
	defer mu.Unlock()
	if len(recorded) != 2 || recorded[0] != "1" || recorded[1] != "poster" {
		t.Fatalf("unexpected recorded click: %v", recorded)
	}
}

func TestRedirectExternalHostIsInterstitial(t *testing.T) {
	s := store.NewMem()
	svc := New(s, "https://chronicle.example/r", func(host string) bool {
		return strings.EqualFold(host, "chronicle.example")
	}, nil)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateInput{TenantID: "root", TargetURL: "https://external-sponsor.example/promo"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	result, err := svc.Redirect(ctx, created.Token, nil)
	if err != nil {
		t.Fatalf("redirect: %v", err)
	}
	if result.Kind != "interstitial" {
		t.Fatalf("expected interstitial for external host, got %q", result.Kind)
	}
}

func TestRedirectUnknownTokenNotFound(t *testing.T) {
	svc := New(store.NewMem(), "https://chronicle.example/r", nil, nil)
	_, err := svc.Redirect(context.Background(), "nope", nil)
	if apperror.SafeKind(err) != apperror.NotFound {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}
