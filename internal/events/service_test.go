package events

import (
	"context"
	"testing"

	"github.com/keyxmakerx/chronicle/internal/apperror"
	"github.com/keyxmakerx/chronicle/internal/cache"
	"github.com/keyxmakerx/chronicle/internal/config"
	"github.com/keyxmakerx/chronicle/internal/lock"
	"github.com/keyxmakerx/chronicle/internal/qr"
	"github.com/keyxmakerx/chronicle/internal/store"
)

func newTestService() *Service {
	reg := config.NewRegistry(config.Snapshot{
		Tenants: map[string]config.Tenant{
			"root": {ID: "root", ScopesAllowed: []string{"events"}},
		},
		Templates: map[string]config.Template{
			"event": {ID: "event"},
		},
	})
	return New(store.NewMem(), reg, lock.NewInMemory(), cache.NewMem(), qr.Stub{}, "https://chronicle.example")
}

func TestCreateAndCollideSlug(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	in := CreateInput{
		TenantID: "root", Scope: "events", TemplateID: "event",
		Name: "Summer Open", StartDateISO: "2025-08-15", Venue: "Park",
		CTAs: CTAs{Primary: CTA{Label: "Register", URL: "https://example.com/reg"}},
	}

	first, err := svc.Create(ctx, in)
	if err != nil {
		t.Fatalf("first create: %v", err)
	}
	if first.Slug != "summer-open" {
		t.Fatalf("expected slug summer-open, got %q", first.Slug)
	}

	second, err := svc.Create(ctx, in)
	if err != nil {
		t.Fatalf("second create: %v", err)
	}
	if second.Slug != "summer-open-2" {
		t.Fatalf("expected slug summer-open-2, got %q", second.Slug)
	}
	if first.ID == second.ID {
		t.Fatalf("expected distinct ids")
	}
}

func TestCreateIdempotencyDuplicate(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	in := CreateInput{
		TenantID: "root", Scope: "events", TemplateID: "event", IdemKey: "k1",
		Name: "Fall Classic", StartDateISO: "2025-09-01", Venue: "Hall",
		CTAs: CTAs{Primary: CTA{Label: "Register", URL: "https://example.com/reg"}},
	}
	if _, err := svc.Create(ctx, in); err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, err := svc.Create(ctx, in)
	if apperror.SafeKind(err) != apperror.BadInput {
		t.Fatalf("expected BAD_INPUT duplicate, got %v", err)
	}
}

func TestCreateValidation(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	_, err := svc.Create(ctx, CreateInput{TenantID: "root", Scope: "events", StartDateISO: "bad-date", Venue: "Hall", Name: "X"})
	if apperror.SafeKind(err) != apperror.BadInput {
		t.Fatalf("expected BAD_INPUT for bad startDateISO, got %v", err)
	}
}

func TestGetNotModified(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	created, err := svc.Create(ctx, CreateInput{
		TenantID: "root", Scope: "events", TemplateID: "event",
		Name: "Winter Cup", StartDateISO: "2025-12-01", Venue: "Arena",
		CTAs: CTAs{Primary: CTA{Label: "Register", URL: "https://example.com/reg"}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	ev, etag, notModified, err := svc.Get(ctx, "root", created.ID, "")
	if err != nil || notModified || ev == nil {
		t.Fatalf("expected full read, got ev=%v notModified=%v err=%v", ev, notModified, err)
	}

	_, _, notModified2, err := svc.Get(ctx, "root", created.ID, etag)
	if err != nil {
		t.Fatalf("conditional get: %v", err)
	}
	if !notModified2 {
		t.Fatalf("expected notModified on matching etag")
	}
}

func TestGetCrossTenantIsNotFound(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	created, err := svc.Create(ctx, CreateInput{
		TenantID: "root", Scope: "events", TemplateID: "event",
		Name: "Spring Fling", StartDateISO: "2025-04-01", Venue: "Gym",
		CTAs: CTAs{Primary: CTA{Label: "Register", URL: "https://example.com/reg"}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	_, _, _, err = svc.Get(ctx, "other-tenant", created.ID, "")
	if apperror.SafeKind(err) != apperror.NotFound {
		t.Fatalf("expected NOT_FOUND across tenants, got %v", err)
	}
}

func TestUpdateNameKeepsIdentity(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	created, err := svc.Create(ctx, CreateInput{
		TenantID: "root", Scope: "events", TemplateID: "event",
		Name: "Original", StartDateISO: "2025-06-01", Venue: "Field",
		CTAs: CTAs{Primary: CTA{Label: "Register", URL: "https://example.com/reg"}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	updated, err := svc.Update(ctx, UpdateInput{
		TenantID: "root", ID: created.ID, Data: map[string]any{"name": "Renamed"},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "Renamed" {
		t.Fatalf("expected name Renamed, got %q", updated.Name)
	}
	if updated.ID != created.ID || updated.Slug != created.Slug {
		t.Fatalf("id/slug must not change across update")
	}
	if updated.CreatedAtISO != created.CreatedAtISO {
		t.Fatalf("createdAtISO must not change across update")
	}
	if updated.UpdatedAtISO <= updated.CreatedAtISO {
		t.Fatalf("updatedAtISO should be newer than createdAtISO")
	}
}

func TestUpdateUnknownFieldRejected(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	created, err := svc.Create(ctx, CreateInput{
		TenantID: "root", Scope: "events", TemplateID: "event",
		Name: "X", StartDateISO: "2025-06-01", Venue: "Field",
		CTAs: CTAs{Primary: CTA{Label: "Register", URL: "https://example.com/reg"}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err = svc.Update(ctx, UpdateInput{
		TenantID: "root", ID: created.ID, Data: map[string]any{"bogusField": "x"},
	})
	if apperror.SafeKind(err) != apperror.BadInput {
		t.Fatalf("expected BAD_INPUT for undeclared field, got %v", err)
	}
}

func TestUpdateDeclaredURLFieldValidated(t *testing.T) {
	reg := config.NewRegistry(config.Snapshot{
		Tenants: map[string]config.Tenant{"root": {ID: "root", ScopesAllowed: []string{"events"}}},
		Templates: map[string]config.Template{
			"event": {ID: "event", Fields: []config.Field{{ID: "streamUrl", Type: "url"}}},
		},
	})
	svc := New(store.NewMem(), reg, lock.NewInMemory(), cache.NewMem(), qr.Stub{}, "https://chronicle.example")
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateInput{
		TenantID: "root", Scope: "events", TemplateID: "event",
		Name: "X", StartDateISO: "2025-06-01", Venue: "Field",
		CTAs: CTAs{Primary: CTA{Label: "Register", URL: "https://example.com/reg"}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err = svc.Update(ctx, UpdateInput{
		TenantID: "root", ID: created.ID, Data: map[string]any{"streamUrl": "not-a-url"},
	})
	if apperror.SafeKind(err) != apperror.BadInput {
		t.Fatalf("expected BAD_INPUT for invalid url, got %v", err)
	}

	updated, err := svc.Update(ctx, UpdateInput{
		TenantID: "root", ID: created.ID, Data: map[string]any{"streamUrl": "https://stream.example.com/x"},
	})
	if err != nil {
		t.Fatalf("valid url update: %v", err)
	}
	_ = updated
}

func TestListPagination(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := svc.Create(ctx, CreateInput{
			TenantID: "root", Scope: "events", TemplateID: "event",
			Name: "Event", StartDateISO: "2025-06-01", Venue: "Field",
			CTAs: CTAs{Primary: CTA{Label: "Register", URL: "https://example.com/reg"}},
		}); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}
	result, err := svc.List(ctx, "root", 2, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(result.Items) != 2 || result.Total != 3 || !result.HasMore {
		t.Fatalf("unexpected pagination: items=%d total=%d hasMore=%v", len(result.Items), result.Total, result.HasMore)
	}
}

func TestHydrateLegacyAliases(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	created, err := svc.Create(ctx, CreateInput{
		TenantID: "root", Scope: "events", TemplateID: "event",
		Name: "X", StartDateISO: "2025-06-01", Venue: "Field",
		CTAs: CTAs{Primary: CTA{Label: "Register", URL: "https://example.com/reg"}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	row, ok, err := svc.Store.GetEvent(ctx, "root", created.ID)
	if err != nil || !ok {
		t.Fatalf("expected stored row: %v", err)
	}
	row.DataJSON = `{"id":"` + created.ID + `","slug":"` + created.Slug + `","name":"X","dateISO":"2025-06-01","venueName":"Legacy Hall","templateId":"event","ctas":{"primary":{"label":"Go","url":"https://x.example"}},"settings":{"show":{}},"createdAtISO":"2025-01-01T00:00:00Z","updatedAtISO":"2025-01-01T00:00:00Z"}`
	if err := svc.Store.UpdateEvent(ctx, *row); err != nil {
		t.Fatalf("seed legacy row: %v", err)
	}

	ev, _, _, err := svc.Get(ctx, "root", created.ID, "")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ev.StartDateISO != "2025-06-01" {
		t.Fatalf("expected startDateISO hydrated from legacy dateISO, got %q", ev.StartDateISO)
	}
	if ev.Venue != "Legacy Hall" {
		t.Fatalf("expected venue hydrated from legacy venueName, got %q", ev.Venue)
	}
}
