package bundle

import (
	"context"
	"testing"

	"github.com/keyxmakerx/chronicle/internal/cache"
	"github.com/keyxmakerx/chronicle/internal/config"
	"github.com/keyxmakerx/chronicle/internal/events"
	"github.com/keyxmakerx/chronicle/internal/lock"
	"github.com/keyxmakerx/chronicle/internal/qr"
	"github.com/keyxmakerx/chronicle/internal/report"
	"github.com/keyxmakerx/chronicle/internal/store"
)

func newTestBundleService(t *testing.T) (*Service, *events.Event, *store.Mem) {
	t.Helper()
	reg := config.NewRegistry(config.Snapshot{
		Tenants: map[string]config.Tenant{
			"root": {ID: "root", Name: "Root Brand", ScopesAllowed: []string{"events"}},
		},
		Templates: map[string]config.Template{"event": {ID: "event"}},
		DisplayDefaults: config.DisplayDefaults{SponsorSlots: 3, RotationMs: 8000, Emphasis: "scores"},
	})
	s := store.NewMem()
	evSvc := events.New(s, reg, lock.NewInMemory(), cache.NewMem(), qr.Stub{}, "https://chronicle.example")
	repSvc := report.New(s)
	bundleSvc := New(evSvc, repSvc, s, reg)

	ctx := context.Background()
	ev, err := evSvc.Create(ctx, events.CreateInput{
		TenantID: "root", Scope: "events", TemplateID: "event",
		Name: "Test Event", StartDateISO: "2025-06-01", Venue: "Arena",
		CTAs: events.CTAs{Primary: events.CTA{Label: "Register", URL: "https://example.com/reg"}},
	})
	if err != nil {
		t.Fatalf("create event: %v", err)
	}
	return bundleSvc, ev, s
}

func TestPublicBundle(t *testing.T) {
	svc, ev, _ := newTestBundleService(t)
	ctx := context.Background()
	b, etag, notModified, err := svc.Public(ctx, "root", ev.ID, "")
	if err != nil || notModified {
		t.Fatalf("public bundle: b=%v notModified=%v err=%v", b, notModified, err)
	}
	if b.Config.BrandName != "Root Brand" {
		t.Fatalf("expected brand name Root Brand, got %q", b.Config.BrandName)
	}
	if etag == "" {
		t.Fatalf("expected non-empty etag")
	}

	_, _, notModified2, err := svc.Public(ctx, "root", ev.ID, etag)
	if err != nil {
		t.Fatalf("conditional public bundle: %v", err)
	}
	if !notModified2 {
		t.Fatalf("expected notModified on matching etag")
	}
}

func TestDisplayBundleMergesDefaults(t *testing.T) {
	svc, ev, _ := newTestBundleService(t)
	b, _, _, err := svc.Display(context.Background(), "root", ev.ID, "")
	if err != nil {
		t.Fatalf("display bundle: %v", err)
	}
	if b.Rotation.SponsorSlots != 3 || b.Rotation.RotationMs != 8000 {
		t.Fatalf("unexpected rotation: %+v", b.Rotation)
	}
	if b.Layout.Emphasis != "scores" {
		t.Fatalf("unexpected emphasis: %q", b.Layout.Emphasis)
	}
}

func TestPosterBundle(t *testing.T) {
	svc, ev, _ := newTestBundleService(t)
	b, _, _, err := svc.Poster(context.Background(), "root", ev.ID, "")
	if err != nil {
		t.Fatalf("poster bundle: %v", err)
	}
	if b.Print.DateLine != "2025-06-01" || b.Print.VenueLine != "Arena" {
		t.Fatalf("unexpected print formatting: %+v", b.Print)
	}
}

func TestSponsorBundleAggregatesAnalytics(t *testing.T) {
	svc, ev, s := newTestBundleService(t)
	ctx := context.Background()

	s.PutSponsor(store.SponsorRow{ID: "sp1", TenantID: "root", Name: "Acme"})
	if err := s.AppendAnalytics(ctx, store.AnalyticsRow{EventID: ev.ID, Surface: "public", Metric: "impression", SponsorID: "sp1"}); err != nil {
		t.Fatalf("seed analytics: %v", err)
	}
	if err := s.AppendAnalytics(ctx, store.AnalyticsRow{EventID: ev.ID, Surface: "public", Metric: "click", SponsorID: "sp1"}); err != nil {
		t.Fatalf("seed analytics: %v", err)
	}

	updated, err := svc.Events.Update(ctx, events.UpdateInput{
		TenantID: "root", ID: ev.ID, Data: map[string]any{"sponsors": []any{"sp1"}},
	})
	if err != nil {
		t.Fatalf("update sponsors: %v", err)
	}
	_ = updated

	b, _, _, err := svc.Sponsor(ctx, "root", ev.ID, "")
	if err != nil {
		t.Fatalf("sponsor bundle: %v", err)
	}
	if len(b.Sponsors) != 1 {
		t.Fatalf("expected 1 sponsor, got %d", len(b.Sponsors))
	}
	if b.Sponsors[0].Impressions != 1 || b.Sponsors[0].Clicks != 1 {
		t.Fatalf("unexpected sponsor metrics: %+v", b.Sponsors[0])
	}
}

func TestAdminBundleRequiresNoCrash(t *testing.T) {
	svc, ev, s := newTestBundleService(t)
	s.PutSponsor(store.SponsorRow{ID: "sp1", TenantID: "root", Name: "Acme"})
	b, _, _, err := svc.Admin(context.Background(), "root", ev.ID, "")
	if err != nil {
		t.Fatalf("admin bundle: %v", err)
	}
	if b.BrandConfig.Name != "Root Brand" {
		t.Fatalf("unexpected brand config: %+v", b.BrandConfig)
	}
	if len(b.AllSponsors) != 1 {
		t.Fatalf("expected 1 sponsor, got %d", len(b.AllSponsors))
	}
	if b.Diagnostics.HasShortlinks {
		t.Fatalf("expected HasShortlinks false before any shortlink exists")
	}
	if b.Diagnostics.LastPublishedAt != ev.UpdatedAtISO {
		t.Fatalf("expected LastPublishedAt %q, got %q", ev.UpdatedAtISO, b.Diagnostics.LastPublishedAt)
	}
}

func TestAdminBundleReflectsShortlinkExistence(t *testing.T) {
	svc, ev, s := newTestBundleService(t)
	if err := s.InsertShortlink(context.Background(), store.ShortlinkRow{
		Token: "tok1", TargetURL: "https://example.com", EventID: ev.ID, TenantID: "root",
	}); err != nil {
		t.Fatalf("seed shortlink: %v", err)
	}

	b, _, _, err := svc.Admin(context.Background(), "root", ev.ID, "")
	if err != nil {
		t.Fatalf("admin bundle: %v", err)
	}
	if !b.Diagnostics.HasShortlinks {
		t.Fatalf("expected HasShortlinks true once a shortlink exists for the event")
	}
}
