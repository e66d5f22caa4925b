package report

import (
	"context"
	"testing"
	"time"

	"github.com/keyxmakerx/chronicle/internal/store"
)

func seedAnalytics(t *testing.T, mem *store.Mem, eventID string) {
	t.Helper()
	ctx := context.Background()
	rows := []store.AnalyticsRow{
		{EventID: eventID, Surface: "public", Metric: "impression", SponsorID: "sp1"},
		{EventID: eventID, Surface: "public", Metric: "impression", SponsorID: "sp1"},
		{EventID: eventID, Surface: "public", Metric: "click", SponsorID: "sp1"},
		{EventID: eventID, Surface: "display", Metric: "impression", SponsorID: "sp2"},
	}
	for _, r := range rows {
		if err := mem.AppendAnalytics(ctx, r); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
}

func TestGetReportAggregates(t *testing.T) {
	mem := store.NewMem()
	seedAnalytics(t, mem, "e1")
	svc := New(mem)

	rep, err := svc.GetReport(context.Background(), "e1")
	if err != nil {
		t.Fatalf("get report: %v", err)
	}
	if rep.Totals.Impressions != 3 || rep.Totals.Clicks != 1 {
		t.Fatalf("unexpected totals: %+v", rep.Totals)
	}

	var sp1 *Grouped
	for i := range rep.BySponsor {
		if rep.BySponsor[i].Key == "sp1" {
			sp1 = &rep.BySponsor[i]
		}
	}
	if sp1 == nil {
		t.Fatalf("expected sp1 group")
	}
	if sp1.Impressions != 2 || sp1.Clicks != 1 {
		t.Fatalf("unexpected sp1 group: %+v", sp1)
	}
	if sp1.CTR != 0.5 {
		t.Fatalf("expected CTR 0.5, got %v", sp1.CTR)
	}
}

func TestCTRZeroImpressionsGuard(t *testing.T) {
	mem := store.NewMem()
	svc := New(mem)
	rep, err := svc.GetReport(context.Background(), "nonexistent")
	if err != nil {
		t.Fatalf("get report: %v", err)
	}
	if rep.Totals.Impressions != 0 || len(rep.BySurface) != 0 {
		t.Fatalf("expected empty report, got %+v", rep)
	}
}

func TestBySponsorScansAcrossEvents(t *testing.T) {
	mem := store.NewMem()
	seedAnalytics(t, mem, "e1")
	seedAnalytics(t, mem, "e2")
	svc := New(mem)

	totals, err := svc.BySponsor(context.Background(), "sp1", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("by sponsor: %v", err)
	}
	if totals.Impressions != 4 || totals.Clicks != 2 {
		t.Fatalf("expected totals across both events, got %+v", totals)
	}
}

func TestBySponsorDateBounded(t *testing.T) {
	mem := store.NewMem()
	ctx := context.Background()
	old := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := mem.AppendAnalytics(ctx, store.AnalyticsRow{EventID: "e1", Metric: "impression", SponsorID: "sp1", Timestamp: old}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := mem.AppendAnalytics(ctx, store.AnalyticsRow{EventID: "e1", Metric: "impression", SponsorID: "sp1", Timestamp: recent}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	svc := New(mem)

	totals, err := svc.BySponsor(ctx, "sp1", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), time.Time{})
	if err != nil {
		t.Fatalf("by sponsor: %v", err)
	}
	if totals.Impressions != 1 {
		t.Fatalf("expected the dateFrom bound to exclude the old row, got %+v", totals)
	}
}

func TestSponsorROI(t *testing.T) {
	result := SponsorROI(ROIInput{
		Impressions: 1000, Clicks: 50, SponsorshipCost: 100,
		ConversionRate: 0.1, AvgTransactionValue: 40,
	})
	if result.Financials.TotalCost != 100 {
		t.Fatalf("expected total cost 100, got %v", result.Financials.TotalCost)
	}
	if result.Financials.EstimatedConversions != 5 {
		t.Fatalf("expected 5 estimated conversions, got %v", result.Financials.EstimatedConversions)
	}
	if result.Financials.EstimatedRevenue != 200 {
		t.Fatalf("expected revenue 200, got %v", result.Financials.EstimatedRevenue)
	}
	wantROI := (200.0 - 100.0) / 100.0 * 100.0
	if result.Financials.ROI != wantROI {
		t.Fatalf("expected ROI %v, got %v", wantROI, result.Financials.ROI)
	}
}

func TestSponsorROIZeroCostDefaults(t *testing.T) {
	result := SponsorROI(ROIInput{})
	if result.Financials.ROI != 0 || result.Financials.CPM != 0 {
		t.Fatalf("expected all-zero financials for undefined inputs, got %+v", result.Financials)
	}
}

func TestEngagementScoreBounds(t *testing.T) {
	score := EngagementScore(0, 0, 0)
	if score != 0 {
		t.Fatalf("expected 0 score with no impressions, got %v", score)
	}
	full := EngagementScore(100, 100, 1000)
	if full > 100 {
		t.Fatalf("engagement score must be bounded to 100, got %v", full)
	}
}
