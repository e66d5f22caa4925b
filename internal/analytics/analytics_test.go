package analytics

import (
	"context"
	"strings"
	"testing"

	"github.com/keyxmakerx/chronicle/internal/apperror"
	"github.com/keyxmakerx/chronicle/internal/store"
)

func TestLogEventsEscapesFormulaInjection(t *testing.T) {
	mem := store.NewMem()
	svc := New(mem)
	err := svc.LogEvents(context.Background(), []Item{
		{EventID: "=cmd|'/bin/sh'", Surface: "public", Metric: MetricImpression},
	})
	if err != nil {
		t.Fatalf("log events: %v", err)
	}
	rows, err := mem.ListAnalyticsByEvent(context.Background(), "'=cmd|'/bin/sh'")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected escaped eventId to be the stored key, got %d rows", len(rows))
	}
	if !strings.HasPrefix(rows[0].EventID, "'") {
		t.Fatalf("expected formula-prefixed eventId to be quote-escaped, got %q", rows[0].EventID)
	}
}

func TestLogExternalClickValidatesLinkType(t *testing.T) {
	svc := New(store.NewMem())
	err := svc.LogExternalClick(context.Background(), ExternalClick{EventID: "1", LinkType: "bogus"})
	if apperror.SafeKind(err) != apperror.BadInput {
		t.Fatalf("expected BAD_INPUT for invalid linkType, got %v", err)
	}
}

func TestLogExternalClickCapsSponsorIDs(t *testing.T) {
	mem := store.NewMem()
	svc := New(mem)
	ids := make([]string, 30)
	for i := range ids {
		ids[i] = "s"
	}
	err := svc.LogExternalClick(context.Background(), ExternalClick{EventID: "1", LinkType: "schedule", VisibleSponsorIDs: ids})
	if err != nil {
		t.Fatalf("log external click: %v", err)
	}
	rows, err := mem.ListAnalyticsByEvent(context.Background(), "1")
	if err != nil || len(rows) != 1 {
		t.Fatalf("expected one row, got %d, err=%v", len(rows), err)
	}
	if rows[0].Metric != string(MetricExternalClick) || rows[0].SponsorID != "schedule" {
		t.Fatalf("unexpected row: %+v", rows[0])
	}
	if got := strings.Count(rows[0].VisibleSponsorIDsJSON, `"s"`); got != 20 {
		t.Fatalf("expected visible sponsor ids capped at 20, got %d in %s", got, rows[0].VisibleSponsorIDsJSON)
	}
}
