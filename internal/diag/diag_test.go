package diag

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/keyxmakerx/chronicle/internal/cache"
	"github.com/keyxmakerx/chronicle/internal/store"
)

// captureStore records every appended diagnostic row so tests can inspect
// what was persisted.
type captureStore struct {
	*store.Mem
	rows []store.DiagnosticRow
}

func (c *captureStore) AppendDiagnostic(ctx context.Context, row store.DiagnosticRow) error {
	c.rows = append(c.rows, row)
	return c.Mem.AppendDiagnostic(ctx, row)
}

func TestWriteRedactsSensitiveMeta(t *testing.T) {
	mem := &captureStore{Mem: store.NewMem()}
	l := New(mem, cache.NewMem(), nil)
	l.Write(context.Background(), LevelInfo, "auth", "login attempt", map[string]any{
		"adminKey": "super-secret", "userId": "u1",
	})
	n, err := mem.CountDiagnostics(context.Background())
	if err != nil || n != 1 {
		t.Fatalf("expected 1 row, got %d err=%v", n, err)
	}
	meta := mem.rows[0].MetaJSON
	if strings.Contains(meta, "super-secret") || !strings.Contains(meta, `"adminKey":"[REDACTED]"`) {
		t.Fatalf("expected adminKey to be redacted in stored meta, got %s", meta)
	}
}

func TestHardCapPrunesOldest(t *testing.T) {
	mem := store.NewMem()
	l := New(mem, cache.NewMem(), nil)
	base := time.Unix(1_700_000_000, 0)
	l.Now = func() time.Time { return base }

	for i := 0; i < HardCap+5; i++ {
		l.Write(context.Background(), LevelInfo, "x", fmt.Sprintf("msg-%d", i), nil)
	}
	n, err := mem.CountDiagnostics(context.Background())
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n > HardCap {
		t.Fatalf("expected count pruned to <= %d, got %d", HardCap, n)
	}
}

func TestWriteDedupesIdenticalBurst(t *testing.T) {
	mem := store.NewMem()
	l := New(mem, cache.NewMem(), nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		l.Write(ctx, LevelError, "handler.create", "store unavailable", nil)
	}
	n, err := mem.CountDiagnostics(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected identical writes within the dedupe window to collapse to 1 row, got %d", n)
	}

	l.Write(ctx, LevelError, "handler.create", "a distinct message", nil)
	n, err = mem.CountDiagnostics(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected a distinct message to bypass dedupe, got %d rows", n)
	}
}

func TestPerDayCapPrunesOnFiftiethWrite(t *testing.T) {
	mem := store.NewMem()
	c := cache.NewMem()
	l := New(mem, c, nil)
	day := time.Unix(1_700_000_000, 0)
	l.Now = func() time.Time { return day }

	for i := 0; i < PerDayCap+60; i++ {
		l.Write(context.Background(), LevelInfo, "x", fmt.Sprintf("msg-%d", i), nil)
	}
	today, err := mem.CountDiagnosticsToday(context.Background(), day)
	if err != nil {
		t.Fatalf("count today: %v", err)
	}
	// The last prune runs on write 850 and trims the day back to PerDayCap;
	// the 10 writes after it are not pruned until the 900th write.
	if today != PerDayCap+10 {
		t.Fatalf("expected today's count pruned to %d on the 850th write plus 10 later rows, got %d", PerDayCap, today)
	}
}
