// Package diag implements the Diagnostic Log: an
// append-only log with a hard cap and a per-day cap, pruned every 50th
// write via a distributed counter so multiple writers converge without
// pruning on every single call. Grounded on
// internal/plugins/audit/service.go's fire-and-forget
// validate-then-delegate logging idiom (slog.Error on failure, never
// propagated to the caller). Repeat writes (the same where/msg firing in
// a tight loop, e.g. a handler erroring on every request of a burst) are
// deduped via a golang.org/x/crypto/blake2b digest of the row's
// identity, the teacher's own direct dependency (argon2's package family)
// repurposed here for its fast, non-cryptographic-strength hashing.
package diag

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/keyxmakerx/chronicle/internal/cache"
	"github.com/keyxmakerx/chronicle/internal/security"
	"github.com/keyxmakerx/chronicle/internal/store"
)

const (
	// HardCap is the absolute row ceiling for the Diagnostic Log.
	HardCap = 3000
	// PerDayCap bounds how many rows may exist for a single calendar day.
	PerDayCap = 800
	// pruneCheckEvery triggers the per-day prune scan on every Nth write.
	pruneCheckEvery = 50

	counterKey = "diag:write-counter"
	counterTTL = time.Hour

	// dedupeWindow is how long an identical (level, where, msg) write is
	// suppressed after the first one lands.
	dedupeWindow = 5 * time.Second
)

// dedupeKey returns a cache key built from a blake2b-256 digest of the
// row's identity, short enough to keep the cache entry small while still
// being collision-safe for this purpose.
func dedupeKey(level Level, where, msg string) string {
	sum := blake2b.Sum256([]byte(string(level) + "|" + where + "|" + msg))
	return "diag:dedupe:" + hex.EncodeToString(sum[:16])
}

// Level is the Diagnostic Log's severity.
type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Logger appends diagnostic rows and prunes the log.
// Every method swallows its own failures: a diagnostic logging failure
// must never abort the caller's request.
type Logger struct {
	Store store.Store
	Cache cache.Cache
	Log   *slog.Logger
	Now   func() time.Time
}

// New builds a Logger. fallback receives slog output when the Store
// write itself fails.
func New(s store.Store, c cache.Cache, fallback *slog.Logger) *Logger {
	if fallback == nil {
		fallback = slog.Default()
	}
	return &Logger{Store: s, Cache: c, Log: fallback, Now: time.Now}
}

func (l *Logger) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now()
}

// Write appends one diagnostic row, redacting sensitive meta keys, then
// enforces HardCap and (every pruneCheckEvery writes) PerDayCap. Any
// failure is logged to the fallback console and swallowed.
func (l *Logger) Write(ctx context.Context, level Level, where, msg string, meta map[string]any) {
	defer func() {
		if r := recover(); r != nil {
			l.Log.Error("diagnostic logger panicked", "recover", r)
		}
	}()

	if l.Cache != nil {
		fresh, err := l.Cache.SetNX(ctx, dedupeKey(level, where, msg), "1", dedupeWindow)
		if err != nil {
			l.Log.Error("diagnostic dedupe check failed", "error", err)
		} else if !fresh {
			return
		}
	}

	redacted := security.RedactMeta(meta)
	metaJSON, err := json.Marshal(redacted)
	if err != nil {
		l.Log.Error("diagnostic meta marshal failed", "error", err)
		return
	}

	now := l.now()
	row := store.DiagnosticRow{
		Ts:       now,
		Level:    string(level),
		Where:    where,
		Msg:      msg,
		MetaJSON: string(metaJSON),
	}
	if err := l.Store.AppendDiagnostic(ctx, row); err != nil {
		l.Log.Error("diagnostic append failed", "error", err, "where", where, "msg", msg)
		return
	}

	l.pruneHardCap(ctx)

	n, err := l.Cache.Incr(ctx, counterKey, counterTTL)
	if err != nil {
		l.Log.Error("diagnostic counter increment failed", "error", err)
		return
	}
	if n%pruneCheckEvery == 0 {
		l.prunePerDayCap(ctx, now)
	}
}

func (l *Logger) pruneHardCap(ctx context.Context) {
	total, err := l.Store.CountDiagnostics(ctx)
	if err != nil {
		l.Log.Error("diagnostic count failed", "error", err)
		return
	}
	if total > HardCap {
		if err := l.Store.DeleteOldestDiagnostics(ctx, total-HardCap); err != nil {
			l.Log.Error("diagnostic hard-cap prune failed", "error", err)
		}
	}
}

func (l *Logger) prunePerDayCap(ctx context.Context, day time.Time) {
	today, err := l.Store.CountDiagnosticsToday(ctx, day)
	if err != nil {
		l.Log.Error("diagnostic per-day count failed", "error", err)
		return
	}
	if today > PerDayCap {
		if err := l.Store.DeleteOldestDiagnosticsOnDay(ctx, day, today-PerDayCap); err != nil {
			l.Log.Error("diagnostic per-day prune failed", "error", err)
		}
	}
}
