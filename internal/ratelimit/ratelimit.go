// Package ratelimit implements a sliding 60-second window
// keyed by (tenantId, ip), capped at 10 requests, plus a failed-auth
// lockout keyed the same way that trips after 5 failures within 15
// minutes. Grounded on internal/middleware/ratelimit.go's window+cleanup
// shape and internal/plugins/syncapi/middleware.go's separate lockout
// counter, generalized onto the shared cache.Cache interface (instead of
// an in-process map) so every worker converges on one counter. Ahead of
// the distributed counter sits a process-local golang.org/x/time/rate
// token bucket per (tenantID, ip) -- adopted from r3e-network-service_layer
// and jordigilh-kubernaut's go.mod -- that rejects obvious bursts without
// a cache round trip; the cache-backed counter remains the authoritative
// cap across workers.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/keyxmakerx/chronicle/internal/apperror"
	"github.com/keyxmakerx/chronicle/internal/cache"
)

const (
	// WindowSize is the rolling window for the per-minute request cap.
	WindowSize = 60 * time.Second
	// MaxPerWindow is the maximum requests admitted per tenant+IP per window.
	MaxPerWindow = 10

	// LockoutThreshold is the number of auth failures that trips a lockout.
	LockoutThreshold = 5
	// LockoutWindow is how long a lockout, once tripped, lasts.
	LockoutWindow = 15 * time.Minute
)

// Limiter enforces the per-minute request cap and the auth-failure
// lockout, both scoped per (tenantID, ip).
type Limiter struct {
	cache  cache.Cache
	now    func() time.Time
	tokens sync.Map // key -> *rate.Limiter, process-local fast-reject bucket
}

// New builds a Limiter backed by the given cache.
func New(c cache.Cache) *Limiter {
	return &Limiter{cache: c, now: time.Now}
}

// NewWithClock builds a Limiter with a caller-supplied clock, for
// deterministic window-boundary tests.
func NewWithClock(c cache.Cache, now func() time.Time) *Limiter {
	return &Limiter{cache: c, now: now}
}

// tokenBucket returns the process-local rate.Limiter for (tenantID, ip),
// lazily created with a burst equal to MaxPerWindow that refills over
// WindowSize -- the same shape as the cache-backed window, just local.
func (l *Limiter) tokenBucket(tenantID, ip string) *rate.Limiter {
	key := tenantID + ":" + ip
	if v, ok := l.tokens.Load(key); ok {
		return v.(*rate.Limiter)
	}
	lim := rate.NewLimiter(rate.Every(WindowSize/MaxPerWindow), MaxPerWindow)
	actual, _ := l.tokens.LoadOrStore(key, lim)
	return actual.(*rate.Limiter)
}

func windowKey(tenantID, ip string, bucket int64) string {
	return fmt.Sprintf("ratelimit:%s:%s:%d", tenantID, ip, bucket)
}

func lockoutKey(tenantID, ip string) string {
	return fmt.Sprintf("lockout:%s:%s", tenantID, ip)
}

// Allow increments the current minute bucket for (tenantID, ip) and
// returns apperror.NewRateLimited if this request would be the 11th or
// later within the rolling window. A process-local token bucket is
// checked first so an obvious burst never reaches the cache.
func (l *Limiter) Allow(ctx context.Context, tenantID, ip string) error {
	if !l.tokenBucket(tenantID, ip).Allow() {
		return apperror.NewRateLimited("Too many requests. Please slow down.")
	}

	bucket := l.now().Unix() / int64(WindowSize.Seconds())
	count, err := l.cache.Incr(ctx, windowKey(tenantID, ip, bucket), WindowSize)
	if err != nil {
		return apperror.NewInternal(err)
	}
	if count > MaxPerWindow {
		return apperror.NewRateLimited("Too many requests. Please slow down.")
	}
	return nil
}

// CheckLockout returns apperror.NewRateLimited if (tenantID, ip) is
// currently locked out from a prior run of auth failures.
func (l *Limiter) CheckLockout(ctx context.Context, tenantID, ip string) error {
	_, locked, err := l.cache.Get(ctx, lockoutKey(tenantID, ip))
	if err != nil {
		return apperror.NewInternal(err)
	}
	if locked {
		return apperror.NewRateLimited("Too many failed attempts. Try again later.")
	}
	return nil
}

// RecordAuthFailure increments the failure counter for (tenantID, ip).
// Once it reaches LockoutThreshold, a lockout flag is set for
// LockoutWindow; all further requests see CheckLockout fail until the
// window rolls off.
func (l *Limiter) RecordAuthFailure(ctx context.Context, tenantID, ip string) error {
	failKey := "authfail:" + tenantID + ":" + ip
	count, err := l.cache.Incr(ctx, failKey, LockoutWindow)
	if err != nil {
		return apperror.NewInternal(err)
	}
	if count >= LockoutThreshold {
		if err := l.cache.Set(ctx, lockoutKey(tenantID, ip), "1", LockoutWindow); err != nil {
			return apperror.NewInternal(err)
		}
	}
	return nil
}
