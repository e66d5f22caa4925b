// Package csrf implements the single-use CSRF token:
// generateCSRFToken mints a UUID v4 held in a per-user cache entry with a
// 1-hour TTL; validateCSRFToken reads-and-removes it atomically under a
// per-user lock with a 5-second timeout. Grounded on
// internal/middleware/csrf.go's constant-time-compare/crypto-rand idiom,
// re-architected from a cookie-based double-submit token to a
// cache-based single-use token.
package csrf

import (
	"context"
	"time"

	"github.com/keyxmakerx/chronicle/internal/apperror"
	"github.com/keyxmakerx/chronicle/internal/cache"
	"github.com/keyxmakerx/chronicle/internal/lock"
)

const (
	// TTL is how long an unconsumed CSRF token remains valid.
	TTL = time.Hour

	// lockTimeout bounds how long Validate waits to acquire the
	// per-user lock before giving up.
	lockTimeout = 5 * time.Second
)

// IDGenerator mints a new token identifier. Satisfied by auth.GenerateUUIDv4.
type IDGenerator func() string

// Manager issues and consumes single-use CSRF tokens.
type Manager struct {
	cache cache.Cache
	lock  lock.Lock
	genID IDGenerator
}

// New builds a Manager backed by the given cache and lock.
func New(c cache.Cache, l lock.Lock, genID IDGenerator) *Manager {
	return &Manager{cache: c, lock: l, genID: genID}
}

func key(userID string) string { return "csrf:" + userID }

// Generate mints a new token for userID and stores it with a 1-hour TTL.
func (m *Manager) Generate(ctx context.Context, userID string) (string, error) {
	token := m.genID()
	if err := m.cache.Set(ctx, key(userID), token, TTL); err != nil {
		return "", apperror.NewInternal(err)
	}
	return token, nil
}

// Validate reads-and-removes the stored token for userID under a
// bounded-wait per-user lock, so concurrent validations can't both
// observe the token as present. Consumption is single-use: a token
// validated twice returns true then false. Lock-acquisition failure
// surfaces as RATE_LIMITED rather than a plain rejection, since it means
// another validation is already in flight for this user.
func (m *Manager) Validate(ctx context.Context, userID, submitted string) (bool, error) {
	lockCtx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()

	release, err := m.lock.Acquire(lockCtx, "csrf:"+userID)
	if err != nil {
		return false, apperror.NewRateLimited("Too many concurrent CSRF validations. Please retry.")
	}
	defer release()

	stored, ok, err := m.cache.Get(ctx, key(userID))
	if err != nil {
		return false, apperror.NewInternal(err)
	}
	if !ok {
		return false, nil
	}

	// Remove immediately regardless of match, enforcing single-use.
	if delErr := m.cache.Delete(ctx, key(userID)); delErr != nil {
		return false, apperror.NewInternal(delErr)
	}

	return stored == submitted && submitted != "", nil
}
