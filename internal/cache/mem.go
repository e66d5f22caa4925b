package cache

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// entry holds a cached value with its absolute expiry.
type entry struct {
	value   string
	expires time.Time
}

// Mem is an in-process Cache implementation used by service unit tests in
// place of Redis, following the teacher's pattern of substituting a fake
// for the external dependency rather than mocking interface calls one by
// one (internal/plugins/entities/service_test.go mocks per-repository;
// here the surface is uniform enough for one generic fake).
type Mem struct {
	mu   sync.Mutex
	data map[string]entry
	now  func() time.Time
}

// NewMem returns an empty in-memory cache using the real wall clock.
func NewMem() *Mem {
	return &Mem{data: make(map[string]entry), now: time.Now}
}

// NewMemWithClock returns an in-memory cache using a caller-supplied clock,
// letting tests fast-forward TTL expiry deterministically.
func NewMemWithClock(now func() time.Time) *Mem {
	return &Mem{data: make(map[string]entry), now: now}
}

func (m *Mem) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.data[key]
	if !ok {
		return "", false, nil
	}
	if m.expired(e) {
		delete(m.data, key)
		return "", false, nil
	}
	return e.value, true, nil
}

func (m *Mem) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = entry{value: value, expires: m.now().Add(ttl)}
	return nil
}

func (m *Mem) SetNX(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.data[key]; ok && !m.expired(e) {
		return false, nil
	}
	m.data[key] = entry{value: value, expires: m.now().Add(ttl)}
	return true, nil
}

func (m *Mem) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *Mem) Incr(_ context.Context, key string, ttl time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.data[key]
	if !ok || m.expired(e) {
		e = entry{value: "0", expires: m.now().Add(ttl)}
	}
	n, _ := strconv.ParseInt(e.value, 10, 64)
	n++
	e.value = strconv.FormatInt(n, 10)
	m.data[key] = e
	return n, nil
}

func (m *Mem) expired(e entry) bool {
	return !e.expires.IsZero() && m.now().After(e.expires)
}
