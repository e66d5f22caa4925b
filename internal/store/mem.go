package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Mem is an in-process Store used by unit tests and by the MemStore seed
// scenarios, standing in for store.SQL the same way internal/plugins
// tests stand in fakes for their repositories -- here generalized to one
// fake covering every sheet.
type Mem struct {
	mu          sync.Mutex
	events      map[string]EventRow // key: tenantID + "/" + id
	sponsors    map[string]SponsorRow
	shortlinks  map[string]ShortlinkRow
	analytics   []AnalyticsRow
	diagnostics []DiagnosticRow
	nextAnalID  int64
	nextDiagID  int64
}

// NewMem returns an empty in-memory Store.
func NewMem() *Mem {
	return &Mem{
		events:     make(map[string]EventRow),
		sponsors:   make(map[string]SponsorRow),
		shortlinks: make(map[string]ShortlinkRow),
	}
}

func eventKey(tenantID, id string) string { return tenantID + "/" + id }

func (m *Mem) InsertEvent(_ context.Context, row EventRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[eventKey(row.TenantID, row.ID)] = row
	return nil
}

func (m *Mem) GetEvent(_ context.Context, tenantID, id string) (*EventRow, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.events[eventKey(tenantID, id)]
	if !ok {
		return nil, false, nil
	}
	return &row, true, nil
}

func (m *Mem) GetEventBySlug(_ context.Context, tenantID, slug string) (*EventRow, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.events {
		if row.TenantID == tenantID && row.Slug == slug {
			r := row
			return &r, true, nil
		}
	}
	return nil, false, nil
}

func (m *Mem) ListEvents(_ context.Context, f EventFilter) ([]EventRow, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []EventRow
	for _, row := range m.events {
		if row.TenantID == f.TenantID {
			all = append(all, row)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })
	total := len(all)
	start := f.Offset
	if start > total {
		start = total
	}
	end := start + f.Limit
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}

func (m *Mem) UpdateEvent(_ context.Context, row EventRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[eventKey(row.TenantID, row.ID)] = row
	return nil
}

func (m *Mem) SlugExists(_ context.Context, tenantID, slug string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.events {
		if row.TenantID == tenantID && row.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}

func (m *Mem) GetSponsor(_ context.Context, tenantID, id string) (*SponsorRow, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.sponsors[eventKey(tenantID, id)]
	if !ok {
		return nil, false, nil
	}
	return &row, true, nil
}

func (m *Mem) ListSponsors(_ context.Context, tenantID string, ids []string) ([]SponsorRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []SponsorRow
	for _, id := range ids {
		if row, ok := m.sponsors[eventKey(tenantID, id)]; ok {
			out = append(out, row)
		}
	}
	return out, nil
}

func (m *Mem) ListAllSponsors(_ context.Context, tenantID string) ([]SponsorRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []SponsorRow
	for _, row := range m.sponsors {
		if row.TenantID == tenantID {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// PutSponsor is a test helper; there is no sponsor-write action in the
// core, sponsors are seeded by the Config Registry.
func (m *Mem) PutSponsor(row SponsorRow) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sponsors[eventKey(row.TenantID, row.ID)] = row
}

func (m *Mem) InsertShortlink(_ context.Context, row ShortlinkRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shortlinks[row.Token] = row
	return nil
}

func (m *Mem) GetShortlink(_ context.Context, token string) (*ShortlinkRow, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.shortlinks[token]
	if !ok {
		return nil, false, nil
	}
	return &row, true, nil
}

func (m *Mem) HasShortlinksForEvent(_ context.Context, tenantID, eventID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.shortlinks {
		if row.TenantID == tenantID && row.EventID == eventID {
			return true, nil
		}
	}
	return false, nil
}

func (m *Mem) AppendAnalytics(_ context.Context, row AnalyticsRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextAnalID++
	row.ID = m.nextAnalID
	m.analytics = append(m.analytics, row)
	return nil
}

func (m *Mem) ListAnalyticsByEvent(_ context.Context, eventID string) ([]AnalyticsRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []AnalyticsRow
	for _, row := range m.analytics {
		if row.EventID == eventID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (m *Mem) ListAnalyticsBySponsor(_ context.Context, sponsorID string, from, to time.Time) ([]AnalyticsRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []AnalyticsRow
	for _, row := range m.analytics {
		if row.SponsorID != sponsorID {
			continue
		}
		if !from.IsZero() && row.Timestamp.Before(from) {
			continue
		}
		if !to.IsZero() && row.Timestamp.After(to) {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

func (m *Mem) AppendDiagnostic(_ context.Context, row DiagnosticRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextDiagID++
	row.ID = m.nextDiagID
	m.diagnostics = append(m.diagnostics, row)
	return nil
}

func (m *Mem) CountDiagnostics(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.diagnostics), nil
}

func (m *Mem) CountDiagnosticsToday(_ context.Context, day time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, row := range m.diagnostics {
		if sameDay(row.Ts, day) {
			n++
		}
	}
	return n, nil
}

func (m *Mem) DeleteOldestDiagnostics(_ context.Context, n int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sort.Slice(m.diagnostics, func(i, j int) bool { return m.diagnostics[i].Ts.Before(m.diagnostics[j].Ts) })
	if n > len(m.diagnostics) {
		n = len(m.diagnostics)
	}
	m.diagnostics = m.diagnostics[n:]
	return nil
}

func (m *Mem) DeleteOldestDiagnosticsOnDay(_ context.Context, day time.Time, n int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var sameDayIdx []int
	for i, row := range m.diagnostics {
		if sameDay(row.Ts, day) {
			sameDayIdx = append(sameDayIdx, i)
		}
	}
	sort.Slice(sameDayIdx, func(i, j int) bool {
		return m.diagnostics[sameDayIdx[i]].Ts.Before(m.diagnostics[sameDayIdx[j]].Ts)
	})
	if n > len(sameDayIdx) {
		n = len(sameDayIdx)
	}
	toDelete := make(map[int]bool, n)
	for _, idx := range sameDayIdx[:n] {
		toDelete[idx] = true
	}
	var kept []DiagnosticRow
	for i, row := range m.diagnostics {
		if !toDelete[i] {
			kept = append(kept, row)
		}
	}
	m.diagnostics = kept
	return nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
