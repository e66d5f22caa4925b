// Package store is the row-oriented tabular Store abstraction over typed
// sheets (Events, Sponsors, Shortlinks, Analytics, Diagnostics), grounded
// on internal/plugins/audit/repository.go's hand-scanned-SQL pattern:
// parameterized queries, no ORM, one method per access path.
package store

import (
	"context"
	"time"
)

// EventRow is the persisted shape of one Events sheet row. DataJSON holds
// the canonical Event contract (internal/events.Event) marshaled to JSON;
// the sheet itself never interprets it.
type EventRow struct {
	ID         string
	TenantID   string
	TemplateID string
	DataJSON   string
	Slug       string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// SponsorRow is one Sponsors sheet row.
type SponsorRow struct {
	ID       string `json:"id"`
	TenantID string `json:"-"`
	Name     string `json:"name"`
	LogoURL  string `json:"logoUrl"`
	Website  string `json:"website"`
}

// ShortlinkRow is one Shortlinks sheet row.
type ShortlinkRow struct {
	Token     string
	TargetURL string
	EventID   string
	SponsorID string
	Surface   string
	TenantID  string
	CreatedAt time.Time
}

// AnalyticsRow is one append-only Analytics sheet row (10 columns, see
// the Analytics Ingest service for field semantics).
type AnalyticsRow struct {
	ID                   int64
	Timestamp            time.Time
	EventID              string
	Surface              string
	Metric               string
	SponsorID            string
	Value                float64
	Token                string
	UserAgent            string
	SessionID            string
	VisibleSponsorIDsJSON string
}

// DiagnosticRow is one Diagnostic Log row.
type DiagnosticRow struct {
	ID       int64
	Ts       time.Time
	Level    string
	Where    string
	Msg      string
	MetaJSON string
}

// EventFilter narrows ListEvents to a tenant and page window.
type EventFilter struct {
	TenantID string
	Limit    int
	Offset   int
}

// Store is the full row-storage surface every service depends on. A
// single implementation backs all sheets so callers never juggle
// per-table connections.
type Store interface {
	// Events
	InsertEvent(ctx context.Context, row EventRow) error
	GetEvent(ctx context.Context, tenantID, id string) (*EventRow, bool, error)
	GetEventBySlug(ctx context.Context, tenantID, slug string) (*EventRow, bool, error)
	ListEvents(ctx context.Context, f EventFilter) ([]EventRow, int, error)
	UpdateEvent(ctx context.Context, row EventRow) error
	SlugExists(ctx context.Context, tenantID, slug string) (bool, error)

	// Sponsors
	GetSponsor(ctx context.Context, tenantID, id string) (*SponsorRow, bool, error)
	ListSponsors(ctx context.Context, tenantID string, ids []string) ([]SponsorRow, error)
	ListAllSponsors(ctx context.Context, tenantID string) ([]SponsorRow, error)

	// Shortlinks
	InsertShortlink(ctx context.Context, row ShortlinkRow) error
	GetShortlink(ctx context.Context, token string) (*ShortlinkRow, bool, error)
	HasShortlinksForEvent(ctx context.Context, tenantID, eventID string) (bool, error)

	// Analytics
	AppendAnalytics(ctx context.Context, row AnalyticsRow) error
	ListAnalyticsByEvent(ctx context.Context, eventID string) ([]AnalyticsRow, error)
	// ListAnalyticsBySponsor scans every Analytics row tagged with
	// sponsorID, across all events, optionally bounded to [from, to]
	// (zero time.Time disables that bound).
	ListAnalyticsBySponsor(ctx context.Context, sponsorID string, from, to time.Time) ([]AnalyticsRow, error)

	// Diagnostics
	AppendDiagnostic(ctx context.Context, row DiagnosticRow) error
	CountDiagnostics(ctx context.Context) (int, error)
	CountDiagnosticsToday(ctx context.Context, day time.Time) (int, error)
	DeleteOldestDiagnostics(ctx context.Context, n int) error
	DeleteOldestDiagnosticsOnDay(ctx context.Context, day time.Time, n int) error
}
