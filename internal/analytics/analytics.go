// Package analytics implements the Analytics Ingest: an
// unauthenticated, origin-checked, append-only write path. Grounded on
// internal/plugins/audit/service.go's validate-then-delegate shape, with
// every string field routed through the Security Kit's spreadsheet
// escaping since these rows are ultimately exported to a spreadsheet
// store.
package analytics

import (
	"context"
	"encoding/json"
	"time"

	"github.com/keyxmakerx/chronicle/internal/apperror"
	"github.com/keyxmakerx/chronicle/internal/security"
	"github.com/keyxmakerx/chronicle/internal/store"
)

// Metric is one of the closed set of analytics metrics.
type Metric string

const (
	MetricImpression   Metric = "impression"
	MetricClick        Metric = "click"
	MetricDwellSec     Metric = "dwellSec"
	MetricView         Metric = "view"
	MetricExternalClick Metric = "external_click"
)

const maxUserAgentLength = 200
const maxVisibleSponsorIDs = 20

var validLinkTypes = map[string]bool{
	"schedule": true, "standings": true, "bracket": true,
	"stats": true, "scoreboard": true, "stream": true,
}

// Item is one submitted analytics event.
type Item struct {
	EventID           string
	Surface           string
	Metric            Metric
	SponsorID         string
	Value             float64
	Token             string
	UserAgent         string
	SessionID         string
	VisibleSponsorIDs []string
}

// ExternalClick is the logExternalClick shorthand request shape.
type ExternalClick struct {
	EventID           string
	LinkType          string
	SessionID         string
	VisibleSponsorIDs []string
	Surface           string
}

// Service appends analytics rows to the Store.
type Service struct {
	Store store.Store
	Now   func() time.Time
}

// New builds a Service.
func New(s store.Store) *Service {
	return &Service{Store: s, Now: time.Now}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// LogEvents appends one row per submitted item, spreadsheet-escaping
// every string field.
func (s *Service) LogEvents(ctx context.Context, items []Item) error {
	for _, item := range items {
		if err := s.appendRow(ctx, item); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) appendRow(ctx context.Context, item Item) error {
	ua := item.UserAgent
	if len(ua) > maxUserAgentLength {
		ua = ua[:maxUserAgentLength]
	}

	visibleJSON, err := json.Marshal(item.VisibleSponsorIDs)
	if err != nil {
		return apperror.NewInternal(err)
	}

	row := store.AnalyticsRow{
		Timestamp:            s.now(),
		EventID:              security.EscapeSpreadsheetValue(item.EventID),
		Surface:              security.EscapeSpreadsheetValue(item.Surface),
		Metric:               string(item.Metric),
		SponsorID:            security.EscapeSpreadsheetValue(item.SponsorID),
		Value:                item.Value,
		Token:                security.EscapeSpreadsheetValue(item.Token),
		UserAgent:            security.EscapeSpreadsheetValue(ua),
		SessionID:            security.EscapeSpreadsheetValue(item.SessionID),
		VisibleSponsorIDsJSON: string(visibleJSON),
	}
	if err := s.Store.AppendAnalytics(ctx, row); err != nil {
		return apperror.NewInternal(err)
	}
	return nil
}

// LogExternalClick validates linkType and appends a single
// metric="external_click" row with sponsorId = linkType.
func (s *Service) LogExternalClick(ctx context.Context, in ExternalClick) error {
	if !validLinkTypes[in.LinkType] {
		return apperror.NewBadInput("linkType must be one of schedule, standings, bracket, stats, scoreboard, stream")
	}
	ids := in.VisibleSponsorIDs
	if len(ids) > maxVisibleSponsorIDs {
		ids = ids[:maxVisibleSponsorIDs]
	}
	surface := in.Surface
	if surface == "" {
		surface = "public"
	}
	return s.appendRow(ctx, Item{
		EventID:           in.EventID,
		Surface:           surface,
		Metric:            MetricExternalClick,
		SponsorID:         in.LinkType,
		Value:             1,
		SessionID:         in.SessionID,
		VisibleSponsorIDs: ids,
	})
}
