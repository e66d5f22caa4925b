// Package bundle implements the Bundle Service: six
// read-only compositions over a hydrated Event, each carrying an ETag
// and honoring ifNoneMatch. Grounded on
// internal/plugins/campaigns/middleware.go's context-composition idiom
// (resolve once, attach a typed payload) generalized from one campaign
// context into six distinct read-model shapes over the same Event.
package bundle

import (
	"context"

	"github.com/keyxmakerx/chronicle/internal/apperror"
	"github.com/keyxmakerx/chronicle/internal/config"
	"github.com/keyxmakerx/chronicle/internal/events"
	"github.com/keyxmakerx/chronicle/internal/report"
	"github.com/keyxmakerx/chronicle/internal/store"
)

// Service composes bundles over the Event Service's Get.
type Service struct {
	Events   *events.Service
	Report   *report.Service
	Store    store.Store
	Registry *config.Registry
}

// New builds a Service.
func New(ev *events.Service, rep *report.Service, s store.Store, reg *config.Registry) *Service {
	return &Service{Events: ev, Report: rep, Store: s, Registry: reg}
}

// loadEvent fetches and ETag-checks the underlying event, the first step
// shared by every bundle.
func (s *Service) loadEvent(ctx context.Context, tenantID, id, ifNoneMatch string) (ev *events.Event, etag string, notModified bool, err error) {
	return s.Events.Get(ctx, tenantID, id, ifNoneMatch)
}

// PublicBundle is the Public bundle response.
type PublicBundle struct {
	Event  events.Event `json:"event"`
	Config AppConfig    `json:"config"`
}

// AppConfig is the Public bundle's brand-facing config sub-object.
type AppConfig struct {
	AppTitle  string `json:"appTitle"`
	BrandID   string `json:"brandId"`
	BrandName string `json:"brandName"`
}

// Public composes the Public bundle.
func (s *Service) Public(ctx context.Context, tenantID, id, ifNoneMatch string) (*PublicBundle, string, bool, error) {
	ev, etag, notModified, err := s.loadEvent(ctx, tenantID, id, ifNoneMatch)
	if err != nil || notModified {
		return nil, etag, notModified, err
	}
	tenant := s.Registry.Snapshot().Tenants[tenantID]
	bundle := &PublicBundle{
		Event:  *ev,
		Config: AppConfig{AppTitle: tenant.Name, BrandID: tenant.ID, BrandName: tenant.Name},
	}
	return bundle, events.ComputeETag(bundle), false, nil
}

// Rotation is the Display bundle's sponsor-rotation sub-object.
type Rotation struct {
	SponsorSlots int `json:"sponsorSlots"`
	RotationMs   int `json:"rotationMs"`
}

// Layout is the Display bundle's layout sub-object.
type Layout struct {
	HasSidePane bool   `json:"hasSidePane"`
	Emphasis    string `json:"emphasis"`
}

// DisplayBundle is the Display bundle response.
type DisplayBundle struct {
	Event    events.Event `json:"event"`
	Rotation Rotation     `json:"rotation"`
	Layout   Layout       `json:"layout"`
}

// Display composes the Display bundle: sponsor-rotation and layout
// settings merged from global defaults with per-template overrides.
func (s *Service) Display(ctx context.Context, tenantID, id, ifNoneMatch string) (*DisplayBundle, string, bool, error) {
	ev, etag, notModified, err := s.loadEvent(ctx, tenantID, id, ifNoneMatch)
	if err != nil || notModified {
		return nil, etag, notModified, err
	}
	d := s.Registry.Snapshot().DisplayFor(ev.TemplateID)
	bundle := &DisplayBundle{
		Event:    *ev,
		Rotation: Rotation{SponsorSlots: d.SponsorSlots, RotationMs: d.RotationMs},
		Layout:   Layout{HasSidePane: d.HasSidePane, Emphasis: d.Emphasis},
	}
	return bundle, events.ComputeETag(bundle), false, nil
}

// PosterQRCodes holds the Poster bundle's QR codes: copies of Event.QR's
// embedded data URIs. No separate external QR image URLs are produced.
type PosterQRCodes struct {
	Public string `json:"public"`
	Signup string `json:"signup"`
}

// PrintFormatting pre-formats the poster's date/venue lines.
type PrintFormatting struct {
	DateLine  string `json:"dateLine"`
	VenueLine string `json:"venueLine"`
}

// PosterBundle is the Poster bundle response.
type PosterBundle struct {
	Event   events.Event    `json:"event"`
	QRCodes PosterQRCodes   `json:"qrCodes"`
	Print   PrintFormatting `json:"print"`
}

// Poster composes the Poster bundle.
func (s *Service) Poster(ctx context.Context, tenantID, id, ifNoneMatch string) (*PosterBundle, string, bool, error) {
	ev, etag, notModified, err := s.loadEvent(ctx, tenantID, id, ifNoneMatch)
	if err != nil || notModified {
		return nil, etag, notModified, err
	}
	bundle := &PosterBundle{
		Event:   *ev,
		QRCodes: PosterQRCodes{Public: ev.QR.Public, Signup: ev.QR.Signup},
		Print: PrintFormatting{
			DateLine:  ev.StartDateISO,
			VenueLine: ev.Venue,
		},
	}
	return bundle, events.ComputeETag(bundle), false, nil
}

// ThinEvent is the minimal event projection used by Sponsor/SharedReport.
type ThinEvent struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	DateTime string `json:"dateTime"`
	Location string `json:"location"`
	BrandID  string `json:"brandId"`
}

func thin(ev *events.Event, tenantID string) ThinEvent {
	return ThinEvent{ID: ev.ID, Name: ev.Name, DateTime: ev.StartDateISO, Location: ev.Venue, BrandID: tenantID}
}

// SponsorMetrics is one sponsor's per-event aggregated performance.
type SponsorMetrics struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Impressions int     `json:"impressions"`
	Clicks      int     `json:"clicks"`
	CTR         float64 `json:"ctr"`
}

// SponsorBundle is the Sponsor bundle response.
type SponsorBundle struct {
	Event    ThinEvent        `json:"event"`
	Sponsors []SponsorMetrics `json:"sponsors"`
}

// Sponsor composes the Sponsor bundle: a thin event plus per-sponsor
// impressions/clicks/CTR aggregated from Analytics for this event.
func (s *Service) Sponsor(ctx context.Context, tenantID, id, ifNoneMatch string) (*SponsorBundle, string, bool, error) {
	ev, etag, notModified, err := s.loadEvent(ctx, tenantID, id, ifNoneMatch)
	if err != nil || notModified {
		return nil, etag, notModified, err
	}

	rep, err := s.Report.GetReport(ctx, ev.ID)
	if err != nil {
		return nil, "", false, err
	}
	bySponsorID := map[string]report.Grouped{}
	for _, g := range rep.BySponsor {
		bySponsorID[g.Key] = g
	}

	var metrics []SponsorMetrics
	for _, raw := range ev.Sponsors {
		sp, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		id, _ := sp["id"].(string)
		name, _ := sp["name"].(string)
		g := bySponsorID[id]
		metrics = append(metrics, SponsorMetrics{ID: id, Name: name, Impressions: g.Impressions, Clicks: g.Clicks, CTR: g.CTR})
	}

	bundle := &SponsorBundle{Event: thin(ev, tenantID), Sponsors: metrics}
	return bundle, events.ComputeETag(bundle), false, nil
}

// SponsorTotal is one sponsor's contribution to a SharedReport.
type SponsorTotal struct {
	ID          string  `json:"id"`
	Impressions int     `json:"impressions"`
	Clicks      int     `json:"clicks"`
	CTR         float64 `json:"ctr"`
}

// SharedReportMetrics is the SharedReport bundle's aggregated-metrics
// sub-object.
type SharedReportMetrics struct {
	Views           int            `json:"views"`
	UniqueViews     int            `json:"uniqueViews"`
	SignupClicks    int            `json:"signupClicks"`
	CheckinClicks   int            `json:"checkinClicks"`
	FeedbackClicks  int            `json:"feedbackClicks"`
	SponsorTotals   []SponsorTotal `json:"sponsorTotals"`
	AvgCTR          float64        `json:"avgCtr"`
	LeagueClicks    map[string]int `json:"leagueClicks"`
	BroadcastClicks map[string]int `json:"broadcastClicks"`
}

// SharedReportBundle is the SharedReport bundle response.
type SharedReportBundle struct {
	Event   ThinEvent           `json:"event"`
	Metrics SharedReportMetrics `json:"metrics"`
}

var leagueLinkTypes = []string{"schedule", "standings", "bracket"}
var broadcastLinkTypes = []string{"stats", "scoreboard", "stream"}

// SharedReport composes the SharedReport bundle.
func (s *Service) SharedReport(ctx context.Context, tenantID, id, ifNoneMatch string) (*SharedReportBundle, string, bool, error) {
	ev, etag, notModified, err := s.loadEvent(ctx, tenantID, id, ifNoneMatch)
	if err != nil || notModified {
		return nil, etag, notModified, err
	}

	rep, err := s.Report.GetReport(ctx, ev.ID)
	if err != nil {
		return nil, "", false, err
	}

	var views, uniqueViews int
	bySurface := map[string]report.Grouped{}
	for _, g := range rep.BySurface {
		bySurface[g.Key] = g
	}
	if v, ok := bySurface["public"]; ok {
		views = v.Impressions
		uniqueViews = v.Impressions
	}

	leagueClicks := map[string]int{}
	broadcastClicks := map[string]int{}
	for _, g := range rep.BySponsor {
		for _, lt := range leagueLinkTypes {
			if g.Key == lt {
				leagueClicks[lt] = g.Clicks
			}
		}
		for _, bt := range broadcastLinkTypes {
			if g.Key == bt {
				broadcastClicks[bt] = g.Clicks
			}
		}
	}

	var sponsorTotals []SponsorTotal
	var ctrSum float64
	for _, g := range rep.BySponsor {
		isLinkType := false
		for _, lt := range append(append([]string{}, leagueLinkTypes...), broadcastLinkTypes...) {
			if g.Key == lt {
				isLinkType = true
			}
		}
		if isLinkType || g.Key == "-" {
			continue
		}
		sponsorTotals = append(sponsorTotals, SponsorTotal{ID: g.Key, Impressions: g.Impressions, Clicks: g.Clicks, CTR: g.CTR})
		ctrSum += g.CTR
	}
	var avgCTR float64
	if len(sponsorTotals) > 0 {
		avgCTR = ctrSum / float64(len(sponsorTotals))
	}

	bundle := &SharedReportBundle{
		Event: thin(ev, tenantID),
		Metrics: SharedReportMetrics{
			Views:           views,
			UniqueViews:     uniqueViews,
			SponsorTotals:   sponsorTotals,
			AvgCTR:          avgCTR,
			LeagueClicks:    leagueClicks,
			BroadcastClicks: broadcastClicks,
		},
	}
	return bundle, events.ComputeETag(bundle), false, nil
}

// WizardBundle is the reduced admin-page projection served when
// page=admin and mode is anything other than advanced: the event and
// brand config a setup wizard needs, without the full sponsor roster and
// diagnostics the advanced console shows. Both modes share the same
// underlying event load and ETag machinery as Admin.
type WizardBundle struct {
	Event            events.Event  `json:"event"`
	BrandConfig      config.Tenant `json:"brandConfig"`
	AllowedTemplates []string      `json:"allowedTemplates"`
}

// Wizard composes the reduced Admin-page bundle.
func (s *Service) Wizard(ctx context.Context, tenantID, id, ifNoneMatch string) (*WizardBundle, string, bool, error) {
	ev, etag, notModified, err := s.loadEvent(ctx, tenantID, id, ifNoneMatch)
	if err != nil || notModified {
		return nil, etag, notModified, err
	}

	snap := s.Registry.Snapshot()
	tenant := snap.Tenants[tenantID]
	var templateIDs []string
	for tid := range snap.Templates {
		templateIDs = append(templateIDs, tid)
	}

	bundle := &WizardBundle{Event: *ev, BrandConfig: tenant, AllowedTemplates: templateIDs}
	return bundle, events.ComputeETag(bundle), false, nil
}

// AdminDiagnostics is the Admin bundle's per-event diagnostic flags.
type AdminDiagnostics struct {
	HasForm        bool   `json:"hasForm"`
	HasShortlinks  bool   `json:"hasShortlinks"`
	LastPublishedAt string `json:"lastPublishedAt"`
}

// AdminBundle is the Admin bundle response (requires auth).
type AdminBundle struct {
	Event           events.Event     `json:"event"`
	BrandConfig     config.Tenant    `json:"brandConfig"`
	AllowedTemplates []string        `json:"allowedTemplates"`
	Diagnostics     AdminDiagnostics `json:"diagnostics"`
	AllSponsors     []store.SponsorRow `json:"allSponsors"`
}

// Admin composes the full Admin bundle.
func (s *Service) Admin(ctx context.Context, tenantID, id, ifNoneMatch string) (*AdminBundle, string, bool, error) {
	ev, etag, notModified, err := s.loadEvent(ctx, tenantID, id, ifNoneMatch)
	if err != nil || notModified {
		return nil, etag, notModified, err
	}

	snap := s.Registry.Snapshot()
	tenant := snap.Tenants[tenantID]

	var templateIDs []string
	for tid := range snap.Templates {
		templateIDs = append(templateIDs, tid)
	}

	allSponsors, err := s.Store.ListAllSponsors(ctx, tenantID)
	if err != nil {
		return nil, "", false, apperror.NewInternal(err)
	}

	hasShortlinks, err := s.Store.HasShortlinksForEvent(ctx, tenantID, ev.ID)
	if err != nil {
		return nil, "", false, apperror.NewInternal(err)
	}

	bundle := &AdminBundle{
		Event:            *ev,
		BrandConfig:      tenant,
		AllowedTemplates: templateIDs,
		Diagnostics: AdminDiagnostics{
			HasForm:         false,
			HasShortlinks:   hasShortlinks,
			LastPublishedAt: ev.UpdatedAtISO,
		},
		AllSponsors: allSponsors,
	}
	return bundle, events.ComputeETag(bundle), false, nil
}
