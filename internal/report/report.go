// Package report implements the Report Aggregator:
// per-event analytics aggregation, a pure sponsor ROI calculator, and the
// engagement score formula. Grounded on internal/plugins/audit/service.go's
// validate-then-delegate shape for the aggregation step; the ROI and
// engagement formulas have no equivalent elsewhere in the codebase and
// are implemented here as a standalone pure function set.
package report

import (
	"context"
	"math"
	"time"

	"github.com/keyxmakerx/chronicle/internal/apperror"
	"github.com/keyxmakerx/chronicle/internal/store"
)

// Totals holds the coarse impressions/clicks/dwellSec tally.
type Totals struct {
	Impressions int
	Clicks      int
	DwellSec    float64
}

// Grouped holds per-key totals plus the derived CTR.
type Grouped struct {
	Key         string
	Impressions int
	Clicks      int
	DwellSec    float64
	CTR         float64
}

// Report is getReport's full result.
type Report struct {
	Totals    Totals
	BySurface []Grouped
	BySponsor []Grouped
	ByToken   []Grouped
}

// Service computes Reports from the Store's Analytics sheet.
type Service struct {
	Store store.Store
}

// New builds a Service.
func New(s store.Store) *Service {
	return &Service{Store: s}
}

// GetReport scans analytics rows for eventID and returns the aggregated
// Report. Existence is checked by the caller (the router resolves the
// event by (id, tenantId) first, returning NOT_FOUND uniformly whether
// the row is absent or belongs to another tenant).
func (s *Service) GetReport(ctx context.Context, eventID string) (*Report, error) {
	rows, err := s.Store.ListAnalyticsByEvent(ctx, eventID)
	if err != nil {
		return nil, apperror.NewInternal(err)
	}

	bySurface := map[string]*Grouped{}
	bySponsor := map[string]*Grouped{}
	byToken := map[string]*Grouped{}
	var totals Totals

	accumulate := func(groups map[string]*Grouped, key string, impressions, clicks int, dwell float64) {
		if key == "" {
			key = "-"
		}
		g, ok := groups[key]
		if !ok {
			g = &Grouped{Key: key}
			groups[key] = g
		}
		g.Impressions += impressions
		g.Clicks += clicks
		g.DwellSec += dwell
	}

	for _, row := range rows {
		var impressions, clicks int
		var dwell float64
		switch row.Metric {
		case "impression":
			impressions = 1
			totals.Impressions++
		case "click", "external_click":
			clicks = 1
			totals.Clicks++
		case "dwellSec":
			dwell = row.Value
			totals.DwellSec += row.Value
		}

		accumulate(bySurface, row.Surface, impressions, clicks, dwell)
		accumulate(bySponsor, row.SponsorID, impressions, clicks, dwell)
		accumulate(byToken, row.Token, impressions, clicks, dwell)
	}

	return &Report{
		Totals:    totals,
		BySurface: finalize(bySurface),
		BySponsor: finalize(bySponsor),
		ByToken:   finalize(byToken),
	}, nil
}

// BySponsor scans every Analytics row tagged with sponsorID, bounded to
// [from, to] when either is non-zero, and tallies impressions/clicks for
// feeding into SponsorROI. Existence of the sponsor itself is not checked
// here; a sponsor with no rows simply yields zero totals.
func (s *Service) BySponsor(ctx context.Context, sponsorID string, from, to time.Time) (Totals, error) {
	rows, err := s.Store.ListAnalyticsBySponsor(ctx, sponsorID, from, to)
	if err != nil {
		return Totals{}, apperror.NewInternal(err)
	}

	var totals Totals
	for _, row := range rows {
		switch row.Metric {
		case "impression":
			totals.Impressions++
		case "click", "external_click":
			totals.Clicks++
		case "dwellSec":
			totals.DwellSec += row.Value
		}
	}
	return totals, nil
}

func finalize(groups map[string]*Grouped) []Grouped {
	out := make([]Grouped, 0, len(groups))
	for _, g := range groups {
		g.CTR = ctr(g.Impressions, g.Clicks)
		out = append(out, *g)
	}
	return out
}

// ctr returns clicks/impressions rounded to 4 decimals, or 0 when
// impressions is 0.
func ctr(impressions, clicks int) float64 {
	if impressions == 0 {
		return 0
	}
	return round4(float64(clicks) / float64(impressions))
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

// Period is the date window a sponsor ROI result was scoped to. Either
// field may be empty when the caller didn't bound the query.
type Period struct {
	From string
	To   string
}

// ROIInput is the sponsor ROI calculator's request shape.
type ROIInput struct {
	Period              Period
	Impressions         int
	Clicks              int
	SponsorshipCost     float64
	CostPerClick        float64
	ConversionRate      float64
	AvgTransactionValue float64
}

// Financials is getSponsorROI's financials sub-object.
type Financials struct {
	TotalCost           float64
	CostPerClick        float64
	CPM                 float64
	EstimatedConversions float64
	EstimatedRevenue    float64
	ROI                 float64
}

// ROIResult is getSponsorROI's full result.
type ROIResult struct {
	Period     Period
	Metrics    Totals
	Financials Financials
	Insights   []string
}

// SponsorROI is a pure calculator: ROI = (revenue - cost) / cost * 100;
// CPM = cost / impressions * 1000. Undefined quantities default to 0.
func SponsorROI(in ROIInput) ROIResult {
	totalCost := in.SponsorshipCost
	if totalCost == 0 && in.CostPerClick > 0 {
		totalCost = in.CostPerClick * float64(in.Clicks)
	}

	costPerClick := in.CostPerClick
	if costPerClick == 0 && in.Clicks > 0 && totalCost > 0 {
		costPerClick = totalCost / float64(in.Clicks)
	}

	var cpm float64
	if in.Impressions > 0 {
		cpm = totalCost / float64(in.Impressions) * 1000
	}

	estimatedConversions := float64(in.Clicks) * in.ConversionRate
	estimatedRevenue := estimatedConversions * in.AvgTransactionValue

	var roi float64
	if totalCost > 0 {
		roi = (estimatedRevenue - totalCost) / totalCost * 100
	}

	insights := []string{}
	if roi > 0 {
		insights = append(insights, "Sponsorship is profitable based on estimated conversions.")
	} else if totalCost > 0 {
		insights = append(insights, "Sponsorship cost exceeds estimated revenue.")
	}

	return ROIResult{
		Period:  in.Period,
		Metrics: Totals{Impressions: in.Impressions, Clicks: in.Clicks},
		Financials: Financials{
			TotalCost:            totalCost,
			CostPerClick:         costPerClick,
			CPM:                  cpm,
			EstimatedConversions: estimatedConversions,
			EstimatedRevenue:     estimatedRevenue,
			ROI:                  roi,
		},
		Insights: insights,
	}
}

// EngagementScore implements the formula:
// 0.6*CTR + 0.4*min(dwellPerImp/5, 1)*100, bounded to [0, 100].
func EngagementScore(impressions, clicks int, dwellSec float64) float64 {
	c := ctr(impressions, clicks) * 100
	var dwellPerImp float64
	if impressions > 0 {
		dwellPerImp = dwellSec / float64(impressions)
	}
	dwellComponent := math.Min(dwellPerImp/5, 1) * 100

	score := 0.6*c + 0.4*dwellComponent
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
