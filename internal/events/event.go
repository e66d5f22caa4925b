// Package events implements the Event Service: create,
// read, list, and update of the canonical Event, with idempotency, slug
// collision handling under a process-wide lock, and hydration of legacy
// input shapes to the canonical contract. The slug-collision loop is
// grounded verbatim on internal/plugins/entities/service.go's
// generateSlug; the declared-field validation is grounded on
// internal/plugins/entities/model.go's FieldDefinition/MergeFields.
package events

// CTA is a single call-to-action button.
type CTA struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// CTAs holds the event's primary (required) and optional secondary CTA.
type CTAs struct {
	Primary   CTA  `json:"primary"`
	Secondary *CTA `json:"secondary,omitempty"`
}

// Settings holds the event's show/hide toggles, keyed by feature name
// (Schedule, Standings, Bracket, Sponsors, and any template-specific
// extras -- the contract leaves the set open).
type Settings struct {
	Show map[string]bool `json:"show"`
}

// Links are always derived from (baseURL, tenantID, id); they are never
// persisted.
type Links struct {
	PublicURL      string `json:"publicUrl"`
	DisplayURL     string `json:"displayUrl"`
	PosterURL      string `json:"posterUrl"`
	SignupURL      string `json:"signupUrl"`
	SharedReportURL string `json:"sharedReportUrl,omitempty"`
}

// QRCodes holds base64 PNG data URIs for the public and signup links.
type QRCodes struct {
	Public string `json:"public"`
	Signup string `json:"signup"`
}

// Event is the canonical, fully hydrated contract returned to clients.
type Event struct {
	ID           string   `json:"id"`
	Slug         string   `json:"slug"`
	Name         string   `json:"name"`
	StartDateISO string   `json:"startDateISO"`
	Venue        string   `json:"venue"`
	TemplateID   string   `json:"templateId"`

	// DescriptionHTML is rich-text event copy, sanitized with the
	// permissive UGC policy (internal/sanitize) rather than the Security
	// Kit's scalar-field stripping, so basic formatting survives.
	DescriptionHTML string `json:"descriptionHtml,omitempty"`

	Links Links   `json:"links"`
	QR    QRCodes `json:"qr"`

	Schedule     any   `json:"schedule,omitempty"`
	Standings    any   `json:"standings,omitempty"`
	Bracket      any   `json:"bracket,omitempty"`
	Sponsors     []any `json:"sponsors,omitempty"`
	Media        any   `json:"media,omitempty"`
	ExternalData any   `json:"externalData,omitempty"`

	CTAs     CTAs     `json:"ctas"`
	Settings Settings `json:"settings"`

	CreatedAtISO string `json:"createdAtISO"`
	UpdatedAtISO string `json:"updatedAtISO"`
}

// coreKeys are the fixed, always-legal update keys, distinct from a
// template's declared custom fields. Any key NOT in this set and not a
// declared Template field is rejected with "Unknown field: <k>".
var coreKeys = map[string]bool{
	"name": true, "startDateISO": true, "venue": true,
	"ctas": true, "settings": true, "sponsors": true,
	"schedule": true, "standings": true, "bracket": true,
	"media": true, "externalData": true, "slug": true,
	"descriptionHtml": true,
}

// legacy input aliases, hydrated to the canonical shape on read.
const (
	legacyDateISO    = "dateISO"
	legacyLocation   = "location"
	legacyVenueName  = "venueName"
	legacyCTALabels  = "ctaLabels"
	legacySections   = "sections"
)
