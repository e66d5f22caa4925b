package events

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/keyxmakerx/chronicle/internal/apperror"
	"github.com/keyxmakerx/chronicle/internal/auth"
	"github.com/keyxmakerx/chronicle/internal/cache"
	"github.com/keyxmakerx/chronicle/internal/config"
	"github.com/keyxmakerx/chronicle/internal/lock"
	"github.com/keyxmakerx/chronicle/internal/qr"
	"github.com/keyxmakerx/chronicle/internal/sanitize"
	"github.com/keyxmakerx/chronicle/internal/security"
	"github.com/keyxmakerx/chronicle/internal/store"
)

const (
	idempotencyTTL   = 10 * time.Minute
	lockTimeout      = 10 * time.Second
	maxSlugAttempts  = 50
	defaultListLimit = 100
	maxListLimit     = 1000
)

// CreateInput is the Create operation's request shape.
type CreateInput struct {
	TenantID     string
	Scope        string
	IdemKey      string
	ID           string
	Slug         string
	TemplateID   string
	Name         string
	StartDateISO string
	Venue        string
	CTAs         CTAs
	Settings     *Settings
	Sponsors     []any
	Schedule     any
	Standings    any
	Bracket         any
	Media           any
	ExternalData    any
	DescriptionHTML string
}

// Service is the Event Service, composing the Store,
// the Security Kit, the process-wide write lock, the idempotency cache,
// and the Config Registry's template declarations. Grounded on
// internal/plugins/entities/service.go's Create/Update shape, adapted
// from a single-entity repository onto the shared Store interface.
type Service struct {
	Store    store.Store
	Registry *config.Registry
	Lock     lock.Lock
	Cache    cache.Cache
	QR       qr.Renderer
	BaseURL  string
	Now      func() time.Time
}

// New builds a Service. now defaults to time.Now when nil.
func New(s store.Store, reg *config.Registry, l lock.Lock, c cache.Cache, renderer qr.Renderer, baseURL string) *Service {
	return &Service{Store: s, Registry: reg, Lock: l, Cache: c, QR: renderer, BaseURL: baseURL, Now: time.Now}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Create validates, deduplicates, resolves a unique slug under the
// process-wide write lock, and appends a new Events row.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Event, error) {
	tenant, ok := s.Registry.Snapshot().Tenants[in.TenantID]
	if !ok {
		return nil, apperror.NewNotFound("Unknown tenant")
	}
	if in.Scope != "" && !tenant.HasScope(in.Scope) {
		return nil, apperror.NewUnauthorized("Scope not permitted for this tenant")
	}

	name := security.Text(in.Name, 0)
	if name == "" {
		return nil, apperror.NewBadInput("name is required")
	}
	if !security.ValidDateISO(in.StartDateISO) {
		return nil, apperror.NewBadInput("startDateISO must match YYYY-MM-DD")
	}
	venue := security.Text(in.Venue, 0)
	if venue == "" {
		return nil, apperror.NewBadInput("venue is required")
	}
	if security.Text(in.CTAs.Primary.Label, 0) == "" || security.Text(in.CTAs.Primary.URL, 0) == "" {
		return nil, apperror.NewBadInput("ctas.primary.label and ctas.primary.url are required")
	}

	id := in.ID
	if id != "" {
		if !security.ValidUUIDv4(id) {
			return nil, apperror.NewBadInput("id must be a UUID v4")
		}
	} else {
		id = auth.GenerateUUIDv4()
	}

	requestedSlug := ""
	if in.Slug != "" {
		requestedSlug = security.Slugify(in.Slug)
	}

	if in.IdemKey != "" {
		if !security.ValidIdemKey(in.IdemKey) {
			return nil, apperror.NewBadInput("idemKey is invalid")
		}
		idemCacheKey := fmt.Sprintf("idem:%s:%s:%s", in.TenantID, in.Scope, in.IdemKey)
		set, err := s.Cache.SetNX(ctx, idemCacheKey, "1", idempotencyTTL)
		if err != nil {
			return nil, apperror.NewInternal(err)
		}
		if !set {
			return nil, apperror.NewBadInput("Duplicate create")
		}
	}

	lockCtx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()
	release, err := s.Lock.Acquire(lockCtx, "events:"+in.TenantID)
	if err != nil {
		return nil, apperror.NewInternal(err)
	}
	defer release()

	base := requestedSlug
	if base == "" {
		base = security.Slugify(name)
	}
	slug, err := s.uniqueSlug(ctx, in.TenantID, base)
	if err != nil {
		return nil, err
	}

	templateID := in.TemplateID
	if templateID == "" {
		templateID = "custom"
	}

	now := s.now()
	nowISO := now.UTC().Format(time.RFC3339)
	ev := &Event{
		ID:           id,
		Slug:         slug,
		Name:         name,
		StartDateISO: in.StartDateISO,
		Venue:        venue,
		TemplateID:   templateID,
		CTAs:         in.CTAs,
		Sponsors:     in.Sponsors,
		Schedule:     in.Schedule,
		Standings:    in.Standings,
		Bracket:      in.Bracket,
		Media:        in.Media,
		ExternalData: in.ExternalData,
		CreatedAtISO: nowISO,
		UpdatedAtISO: nowISO,
	}
	if in.DescriptionHTML != "" {
		ev.DescriptionHTML = sanitize.HTML(in.DescriptionHTML)
	}
	if in.Settings != nil {
		ev.Settings = *in.Settings
	} else {
		ev.Settings = Settings{Show: map[string]bool{}}
	}

	dataJSON, err := json.Marshal(ev)
	if err != nil {
		return nil, apperror.NewInternal(err)
	}

	row := store.EventRow{
		ID:         id,
		TenantID:   in.TenantID,
		TemplateID: templateID,
		DataJSON:   string(dataJSON),
		Slug:       slug,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.Store.InsertEvent(ctx, row); err != nil {
		return nil, apperror.NewInternal(err)
	}

	return s.hydrate(ctx, in.TenantID, ev)
}

// uniqueSlug appends -2, -3, ... to base until no row in the tenant
// already uses it. Must be called with the tenant's write lock held.
// Grounded on internal/plugins/entities/service.go's generateSlug.
func (s *Service) uniqueSlug(ctx context.Context, tenantID, base string) (string, error) {
	candidate := base
	for attempt := 1; attempt <= maxSlugAttempts; attempt++ {
		if attempt > 1 {
			candidate = fmt.Sprintf("%s-%d", base, attempt)
		}
		exists, err := s.Store.SlugExists(ctx, tenantID, candidate)
		if err != nil {
			return "", apperror.NewInternal(err)
		}
		if !exists {
			return candidate, nil
		}
	}
	return "", apperror.NewInternal(fmt.Errorf("could not resolve a unique slug for %q after %d attempts", base, maxSlugAttempts))
}

// Get locates an event by (tenantID, id), hydrates it, and computes an
// ETag. If ifNoneMatch matches, notModified is true and event is nil.
func (s *Service) Get(ctx context.Context, tenantID, id, ifNoneMatch string) (event *Event, etag string, notModified bool, err error) {
	if !security.ValidUUIDv4(id) {
		return nil, "", false, apperror.NewBadInput("id must be a UUID v4")
	}
	row, ok, err := s.Store.GetEvent(ctx, tenantID, id)
	if err != nil {
		return nil, "", false, apperror.NewInternal(err)
	}
	if !ok {
		return nil, "", false, apperror.NewNotFound("Event not found")
	}

	ev, err := decodeEvent(row.DataJSON)
	if err != nil {
		return nil, "", false, apperror.NewInternal(err)
	}
	ev, err = s.hydrate(ctx, tenantID, ev)
	if err != nil {
		return nil, "", false, err
	}

	tag := ComputeETag(ev)
	if ifNoneMatch != "" && ifNoneMatch == tag {
		return nil, tag, true, nil
	}
	return ev, tag, false, nil
}

// ListResult is the List operation's paginated response shape.
type ListResult struct {
	Items      []Event
	Total      int
	Limit      int
	Offset     int
	HasMore    bool
	ETag       string
}

// List returns events for a tenant, paginated, hydrated without sponsor
// expansion for speed.
func (s *Service) List(ctx context.Context, tenantID string, limit, offset int) (*ListResult, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	rows, total, err := s.Store.ListEvents(ctx, store.EventFilter{TenantID: tenantID, Limit: limit, Offset: offset})
	if err != nil {
		return nil, apperror.NewInternal(err)
	}

	items := make([]Event, 0, len(rows))
	for _, row := range rows {
		ev, err := decodeEvent(row.DataJSON)
		if err != nil {
			return nil, apperror.NewInternal(err)
		}
		ev, err = s.hydrateLight(tenantID, ev)
		if err != nil {
			return nil, err
		}
		items = append(items, *ev)
	}

	result := &ListResult{
		Items:   items,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: offset+len(items) < total,
	}
	result.ETag = ComputeETag(result)
	return result, nil
}

// UpdateInput is the Update operation's request shape. Data holds the
// submitted field map; keys are validated against coreKeys or the row's
// template's declared fields before anything is merged.
type UpdateInput struct {
	TenantID string
	ID       string
	Data     map[string]any
}

// Update merges validated submitted fields into the stored event under
// the write lock, then returns the re-hydrated event.
func (s *Service) Update(ctx context.Context, in UpdateInput) (*Event, error) {
	if !security.ValidUUIDv4(in.ID) {
		return nil, apperror.NewBadInput("id must be a UUID v4")
	}

	lockCtx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()
	release, err := s.Lock.Acquire(lockCtx, "events:"+in.TenantID)
	if err != nil {
		return nil, apperror.NewInternal(err)
	}
	defer release()

	row, ok, err := s.Store.GetEvent(ctx, in.TenantID, in.ID)
	if err != nil {
		return nil, apperror.NewInternal(err)
	}
	if !ok {
		return nil, apperror.NewNotFound("Event not found")
	}

	var existing map[string]any
	if err := json.Unmarshal([]byte(row.DataJSON), &existing); err != nil {
		return nil, apperror.NewInternal(err)
	}

	template := s.Registry.Snapshot().Templates[row.TemplateID]

	for k, v := range in.Data {
		if !coreKeys[k] {
			if _, declared := template.FieldByID(k); !declared {
				return nil, apperror.NewBadInput("Unknown field: " + k)
			}
			field, _ := template.FieldByID(k)
			if field.Type == "url" {
				sv, ok := v.(string)
				if !ok || !security.IsURL(sv) {
					return nil, apperror.NewBadInput("Invalid URL for field: " + k)
				}
				existing[k] = sv
				continue
			}
		}
		if k == "descriptionHtml" {
			sv, _ := v.(string)
			existing[k] = sanitize.HTML(sv)
			continue
		}
		existing[k] = sanitizeValue(v)
	}

	now := s.now()
	existing["updatedAtISO"] = now.UTC().Format(time.RFC3339)

	merged, err := json.Marshal(existing)
	if err != nil {
		return nil, apperror.NewInternal(err)
	}

	row.DataJSON = string(merged)
	row.UpdatedAt = now
	if slug, ok := existing["slug"].(string); ok && slug != "" {
		row.Slug = slug
	}
	if err := s.Store.UpdateEvent(ctx, row); err != nil {
		return nil, apperror.NewInternal(err)
	}
	release()

	ev, _, _, err := s.Get(ctx, in.TenantID, in.ID, "")
	return ev, err
}

// sanitizeValue runs string-typed submitted values through the Security
// Kit; non-string values (numbers, bools, nested structures) pass
// through untouched since the core never interprets them.
func sanitizeValue(v any) any {
	if sv, ok := v.(string); ok {
		return security.Text(sv, 0)
	}
	return v
}

// decodeEvent unmarshals a stored row into a map, applies legacy-alias
// hydration, then decodes the result into the canonical Event struct.
// After this point the canonical shape is authoritative.
func decodeEvent(dataJSON string) (*Event, error) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(dataJSON), &raw); err != nil {
		return nil, err
	}
	hydrateRawMap(raw)
	canonical, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var ev Event
	if err := json.Unmarshal(canonical, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

// hydrate fully hydrates an event: derived links, QR codes, and sponsor
// expansion. Legacy-alias hydration already ran in decodeEvent.
func (s *Service) hydrate(ctx context.Context, tenantID string, ev *Event) (*Event, error) {
	if err := s.expandSponsors(ctx, tenantID, ev); err != nil {
		return nil, err
	}
	s.deriveLinks(tenantID, ev)
	s.deriveQR(ctx, ev)
	return ev, nil
}

// hydrateLight derives links but skips sponsor expansion, for List's
// speed requirement.
func (s *Service) hydrateLight(tenantID string, ev *Event) (*Event, error) {
	s.deriveLinks(tenantID, ev)
	return ev, nil
}

// expandSponsors replaces raw sponsor id references with full Sponsor
// rows via the Store.
func (s *Service) expandSponsors(ctx context.Context, tenantID string, ev *Event) error {
	if len(ev.Sponsors) == 0 || s.Store == nil {
		return nil
	}
	ids := make([]string, 0, len(ev.Sponsors))
	for _, raw := range ev.Sponsors {
		if id, ok := raw.(string); ok {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	rows, err := s.Store.ListSponsors(ctx, tenantID, ids)
	if err != nil {
		return apperror.NewInternal(err)
	}
	expanded := make([]any, 0, len(rows))
	for _, r := range rows {
		expanded = append(expanded, map[string]any{
			"id":      r.ID,
			"name":    r.Name,
			"logoUrl": r.LogoURL,
			"website": r.Website,
		})
	}
	ev.Sponsors = expanded
	return nil
}

// deriveLinks builds the four page links as query-string routes the
// Router's page dispatch understands directly, never as path segments:
// links.publicUrl = base + "?page=events&brand=" + tenantId + "&id=" + id.
func (s *Service) deriveLinks(tenantID string, ev *Event) {
	q := func(page string) string {
		return fmt.Sprintf("%s?page=%s&brand=%s&id=%s", s.BaseURL, page, tenantID, ev.ID)
	}
	ev.Links = Links{
		PublicURL:  q("events"),
		DisplayURL: q("display"),
		PosterURL:  q("poster"),
		SignupURL:  q("events") + "#signup",
	}
}

func (s *Service) deriveQR(ctx context.Context, ev *Event) {
	if s.QR == nil {
		return
	}
	if uri, err := s.QR.Render(ctx, ev.Links.PublicURL); err == nil {
		ev.QR.Public = uri
	}
	if uri, err := s.QR.Render(ctx, ev.Links.SignupURL); err == nil {
		ev.QR.Signup = uri
	}
}


// hydrateRawMap applies the legacy alias rules at the map[string]any
// level, before unmarshaling into the canonical Event struct. Missing
// startDateISO may be legacy dateISO; missing venue may be
// location/venueName; ctas may be legacy ctaLabels[]; settings.show*
// may be legacy sections.*.enabled.
func hydrateRawMap(raw map[string]any) {
	if _, ok := raw["startDateISO"]; !ok {
		if v, ok := raw[legacyDateISO]; ok {
			raw["startDateISO"] = v
		}
	}
	if _, ok := raw["venue"]; !ok {
		if v, ok := raw[legacyLocation]; ok {
			raw["venue"] = v
		} else if v, ok := raw[legacyVenueName]; ok {
			raw["venue"] = v
		}
	}
	if _, ok := raw["ctas"]; !ok {
		if labels, ok := raw[legacyCTALabels].([]any); ok && len(labels) > 0 {
			cta := map[string]any{}
			if first, ok := labels[0].(map[string]any); ok {
				cta["primary"] = first
			}
			raw["ctas"] = cta
		}
	}
	if sections, ok := raw[legacySections].(map[string]any); ok {
		show, _ := raw["settings"].(map[string]any)
		if show == nil {
			show = map[string]any{"show": map[string]any{}}
		}
		showMap, _ := show["show"].(map[string]any)
		if showMap == nil {
			showMap = map[string]any{}
		}
		for name, section := range sections {
			if sm, ok := section.(map[string]any); ok {
				if enabled, ok := sm["enabled"]; ok {
					showMap[name] = enabled
				}
			}
		}
		show["show"] = showMap
		raw["settings"] = show
	}
}

// ComputeETag returns a short hex digest of v's canonical JSON encoding.
func ComputeETag(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(b)
	return `"` + hex.EncodeToString(sum[:])[:16] + `"`
}
