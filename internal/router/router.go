// Package router implements the public RPC surface: one GET entry point
// and one POST entry point, both returning the common envelope
// {ok:true,value,etag?} / {ok:true,notModified:true,etag} /
// {ok:false,code,message}. Tenant resolution, auth, CSRF, and rate
// limiting are applied uniformly before an action ever reaches a
// service. Grounded on internal/app/routes.go's adapter-and-dispatch
// shape, collapsed from many REST routes onto the two this contract
// exposes, with internal/app/app.go's errorHandler idiom (map a domain
// error kind to an HTTP status, log only the internal cause) reused for
// the envelope writer instead of echo.HTTPErrorHandler.
package router

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/chronicle/internal/analytics"
	"github.com/keyxmakerx/chronicle/internal/apperror"
	"github.com/keyxmakerx/chronicle/internal/auth"
	"github.com/keyxmakerx/chronicle/internal/bundle"
	"github.com/keyxmakerx/chronicle/internal/config"
	"github.com/keyxmakerx/chronicle/internal/csrf"
	"github.com/keyxmakerx/chronicle/internal/diag"
	"github.com/keyxmakerx/chronicle/internal/events"
	"github.com/keyxmakerx/chronicle/internal/formprovider"
	"github.com/keyxmakerx/chronicle/internal/ratelimit"
	"github.com/keyxmakerx/chronicle/internal/report"
	"github.com/keyxmakerx/chronicle/internal/shortlink"
)

// ContractVersion is the fixed wire-contract identifier returned by the
// status action, independent of the running build's version string.
const ContractVersion = "2"

// Router wires every domain service behind the two RPC entry points.
type Router struct {
	Registry   *config.Registry
	Events     *events.Service
	Bundles    *bundle.Service
	Shortlinks *shortlink.Service
	Analytics  *analytics.Service
	Reports    *report.Service
	Diag       *diag.Logger
	CSRF       *csrf.Manager
	RateLimit  *ratelimit.Limiter
	Forms      formprovider.Provider

	// BuildVersion is surfaced by the status action; set from the
	// running binary's version at startup.
	BuildVersion string

	// Ping probes the underlying Store for the status action's db.ok
	// field. Nil skips the probe and reports ok unconditionally.
	Ping func(ctx context.Context) error

	Now func() time.Time
}

func (rt *Router) now() time.Time {
	if rt.Now != nil {
		return rt.Now()
	}
	return time.Now()
}

// Register attaches the GET and POST entry points to e. The GET entry
// point also serves every other path so URL aliases can be matched.
func (rt *Router) Register(e *echo.Echo) {
	e.GET("/", rt.handleGet)
	e.GET("/*", rt.handleGet)
	e.POST("/", rt.handlePost)
}

// envelope is the wire shape of every response this router produces.
type envelope struct {
	OK          bool               `json:"ok"`
	Value       any                `json:"value,omitempty"`
	ETag        string             `json:"etag,omitempty"`
	NotModified bool               `json:"notModified,omitempty"`
	Code        apperror.ErrorKind `json:"code,omitempty"`
	Message     string             `json:"message,omitempty"`
}

func writeValue(c echo.Context, value any) error {
	return c.JSON(http.StatusOK, envelope{OK: true, Value: value})
}

func writeValueETag(c echo.Context, value any, etag string) error {
	return c.JSON(http.StatusOK, envelope{OK: true, Value: value, ETag: etag})
}

func writeNotModified(c echo.Context, etag string) error {
	return c.JSON(http.StatusOK, envelope{OK: true, NotModified: true, ETag: etag})
}

// writeError maps any error to an envelope and HTTP status via the
// ErrorKind taxonomy. The internal cause, if any, is logged here and
// never serialized to the client.
func writeError(c echo.Context, err error) error {
	kind := apperror.SafeKind(err)
	msg := apperror.SafeMessage(err)
	var appErr *apperror.AppError
	if ok := asAppError(err, &appErr); ok && appErr.Internal != nil {
		slog.Error("request failed",
			"code", kind,
			"path", c.Request().URL.Path,
			"internal", appErr.Internal,
		)
	}
	return c.JSON(apperror.KindToHTTPStatus(kind), envelope{OK: false, Code: kind, Message: msg})
}

func asAppError(err error, target **apperror.AppError) bool {
	ae, ok := err.(*apperror.AppError)
	if ok {
		*target = ae
	}
	return ok
}

// resolveTenantID applies the tenant-resolution order: query parameter
// brand, then Host header against configured tenant hostnames, then (for
// POST bodies that carry one) brandId, then the root tenant.
func (rt *Router) resolveTenantID(c echo.Context, body map[string]any) string {
	if b := c.QueryParam("brand"); b != "" {
		return b
	}
	if host := requestHostname(c); host != "" {
		if t, ok := rt.Registry.Snapshot().TenantByHostname(host); ok {
			return t.ID
		}
	}
	if body != nil {
		if b, _ := body["brandId"].(string); b != "" {
			return b
		}
	}
	return config.RootTenantID
}

func requestHostname(c echo.Context) string {
	host := c.Request().Host
	for i, ch := range host {
		if ch == ':' {
			return host[:i]
		}
	}
	return host
}

// ifNoneMatchParam reads the caller-supplied comparison ETag, preferring
// the route's own "etag" query parameter over the standard header.
func ifNoneMatchParam(c echo.Context) string {
	if v := c.QueryParam("etag"); v != "" {
		return v
	}
	return c.Request().Header.Get("If-None-Match")
}

// checkRateLimit enforces the auth-failure lockout and the sliding
// per-minute window, in that order, for (tenantID, ip).
func (rt *Router) checkRateLimit(ctx context.Context, tenantID, ip string) error {
	if err := rt.RateLimit.CheckLockout(ctx, tenantID, ip); err != nil {
		return err
	}
	return rt.RateLimit.Allow(ctx, tenantID, ip)
}

// secretLookup adapts the Config Registry's admin secrets map to
// auth.SecretLookup.
func (rt *Router) secretLookup() auth.SecretLookup {
	return func(tenantID string) (string, bool) {
		secret, ok := rt.Registry.Snapshot().AdminSecrets[tenantID]
		return secret, ok
	}
}

func (rt *Router) isTenantHostname(host string) bool {
	_, ok := rt.Registry.Snapshot().TenantByHostname(host)
	return ok
}

// authenticate resolves adminKey from the POST body (falling back to the
// query parameter) and delegates to the three-method auth resolver.
func (rt *Router) authenticate(c echo.Context, tenantID string, body map[string]any) (*auth.Result, error) {
	adminKey, _ := body["adminKey"].(string)
	if adminKey == "" {
		adminKey = c.QueryParam("adminKey")
	}
	return auth.Authenticate(c.Request(), tenantID, adminKey, rt.secretLookup())
}

// csrfRequiredActions are the state-changing POST actions that must
// carry a valid, single-use CSRF token. logEvents and logExternalClick,
// the Analytics Ingest's paths, are explicitly no-auth, so they never
// require one here even though they also mutate the Analytics sheet.
var csrfRequiredActions = map[string]bool{
	"create":                 true,
	"update":                 true,
	"updateEventData":        true,
	"createShortlink":        true,
	"createFormFromTemplate": true,
	"generateFormShortlink":  true,
}

// pathSegments splits a request path into its non-empty segments, the
// [brand, alias] or [alias] shape the URL-alias lookup step matches on.
func pathSegments(c echo.Context) []string {
	raw := c.Request().URL.Path
	var segs []string
	start := 0
	for i := 0; i <= len(raw); i++ {
		if i == len(raw) || raw[i] == '/' {
			if i > start {
				segs = append(segs, raw[start:i])
			}
			start = i + 1
		}
	}
	return segs
}

// pageToBundleKind maps a page name (as used both in ?page=<x> and a URL
// alias Target) onto the internal bundle kind handleBundle understands.
// "events" is the page name links.publicUrl uses for the Public bundle.
var pageToBundleKind = map[string]string{
	"events":       "public",
	"display":      "display",
	"poster":       "poster",
	"sponsor":      "sponsor",
	"sharedReport": "sharedReport",
}

// handleGet applies the routing order: URL-alias lookup, the GET action
// dispatch, the shortlink redirect, page/bundle routes, and finally the
// public listing route as the catch-all.
func (rt *Router) handleGet(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID := rt.resolveTenantID(c, nil)
	ip := c.RealIP()

	if err := rt.checkRateLimit(ctx, tenantID, ip); err != nil {
		return writeError(c, err)
	}

	action := c.QueryParam("action")
	page := c.QueryParam("page")

	if segs := pathSegments(c); len(segs) == 1 || len(segs) == 2 {
		alias := segs[len(segs)-1]
		if len(segs) == 2 {
			if _, ok := rt.Registry.Snapshot().Tenants[segs[0]]; ok {
				tenantID = segs[0]
			}
		}
		if target, ok := rt.Registry.Snapshot().Aliases[alias]; ok {
			if target.IsAPI {
				action = target.Target
			} else {
				page = target.Target
			}
		}
	}

	if action != "" {
		return rt.dispatchGetAction(c, tenantID, action)
	}

	if page == "r" || page == "redirect" {
		return rt.handleRedirect(c, tenantID)
	}

	if page == "admin" {
		return rt.handleAdminPage(c, tenantID)
	}
	if kind, ok := pageToBundleKind[page]; ok {
		return rt.handleBundle(c, tenantID, kind)
	}

	return rt.handleList(c, tenantID)
}

// dispatchGetAction is the ?action=<x> GET action dispatch, shared by
// the query-parameter route and by API-targeted URL aliases.
func (rt *Router) dispatchGetAction(c echo.Context, tenantID, action string) error {
	switch action {
	case "status":
		return rt.handleStatus(c, tenantID)
	case "generateCSRFToken":
		return rt.handleGenerateCSRFToken(c, tenantID)
	case "config":
		return rt.handleConfig(c, tenantID)
	case "list":
		return rt.handleList(c, tenantID)
	case "get":
		return rt.handleGetEvent(c, tenantID)
	case "getPublicBundle":
		return rt.handleBundle(c, tenantID, "public")
	case "getDisplayBundle":
		return rt.handleBundle(c, tenantID, "display")
	case "getPosterBundle":
		return rt.handleBundle(c, tenantID, "poster")
	case "getSponsorBundle":
		return rt.handleBundle(c, tenantID, "sponsor")
	case "getSharedReportBundle":
		return rt.handleBundle(c, tenantID, "sharedReport")
	default:
		return writeError(c, apperror.NewBadInput("Unknown action"))
	}
}

// handleAdminPage implements the page=admin mode selection: mode=advanced
// requires auth and returns the full Admin bundle, anything else requires
// auth and returns the reduced Wizard bundle.
func (rt *Router) handleAdminPage(c echo.Context, tenantID string) error {
	if _, err := rt.authenticate(c, tenantID, map[string]any{"adminKey": c.QueryParam("adminKey")}); err != nil {
		return writeError(c, err)
	}

	id := c.QueryParam("id")
	inm := ifNoneMatchParam(c)
	ctx := c.Request().Context()

	if c.QueryParam("mode") == "advanced" {
		bundle, etag, notModified, err := rt.Bundles.Admin(ctx, tenantID, id, inm)
		if err != nil {
			return writeError(c, err)
		}
		if notModified {
			return writeNotModified(c, etag)
		}
		return writeValueETag(c, bundle, etag)
	}

	bundle, etag, notModified, err := rt.Bundles.Wizard(ctx, tenantID, id, inm)
	if err != nil {
		return writeError(c, err)
	}
	if notModified {
		return writeNotModified(c, etag)
	}
	return writeValueETag(c, bundle, etag)
}

func (rt *Router) handleStatus(c echo.Context, tenantID string) error {
	ctx := c.Request().Context()
	dbOK := true
	if rt.Ping != nil {
		if err := rt.Ping(ctx); err != nil {
			slog.Error("status db ping failed", "error", err)
			dbOK = false
		}
	}
	type dbStatus struct {
		OK bool   `json:"ok"`
		ID string `json:"id"`
	}
	return writeValue(c, map[string]any{
		"build":    rt.BuildVersion,
		"contract": ContractVersion,
		"brand":    tenantID,
		"time":     rt.now().UTC().Format(time.RFC3339),
		"db":       dbStatus{OK: dbOK, ID: "mariadb"},
	})
}

func (rt *Router) handleGenerateCSRFToken(c echo.Context, tenantID string) error {
	token, err := rt.CSRF.Generate(c.Request().Context(), tenantID)
	if err != nil {
		return writeError(c, err)
	}
	return writeValue(c, map[string]string{"csrfToken": token})
}

func (rt *Router) handleConfig(c echo.Context, tenantID string) error {
	snap := rt.Registry.Snapshot()
	type brandSummary struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	brands := make([]brandSummary, 0, len(snap.Tenants))
	for _, t := range snap.Tenants {
		brands = append(brands, brandSummary{ID: t.ID, Name: t.Name})
	}
	templates := make([]string, 0, len(snap.Templates))
	for id := range snap.Templates {
		templates = append(templates, id)
	}
	return writeValue(c, map[string]any{
		"brands":    brands,
		"templates": templates,
		"build":     rt.BuildVersion,
	})
}

func (rt *Router) handleList(c echo.Context, tenantID string) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))

	result, err := rt.Events.List(c.Request().Context(), tenantID, limit, offset)
	if err != nil {
		return writeError(c, err)
	}
	if inm := ifNoneMatchParam(c); inm != "" && inm == result.ETag {
		return writeNotModified(c, result.ETag)
	}
	return writeValueETag(c, map[string]any{
		"items": result.Items,
		"pagination": map[string]any{
			"total":   result.Total,
			"limit":   result.Limit,
			"offset":  result.Offset,
			"hasMore": result.HasMore,
		},
	}, result.ETag)
}

func (rt *Router) handleGetEvent(c echo.Context, tenantID string) error {
	ev, etag, notModified, err := rt.Events.Get(c.Request().Context(), tenantID, c.QueryParam("id"), ifNoneMatchParam(c))
	if err != nil {
		return writeError(c, err)
	}
	if notModified {
		return writeNotModified(c, etag)
	}
	return writeValueETag(c, ev, etag)
}

// handleBundle dispatches to the Bundle Service by kind and writes the
// resulting envelope, treating notModified uniformly across all five
// bundle kinds.
func (rt *Router) handleBundle(c echo.Context, tenantID, kind string) error {
	ctx := c.Request().Context()
	id := c.QueryParam("id")
	inm := ifNoneMatchParam(c)

	var value any
	var etag string
	var notModified bool
	var err error

	switch kind {
	case "public":
		value, etag, notModified, err = rt.Bundles.Public(ctx, tenantID, id, inm)
	case "display":
		value, etag, notModified, err = rt.Bundles.Display(ctx, tenantID, id, inm)
	case "poster":
		value, etag, notModified, err = rt.Bundles.Poster(ctx, tenantID, id, inm)
	case "sponsor":
		value, etag, notModified, err = rt.Bundles.Sponsor(ctx, tenantID, id, inm)
	case "sharedReport":
		value, etag, notModified, err = rt.Bundles.SharedReport(ctx, tenantID, id, inm)
	}
	if err != nil {
		return writeError(c, err)
	}
	if notModified {
		return writeNotModified(c, etag)
	}
	return writeValueETag(c, value, etag)
}

// handleRedirect resolves a shortlink token and emits either a
// meta-refresh redirect or an external-domain warning interstitial. The
// only HTML the core ever renders lives here, per a single escaped slot.
func (rt *Router) handleRedirect(c echo.Context, tenantID string) error {
	token := c.QueryParam("t")
	record := func(eventID, surface, sponsorID, tok string) {
		_ = rt.Analytics.LogEvents(context.Background(), []analytics.Item{{
			EventID:   eventID,
			Surface:   surface,
			Metric:    analytics.MetricClick,
			SponsorID: sponsorID,
			Value:     1,
			Token:     tok,
		}})
	}

	result, err := rt.Shortlinks.Redirect(c.Request().Context(), token, record)
	if err != nil {
		return c.HTML(http.StatusOK, invalidShortlinkHTML(apperror.SafeMessage(err)))
	}
	if result.Kind == "redirect" {
		return c.HTML(http.StatusOK, metaRefreshHTML(result.TargetURL))
	}
	return c.HTML(http.StatusOK, interstitialHTML(result.TargetURL))
}

func metaRefreshHTML(target string) string {
	escaped := html.EscapeString(target)
	return fmt.Sprintf(`<!DOCTYPE html><html><head><meta http-equiv="refresh" content="0;url=%s"></head><body>Redirecting to <a href="%s">%s</a>&hellip;</body></html>`, escaped, escaped, escaped)
}

func interstitialHTML(target string) string {
	escaped := html.EscapeString(target)
	return fmt.Sprintf(`<!DOCTYPE html><html><head><title>Leaving this site</title></head><body>
<p>This link leads to an external site: <strong>%s</strong></p>
<a href="%s">Continue</a>
<a href="javascript:history.back()">Cancel</a>
</body></html>`, escaped, escaped)
}

func invalidShortlinkHTML(message string) string {
	return fmt.Sprintf(`<!DOCTYPE html><html><head><title>Invalid shortlink</title></head><body><p>%s</p></body></html>`, html.EscapeString(message))
}

// handlePost dispatches every state-changing action, applying rate
// limiting, the origin check, authentication, and CSRF enforcement in
// that order before any service is called.
func (rt *Router) handlePost(c echo.Context) error {
	ctx := c.Request().Context()

	var body map[string]any
	if err := json.NewDecoder(c.Request().Body).Decode(&body); err != nil {
		return writeError(c, apperror.NewBadInput("Malformed JSON body"))
	}

	tenantID := rt.resolveTenantID(c, body)
	ip := c.RealIP()
	if err := rt.checkRateLimit(ctx, tenantID, ip); err != nil {
		return writeError(c, err)
	}

	if err := auth.CheckOrigin(c.Request(), rt.isTenantHostname); err != nil {
		return writeError(c, err)
	}

	action, _ := body["action"].(string)

	// logEvents and logExternalClick are the Analytics Ingest's public
	// paths and are explicitly unauthenticated; every other action
	// requires one of the three auth methods.
	if action != "logEvents" && action != "logExternalClick" {
		if _, err := rt.authenticate(c, tenantID, body); err != nil {
			if recErr := rt.RateLimit.RecordAuthFailure(ctx, tenantID, ip); recErr != nil {
				slog.Error("auth failure counter increment failed", "error", recErr)
			}
			return writeError(c, err)
		}
	}

	if csrfRequiredActions[action] {
		submitted, _ := body["csrfToken"].(string)
		ok, err := rt.CSRF.Validate(ctx, tenantID, submitted)
		if err != nil {
			return writeError(c, err)
		}
		if !ok {
			return writeError(c, apperror.NewBadInput("Invalid or expired CSRF token"))
		}
	}

	switch action {
	case "create":
		return rt.handleCreate(c, tenantID, body)
	case "update", "updateEventData":
		return rt.handleUpdate(c, tenantID, body)
	case "logEvents":
		return rt.handleLogEvents(c, body)
	case "logExternalClick":
		return rt.handleLogExternalClick(c, body)
	case "getReport":
		return rt.handleGetReport(c, tenantID, body)
	case "getAdminBundle":
		return rt.handleGetAdminBundle(c, tenantID, body)
	case "createShortlink":
		return rt.handleCreateShortlink(c, tenantID, body)
	case "getSponsorROI":
		return rt.handleGetSponsorROI(c, body)
	case "getSponsorAnalytics":
		return rt.handleGetSponsorAnalytics(c, tenantID, body)
	case "listFormTemplates":
		return rt.handleListFormTemplates(c, tenantID)
	case "createFormFromTemplate":
		return rt.handleCreateFormFromTemplate(c, tenantID, body)
	case "generateFormShortlink":
		return rt.handleGenerateFormShortlink(c, tenantID, body)
	default:
		return writeError(c, apperror.NewBadInput("Unknown action"))
	}
}

func (rt *Router) handleCreate(c echo.Context, tenantID string, body map[string]any) error {
	in := events.CreateInput{
		TenantID:     tenantID,
		Scope:        stringField(body, "scope"),
		IdemKey:      stringField(body, "idemKey"),
		ID:           stringField(body, "id"),
		Slug:         stringField(body, "slug"),
		TemplateID:   stringField(body, "templateId"),
		Name:         stringField(body, "name"),
		StartDateISO: stringField(body, "startDateISO"),
		Venue:        stringField(body, "venue"),
		CTAs:         decodeCTAs(body["ctas"]),
		Settings:     decodeSettings(body["settings"]),
		Sponsors:     toAnySlice(body["sponsors"]),
		Schedule:     body["schedule"],
		Standings:    body["standings"],
		Bracket:      body["bracket"],
		Media:           body["media"],
		ExternalData:    body["externalData"],
		DescriptionHTML: stringField(body, "descriptionHtml"),
	}
	ev, err := rt.Events.Create(c.Request().Context(), in)
	if err != nil {
		return writeError(c, err)
	}
	return writeValue(c, ev)
}

func (rt *Router) handleUpdate(c echo.Context, tenantID string, body map[string]any) error {
	data, _ := body["data"].(map[string]any)
	ev, err := rt.Events.Update(c.Request().Context(), events.UpdateInput{
		TenantID: tenantID,
		ID:       stringField(body, "id"),
		Data:     data,
	})
	if err != nil {
		return writeError(c, err)
	}
	return writeValue(c, ev)
}

func (rt *Router) handleLogEvents(c echo.Context, body map[string]any) error {
	raw, _ := body["items"].([]any)
	items := make([]analytics.Item, 0, len(raw))
	for _, r := range raw {
		m, ok := r.(map[string]any)
		if !ok {
			continue
		}
		items = append(items, analytics.Item{
			EventID:           stringField(m, "eventId"),
			Surface:           stringField(m, "surface"),
			Metric:            analytics.Metric(stringField(m, "metric")),
			SponsorID:         stringField(m, "sponsorId"),
			Value:             floatField(m, "value"),
			Token:             stringField(m, "token"),
			UserAgent:         stringField(m, "userAgent"),
			SessionID:         stringField(m, "sessionId"),
			VisibleSponsorIDs: toStringSlice(m["visibleSponsorIds"]),
		})
	}
	if err := rt.Analytics.LogEvents(c.Request().Context(), items); err != nil {
		return writeError(c, err)
	}
	return writeValue(c, map[string]bool{"logged": true})
}

func (rt *Router) handleLogExternalClick(c echo.Context, body map[string]any) error {
	err := rt.Analytics.LogExternalClick(c.Request().Context(), analytics.ExternalClick{
		EventID:           stringField(body, "eventId"),
		LinkType:          stringField(body, "linkType"),
		SessionID:         stringField(body, "sessionId"),
		VisibleSponsorIDs: toStringSlice(body["visibleSponsorIds"]),
		Surface:           stringField(body, "surface"),
	})
	if err != nil {
		return writeError(c, err)
	}
	return writeValue(c, map[string]bool{"logged": true})
}

func (rt *Router) handleGetReport(c echo.Context, tenantID string, body map[string]any) error {
	id := stringField(body, "id")
	// getReport distinguishes its event lookup from its analytics scan:
	// NOT_FOUND on a missing/cross-tenant event hides existence either way.
	if _, _, _, err := rt.Events.Get(c.Request().Context(), tenantID, id, ""); err != nil {
		return writeError(c, err)
	}
	rep, err := rt.Reports.GetReport(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return writeValue(c, rep)
}

func (rt *Router) handleGetAdminBundle(c echo.Context, tenantID string, body map[string]any) error {
	id := stringField(body, "id")
	ev, etag, notModified, err := rt.Bundles.Admin(c.Request().Context(), tenantID, id, ifNoneMatchFromBody(body))
	if err != nil {
		return writeError(c, err)
	}
	if notModified {
		return writeNotModified(c, etag)
	}
	return writeValueETag(c, ev, etag)
}

func (rt *Router) handleCreateShortlink(c echo.Context, tenantID string, body map[string]any) error {
	result, err := rt.Shortlinks.Create(c.Request().Context(), shortlink.CreateInput{
		TenantID:  tenantID,
		TargetURL: stringField(body, "targetUrl"),
		EventID:   stringField(body, "eventId"),
		SponsorID: stringField(body, "sponsorId"),
		Surface:   stringField(body, "surface"),
	})
	if err != nil {
		return writeError(c, err)
	}
	return writeValue(c, result)
}

func (rt *Router) handleGetSponsorROI(c echo.Context, body map[string]any) error {
	sponsorID := stringField(body, "sponsorId")
	if sponsorID == "" {
		return writeError(c, apperror.NewBadInput("sponsorId is required"))
	}

	dateFromStr := stringField(body, "dateFrom")
	dateToStr := stringField(body, "dateTo")
	var dateFrom, dateTo time.Time
	if dateFromStr != "" {
		t, err := time.Parse(time.RFC3339, dateFromStr)
		if err != nil {
			return writeError(c, apperror.NewBadInput("dateFrom must be an RFC3339 timestamp"))
		}
		dateFrom = t
	}
	if dateToStr != "" {
		t, err := time.Parse(time.RFC3339, dateToStr)
		if err != nil {
			return writeError(c, apperror.NewBadInput("dateTo must be an RFC3339 timestamp"))
		}
		dateTo = t
	}

	totals, err := rt.Reports.BySponsor(c.Request().Context(), sponsorID, dateFrom, dateTo)
	if err != nil {
		return writeError(c, err)
	}

	result := report.SponsorROI(report.ROIInput{
		Period:              report.Period{From: dateFromStr, To: dateToStr},
		Impressions:         totals.Impressions,
		Clicks:              totals.Clicks,
		SponsorshipCost:     floatField(body, "sponsorshipCost"),
		CostPerClick:        floatField(body, "costPerClick"),
		ConversionRate:      floatField(body, "conversionRate"),
		AvgTransactionValue: floatField(body, "avgTransactionValue"),
	})
	return writeValue(c, result)
}

func (rt *Router) handleGetSponsorAnalytics(c echo.Context, tenantID string, body map[string]any) error {
	id := stringField(body, "id")
	if _, _, _, err := rt.Events.Get(c.Request().Context(), tenantID, id, ""); err != nil {
		return writeError(c, err)
	}
	rep, err := rt.Reports.GetReport(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return writeValue(c, rep.BySponsor)
}

func (rt *Router) handleListFormTemplates(c echo.Context, tenantID string) error {
	templates, err := rt.Forms.ListFormTemplates(c.Request().Context(), tenantID)
	if err != nil {
		return writeError(c, err)
	}
	return writeValue(c, templates)
}

func (rt *Router) handleCreateFormFromTemplate(c echo.Context, tenantID string, body map[string]any) error {
	formURL, err := rt.Forms.CreateFormFromTemplate(c.Request().Context(), tenantID, stringField(body, "templateId"), stringField(body, "eventId"))
	if err != nil {
		return writeError(c, err)
	}
	return writeValue(c, map[string]string{"formUrl": formURL})
}

func (rt *Router) handleGenerateFormShortlink(c echo.Context, tenantID string, body map[string]any) error {
	formURL, err := rt.Forms.CreateFormFromTemplate(c.Request().Context(), tenantID, stringField(body, "templateId"), stringField(body, "eventId"))
	if err != nil {
		return writeError(c, err)
	}
	result, err := rt.Shortlinks.Create(c.Request().Context(), shortlink.CreateInput{
		TenantID:  tenantID,
		TargetURL: formURL,
		EventID:   stringField(body, "eventId"),
		Surface:   "form",
	})
	if err != nil {
		return writeError(c, err)
	}
	return writeValue(c, result)
}

func stringField(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func floatField(m map[string]any, key string) float64 {
	if v, ok := m[key].(float64); ok {
		return v
	}
	return 0
}

func toStringSlice(v any) []string {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, e := range arr {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func toAnySlice(v any) []any {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	return arr
}

func decodeCTAs(v any) events.CTAs {
	var out events.CTAs
	if v == nil {
		return out
	}
	b, err := json.Marshal(v)
	if err != nil {
		return out
	}
	_ = json.Unmarshal(b, &out)
	return out
}

func decodeSettings(v any) *events.Settings {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var s events.Settings
	if err := json.Unmarshal(b, &s); err != nil {
		return nil
	}
	return &s
}

func ifNoneMatchFromBody(body map[string]any) string {
	return stringField(body, "ifNoneMatch")
}
