// Package shortlink implements the Shortlink Service:
// minting a token-bearing redirect URL and resolving it back, with an
// SSRF-checked re-validation of the stored target and an external-domain
// interstitial. Grounded on internal/plugins/syncapi's token-based
// access pattern and its fire-and-forget audit logging via a goroutine.
package shortlink

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/keyxmakerx/chronicle/internal/apperror"
	"github.com/keyxmakerx/chronicle/internal/auth"
	"github.com/keyxmakerx/chronicle/internal/security"
	"github.com/keyxmakerx/chronicle/internal/store"
)

const maxTargetURLLength = 2048

// CreateInput is the mint operation's request shape.
type CreateInput struct {
	TenantID  string
	TargetURL string
	EventID   string
	SponsorID string
	Surface   string
}

// CreateResult is returned from Create.
type CreateResult struct {
	Token     string
	Shortlink string
}

// RedirectResult tells the caller how to respond to a resolved token.
type RedirectResult struct {
	// Kind is either "redirect" (same-tenant host, emit a meta-refresh)
	// or "interstitial" (external host, show a warning page first).
	Kind      string
	TargetURL string
}

// HostnameResolver reports whether host matches any configured tenant's
// hostnames, used to decide redirect vs. interstitial.
type HostnameResolver func(host string) bool

// Service mints and resolves shortlinks.
type Service struct {
	Store      store.Store
	BaseURL    string
	Hostnames  HostnameResolver
	Log        *slog.Logger
}

// New builds a Service.
func New(s store.Store, baseURL string, hostnames HostnameResolver, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{Store: s, BaseURL: baseURL, Hostnames: hostnames, Log: log}
}

// Create validates the target URL, mints a UUID v4 token, and appends a
// Shortlinks row.
func (s *Service) Create(ctx context.Context, in CreateInput) (*CreateResult, error) {
	if len(in.TargetURL) > maxTargetURLLength || !security.IsURL(in.TargetURL) {
		return nil, apperror.NewBadInput("targetUrl is invalid")
	}

	token := auth.GenerateUUIDv4()
	row := store.ShortlinkRow{
		Token:     token,
		TargetURL: in.TargetURL,
		EventID:   in.EventID,
		SponsorID: in.SponsorID,
		Surface:   in.Surface,
		TenantID:  in.TenantID,
		CreatedAt: time.Now(),
	}
	if err := s.Store.InsertShortlink(ctx, row); err != nil {
		return nil, apperror.NewInternal(err)
	}

	return &CreateResult{
		Token:     token,
		Shortlink: fmt.Sprintf("%s?page=r&t=%s", s.BaseURL, token),
	}, nil
}

// Redirect resolves a token, re-validates the stored target, records a
// fire-and-forget analytics click, and decides redirect vs. interstitial.
func (s *Service) Redirect(ctx context.Context, token string, record func(eventID, surface, sponsorID, token string)) (*RedirectResult, error) {
	if token == "" {
		return nil, apperror.NewBadInput("Invalid shortlink")
	}

	row, ok, err := s.Store.GetShortlink(ctx, token)
	if err != nil {
		return nil, apperror.NewInternal(err)
	}
	if !ok {
		return nil, apperror.NewNotFound("Shortlink not found")
	}

	if !security.IsURL(row.TargetURL) {
		return nil, apperror.NewBadInput("Invalid shortlink")
	}

	surface := row.Surface
	if surface == "" {
		surface = "shortlink"
	}

	if record != nil {
		go func() {
			defer func() {
				if r := recover(); r != nil {
					s.Log.Error("shortlink click logging panicked", "recover", r)
				}
			}()
			record(row.EventID, surface, row.SponsorID, row.Token)
		}()
	}

	u, err := url.Parse(row.TargetURL)
	if err != nil {
		return nil, apperror.NewBadInput("Invalid shortlink")
	}

	if s.Hostnames != nil && s.Hostnames(strings.ToLower(u.Hostname())) {
		return &RedirectResult{Kind: "redirect", TargetURL: row.TargetURL}, nil
	}
	return &RedirectResult{Kind: "interstitial", TargetURL: row.TargetURL}, nil
}
