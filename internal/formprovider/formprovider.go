// Package formprovider defines the FormProvider collaborator for
// functionality the core treats as out of scope: spreadsheet/form
// creation via a third-party office API. The core depends only on this
// interface; the only implementation shipped is Unconfigured, which
// rejects every call.
package formprovider

import (
	"context"

	"github.com/keyxmakerx/chronicle/internal/apperror"
)

// Provider creates forms from templates for an event and returns a
// shortlink-eligible URL.
type Provider interface {
	CreateFormFromTemplate(ctx context.Context, tenantID, templateID, eventID string) (formURL string, err error)
	ListFormTemplates(ctx context.Context, tenantID string) ([]string, error)
}

// Unconfigured is a Provider that rejects every call, used when no real
// office-API integration has been wired in for a deployment.
type Unconfigured struct{}

func (Unconfigured) CreateFormFromTemplate(_ context.Context, _, _, _ string) (string, error) {
	return "", apperror.NewInternal(errUnconfigured)
}

func (Unconfigured) ListFormTemplates(_ context.Context, _ string) ([]string, error) {
	return nil, apperror.NewInternal(errUnconfigured)
}

var errUnconfigured = formProviderError("no FormProvider configured")

type formProviderError string

func (e formProviderError) Error() string { return string(e) }
