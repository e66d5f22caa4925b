// Package qr defines the QRRenderer collaborator, treated as
// an external interface: QR image generation is explicitly out of core
// scope. The core only ever calls Render and falls back to an empty data
// URI on any failure or when no renderer is configured (degraded-mode
// Recovery: "QR rendering failure yields an empty data URI, not an
// error").
package qr

import "context"

// Renderer produces a base64 data URI for the given target URL.
type Renderer interface {
	Render(ctx context.Context, targetURL string) (dataURI string, err error)
}

// Stub is a Renderer that always returns an empty data URI, standing in
// for the real office/QR-service integration this core never implements.
type Stub struct{}

func (Stub) Render(_ context.Context, _ string) (string, error) {
	return "", nil
}
