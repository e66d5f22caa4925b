// Package apperror provides the error taxonomy shared by every service and
// the router's RPC envelope. Every error that can cross a handler boundary
// is an *AppError carrying one of the fixed ErrorKind values below.
//
// NEVER return a raw database or infrastructure error to the client. Wrap
// it with NewInternal so the client only sees a generic message while the
// original error is preserved for logging via Unwrap.
package apperror

import (
	"errors"
	"fmt"
)

// ErrorKind is the machine-readable error classifier returned in the RPC
// envelope's "code" field. The set is closed -- handlers must not invent
// new kinds.
type ErrorKind string

const (
	BadInput     ErrorKind = "BAD_INPUT"
	NotFound     ErrorKind = "NOT_FOUND"
	RateLimited  ErrorKind = "RATE_LIMITED"
	Internal     ErrorKind = "INTERNAL"
	Contract     ErrorKind = "CONTRACT"
	Unauthorized ErrorKind = "UNAUTHORIZED"
)

// AppError is the base error type for all domain errors. Kind drives the
// envelope's "code"; Message is safe to show to the client; Internal holds
// the underlying error for logging and is never serialized.
type AppError struct {
	Kind     ErrorKind `json:"code"`
	Message  string    `json:"message"`
	Internal error     `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %s (internal: %v)", e.Kind, e.Message, e.Internal)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *AppError) Unwrap() error {
	return e.Internal
}

// NewBadInput creates a BAD_INPUT error: malformed shape, invalid
// enum/type, unknown field, invalid URL, invalid CSRF/token.
func NewBadInput(message string) *AppError {
	return &AppError{Kind: BadInput, Message: message}
}

// NewNotFound creates a NOT_FOUND error. Used for missing rows, unknown
// tenants, and cross-tenant probes alike -- never distinguish the two to
// a caller, to avoid existence oracles.
func NewNotFound(message string) *AppError {
	return &AppError{Kind: NotFound, Message: message}
}

// NewRateLimited creates a RATE_LIMITED error for per-minute overruns and
// auth-failure lockouts.
func NewRateLimited(message string) *AppError {
	return &AppError{Kind: RateLimited, Message: message}
}

// NewUnauthorized creates an UNAUTHORIZED error, reserved for interfaces
// that distinguish it from BAD_INPUT.
func NewUnauthorized(message string) *AppError {
	return &AppError{Kind: Unauthorized, Message: message}
}

// NewContract creates a CONTRACT error: a response that failed its own
// schema. Treated as a bug -- never retried by callers.
func NewContract(message string) *AppError {
	return &AppError{Kind: Contract, Message: message}
}

// errMissingContext is the shared internal error for nil precondition checks.
var errMissingContext = errors.New("missing required context")

// NewMissingContext creates an INTERNAL error for handler nil-context
// guards (e.g. tenant context not set, dependency not wired).
func NewMissingContext() *AppError {
	return NewInternal(errMissingContext)
}

// NewInternal creates an INTERNAL error. The real error is stored in
// Internal for logging but the client only sees a generic message.
func NewInternal(err error) *AppError {
	return &AppError{
		Kind:     Internal,
		Message:  "An unexpected error occurred. Please try again.",
		Internal: err,
	}
}

// SafeMessage returns the client-safe error message from an error. If the
// error is an AppError, returns its Message field. For any other error
// type, returns a generic message to prevent leaking internal details.
func SafeMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "an unexpected error occurred"
}

// SafeKind returns the ErrorKind from an AppError, or Internal for any
// other error type.
func SafeKind(err error) ErrorKind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return Internal
}

// KindToHTTPStatus maps an ErrorKind to the HTTP status the router uses
// to transport it. The envelope's own "code" field is the contract;
// this mapping exists only for transport plumbing.
func KindToHTTPStatus(k ErrorKind) int {
	switch k {
	case BadInput:
		return 400
	case Unauthorized:
		return 401
	case NotFound:
		return 404
	case RateLimited:
		return 429
	case Contract, Internal:
		return 500
	default:
		return 500
	}
}
