// Package auth implements the three-method authentication resolver:
// shared secret, bearer JWT (HS256), and API key, tried in
// order with the first success winning. Constant-time comparison is
// grounded on internal/plugins/auth/service.go's
// subtle.ConstantTimeCompare pattern; ids are minted with
// github.com/google/uuid (teacher indirect dep, promoted to direct per
// jordigilh-kubernaut/r3e/Mindburn-Labs-helm's go.mod) rather than a
// hand-rolled generator; JWT parsing uses github.com/golang-jwt/jwt/v5,
// adopted from jordigilh-kubernaut and Mindburn-Labs-helm's go.mod.
package auth

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/keyxmakerx/chronicle/internal/apperror"
)

// Method identifies which of the three methods authenticated the request.
type Method string

const (
	MethodSharedSecret Method = "shared_secret"
	MethodBearerJWT    Method = "bearer_jwt"
	MethodAPIKey       Method = "api_key"
)

// Result is the outcome of a successful Authenticate call.
type Result struct {
	TenantID string
	Method   Method
}

// SecretLookup resolves the admin secret (used as both shared secret and
// JWT/HMAC signing key, and API key) for a tenant.
type SecretLookup func(tenantID string) (secret string, ok bool)

// ErrAuthFailed is wrapped into apperror.NewBadInput by Authenticate; kept
// as a sentinel so callers (the rate limiter's lockout counter) can tell
// an auth failure apart from other BAD_INPUT causes without string
// matching on the message.
var ErrAuthFailed = fmt.Errorf("invalid authentication credentials")

// Claims is the JWT payload shape: brand, exp, nbf.
type Claims struct {
	Brand string `json:"brand"`
	jwt.RegisteredClaims
}

// Authenticate tries, in order: shared secret (adminKey param), bearer
// JWT, API key. tenantID is the tenant the request claims to act as
// (e.g. from ?brand=). lookup resolves that tenant's secret.
func Authenticate(r *http.Request, tenantID, adminKeyParam string, lookup SecretLookup) (*Result, error) {
	secret, ok := lookup(tenantID)
	if !ok {
		return nil, apperror.NewBadInput("Invalid authentication credentials")
	}

	if adminKeyParam != "" {
		if constantTimeEqual(adminKeyParam, secret) {
			return &Result{TenantID: tenantID, Method: MethodSharedSecret}, nil
		}
	}

	var jwtErr error
	if authz := r.Header.Get("Authorization"); strings.HasPrefix(authz, "Bearer ") {
		token := strings.TrimPrefix(authz, "Bearer ")
		if jwtErr = verifyJWT(token, tenantID, secret); jwtErr == nil {
			return &Result{TenantID: tenantID, Method: MethodBearerJWT}, nil
		}
	}

	if apiKey := r.Header.Get("X-API-Key"); apiKey != "" {
		if constantTimeEqual(apiKey, secret) {
			return &Result{TenantID: tenantID, Method: MethodAPIKey}, nil
		}
	}

	if jwtErr != nil {
		return nil, apperror.NewBadInput(jwtErr.Error())
	}
	return nil, apperror.NewBadInput("Invalid authentication credentials")
}

// constantTimeEqual compares two secrets without leaking timing
// information about where they first differ, exactly
// internal/plugins/auth/service.go's approach to password/token compare.
func constantTimeEqual(a, b string) bool {
	if len(a) != len(b) {
		// Still run a constant-time compare against a same-length
		// buffer so callers can't distinguish "wrong length" from
		// "wrong value" by timing.
		subtle.ConstantTimeCompare([]byte(a), []byte(a))
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// verifyJWT validates a bearer token: the header must
// declare alg=HS256 (anything else, including "none", is rejected before
// any signature check); the payload must have brand == tenantID,
// exp > now, nbf <= now; the signature is HMAC-SHA-256 over the tenant's
// secret.
func verifyJWT(tokenString, tenantID, secret string) error {
	// Reject any algorithm other than HS256 from the header alone, before
	// the library ever attempts a signature check -- this is what stops
	// the classic alg=none substitution attack even if a future library
	// version's default method list changes.
	alg, err := headerAlg(tokenString)
	if err != nil || alg != "HS256" {
		return fmt.Errorf("Invalid JWT algorithm")
	}

	parser := jwt.NewParser(jwt.WithValidMethods([]string{"HS256"}), jwt.WithExpirationRequired())
	claims := &Claims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return fmt.Errorf("Invalid authentication credentials")
	}
	if claims.Brand != tenantID {
		return fmt.Errorf("Token brand mismatch")
	}
	return nil
}

// headerAlg decodes just the JWT header segment to read its "alg" claim,
// without trusting the parsing library's own algorithm negotiation.
func headerAlg(tokenString string) (string, error) {
	parts := strings.SplitN(tokenString, ".", 3)
	if len(parts) != 3 {
		return "", fmt.Errorf("malformed token")
	}
	raw, err := jwt.NewParser().DecodeSegment(parts[0])
	if err != nil {
		return "", err
	}
	var header struct {
		Alg string `json:"alg"`
	}
	if err := json.Unmarshal(raw, &header); err != nil {
		return "", err
	}
	return header.Alg, nil
}

// wellKnownProviderHosts are accepted Origin hosts beyond localhost and
// configured tenant hostnames -- browser extensions and
// known embed contexts chronicle's admin UI is served from.
var wellKnownProviderHosts = map[string]bool{
	"docs.google.com":   true,
	"script.google.com": true,
}

// CheckOrigin implements the POST origin check: if an Origin
// header is present it must resolve to localhost/127.0.0.1, a configured
// tenant hostname, or a well-known provider host. If Origin is absent,
// the request must carry an Authorization or X-API-Key header.
func CheckOrigin(r *http.Request, isTenantHostname func(host string) bool) error {
	origin := r.Header.Get("Origin")
	if origin == "" {
		if r.Header.Get("Authorization") != "" || r.Header.Get("X-API-Key") != "" {
			return nil
		}
		return apperror.NewBadInput("Missing Origin and no credential header present")
	}

	u, err := url.Parse(origin)
	if err != nil {
		return apperror.NewBadInput("Invalid Origin header")
	}
	host := u.Hostname()
	if host == "localhost" || host == "127.0.0.1" {
		return nil
	}
	if isTenantHostname != nil && isTenantHostname(host) {
		return nil
	}
	if wellKnownProviderHosts[strings.ToLower(host)] {
		return nil
	}
	return apperror.NewBadInput("Origin not permitted")
}

// GenerateUUIDv4 mints a UUID v4 string via google/uuid, shared by event
// ids, shortlink tokens, and CSRF tokens alike.
func GenerateUUIDv4() string {
	return uuid.NewString()
}

// NewHS256Token signs an HS256 JWT carrying the brand claim Authenticate
// expects, primarily used by tests to produce tokens Authenticate should
// accept.
func NewHS256Token(tenantID, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		Brand: tenantID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			NotBefore: jwt.NewNumericDate(now.Add(-time.Second)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
