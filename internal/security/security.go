// Package security is the Security Kit: input sanitization, ID validation,
// spreadsheet-formula escaping, SSRF-checked URL validation, and sensitive
// field redaction for logs. Every service funnels untrusted strings through
// here before they reach the Store.
//
// Sanitization uses bluemonday's strict policy (internal/sanitize uses
// the permissive UGC policy to preserve rich text formatting; this package
// needs the opposite -- full tag stripping for plain scalar fields like
// event name/venue) composed with control-character and dangerous-
// prefix stripping on top.
package security

import (
	"net"
	"net/url"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

const defaultMaxLength = 1000

var (
	stripPolicy = bluemonday.StrictPolicy()

	controlCharRe  = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F\x{200B}-\x{200D}\x{FEFF}]`)
	dangerousCharRe = regexp.MustCompile(`[<>"'` + "`" + `&]`)
	dangerousPrefixRe = regexp.MustCompile(`(?i)(javascript|data|vbscript):`)
	eventHandlerRe = regexp.MustCompile(`(?i)\bon\w+\s*=`)
	entityEscapeRe = regexp.MustCompile(`(?i)&(#x?[0-9a-f]+|[a-z]+);`)

	idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,100}$`)

	formulaPrefixes = []byte{'=', '+', '-', '@'}
)

// Text strips control characters, dangerous substrings, and HTML tags
// from untrusted input, then trims and truncates to maxLength (0 means
// the default of 1000).
func Text(input string, maxLength int) string {
	if maxLength <= 0 {
		maxLength = defaultMaxLength
	}
	s := input
	s = controlCharRe.ReplaceAllString(s, "")
	s = stripPolicy.Sanitize(s)
	s = dangerousPrefixRe.ReplaceAllString(s, "")
	s = eventHandlerRe.ReplaceAllString(s, "")
	s = entityEscapeRe.ReplaceAllString(s, "")
	s = dangerousCharRe.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	if len(s) > maxLength {
		s = truncateRunes(s, maxLength)
	}
	return s
}

func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

// ValidID reports whether id matches ^[A-Za-z0-9_-]{1,100}$.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

// EscapeSpreadsheetValue prefixes a value with a single quote if it begins
// with =, +, -, or @, defeating spreadsheet formula injection when the
// value is later exported to CSV/sheets.
func EscapeSpreadsheetValue(value string) string {
	if value == "" {
		return value
	}
	for _, p := range formulaPrefixes {
		if value[0] == p {
			return "'" + value
		}
	}
	return value
}

var ssrfDenylist = []*net.IPNet{
	mustCIDR("127.0.0.0/8"),
	mustCIDR("10.0.0.0/8"),
	mustCIDR("192.168.0.0/16"),
	mustCIDR("172.16.0.0/12"),
	mustCIDR("169.254.0.0/16"),
}

func mustCIDR(s string) *net.IPNet {
	_, n, err := net.ParseCIDR(s)
	if err != nil {
		panic(err)
	}
	return n
}

// IsURL reports whether raw is a safe, well-formed URL: parseable,
// scheme http/https, length <= 2048, no javascript:/data:/vbscript:/file:
// substrings, and a host that is neither localhost nor a literal IP in a
// denylisted (loopback or private) range. Hostnames are not resolved.
func IsURL(raw string) bool {
	if len(raw) == 0 || len(raw) > 2048 {
		return false
	}
	lower := strings.ToLower(raw)
	for _, bad := range []string{"javascript:", "data:", "vbscript:", "file:"} {
		if strings.Contains(lower, bad) {
			return false
		}
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	host := u.Hostname()
	if host == "" {
		return false
	}
	if strings.EqualFold(host, "localhost") {
		return false
	}
	if ip := net.ParseIP(host); ip != nil {
		for _, n := range ssrfDenylist {
			if n.Contains(ip) {
				return false
			}
		}
	}
	return true
}

var redactKeyPattern = regexp.MustCompile(`(?i)(adminkey|token|password|secret|authorization|bearer|csrf)`)

const redacted = "[REDACTED]"

// RedactMeta returns a copy of meta with any value whose key matches a
// sensitive-field pattern replaced by "[REDACTED]". Used before any map
// is persisted to the Diagnostic Log.
func RedactMeta(meta map[string]any) map[string]any {
	if meta == nil {
		return nil
	}
	out := make(map[string]any, len(meta))
	for k, v := range meta {
		if redactKeyPattern.MatchString(k) {
			out[k] = redacted
		} else {
			out[k] = v
		}
	}
	return out
}

// ValidUUIDv4 reports whether s is a syntactically valid UUID v4.
func ValidUUIDv4(s string) bool {
	if len(s) != 36 {
		return false
	}
	const pat = `^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`
	ok, _ := regexp.MatchString(pat, strings.ToLower(s))
	return ok
}

// ValidDateISO reports whether s matches ^\d{4}-\d{2}-\d{2}$.
var dateISOPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

func ValidDateISO(s string) bool {
	return dateISOPattern.MatchString(s)
}

// Slugify lowercases, replaces runs of non [a-z0-9] characters with a
// hyphen, and trims leading/trailing hyphens, truncating to 50 chars.
// Mirrors internal/plugins/entities/model.go's Slugify, generalized with
// a length cap matching `^[a-z0-9-]{1,50}$`.
var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

func Slugify(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = slugPattern.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if s == "" {
		s = "event"
	}
	if len(s) > 50 {
		s = strings.Trim(s[:50], "-")
	}
	return s
}

// ValidSlug reports whether s matches ^[a-z0-9-]{1,50}$.
var slugValidPattern = regexp.MustCompile(`^[a-z0-9-]{1,50}$`)

func ValidSlug(s string) bool {
	return slugValidPattern.MatchString(s)
}

// ValidIdemKey reports whether s matches ^[A-Za-z0-9-]{1,128}$.
var idemKeyPattern = regexp.MustCompile(`^[A-Za-z0-9-]{1,128}$`)

func ValidIdemKey(s string) bool {
	return idemKeyPattern.MatchString(s)
}
