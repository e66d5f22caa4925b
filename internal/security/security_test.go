package security

import "testing"

func TestText(t *testing.T) {
	if got := Text("  trim me  ", 0); got != "trim me" {
		t.Errorf("Text trim = %q", got)
	}
	if got := Text("javascript:alert(1)", 0); got == "javascript:alert(1)" {
		t.Errorf("Text did not strip dangerous prefix: %q", got)
	}
	if got := Text("<script>alert(1)</script>hello", 0); len(got) >= len("<script>alert(1)</script>hello") {
		t.Errorf("Text did not strip html: %q", got)
	}
	if got := Text("a\x00b", 0); got != "ab" {
		t.Errorf("Text did not strip control chars: %q", got)
	}
}

func TestIsURL(t *testing.T) {
	cases := map[string]bool{
		"https://example.com/promo": true,
		"http://127.0.0.1/x":        false,
		"javascript:alert(1)":       false,
		"http://localhost/x":        false,
		"http://10.1.2.3/x":         false,
		"ftp://example.com":         false,
	}
	for in, want := range cases {
		if got := IsURL(in); got != want {
			t.Errorf("IsURL(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestEscapeSpreadsheetValue(t *testing.T) {
	if got := EscapeSpreadsheetValue("=SUM(A1)"); got != "'=SUM(A1)" {
		t.Errorf("got %q", got)
	}
	if got := EscapeSpreadsheetValue("normal"); got != "normal" {
		t.Errorf("got %q", got)
	}
}

func TestRedactMeta(t *testing.T) {
	in := map[string]any{"adminKey": "x", "AuthorizationHeader": "y", "name": "z"}
	out := RedactMeta(in)
	if out["adminKey"] != redacted || out["AuthorizationHeader"] != redacted {
		t.Errorf("expected redaction, got %v", out)
	}
	if out["name"] != "z" {
		t.Errorf("expected name untouched, got %v", out["name"])
	}
}

func TestSlugify(t *testing.T) {
	if got := Slugify("Summer Open!"); got != "summer-open" {
		t.Errorf("got %q", got)
	}
}

func TestValidUUIDv4(t *testing.T) {
	if ValidUUIDv4("not-a-uuid") {
		t.Error("expected false")
	}
}
