package config

import "testing"

func TestSeedProducesRootTenant(t *testing.T) {
	cfg := &Config{BaseURL: "https://chronicle.example.com"}
	snap := Seed(cfg)

	root, ok := snap.Tenants[RootTenantID]
	if !ok {
		t.Fatal("expected root tenant to be seeded")
	}
	if _, ok := snap.TenantByHostname("chronicle.example.com"); !ok {
		t.Fatal("expected root tenant to resolve by its BaseURL hostname")
	}
	if !root.HasScope("public") {
		t.Fatal("expected root tenant to allow the public scope")
	}
	if _, ok := snap.Templates["general"]; !ok {
		t.Fatal("expected a general template to be seeded")
	}
	if alias, ok := snap.Aliases["status"]; !ok || !alias.IsAPI || alias.Target != "status" {
		t.Fatalf("expected a status API alias, got %+v ok=%v", alias, ok)
	}
}
