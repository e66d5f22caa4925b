package config

import "net/url"

// Seed builds the Config Registry's initial Snapshot from environment
// variables and the loaded ambient Config, following config.go's own
// env-var discipline: every deployment-specific value is read once here,
// nowhere else. A real deployment with more than the root tenant would
// normally load this from a database table or a mounted JSON file instead
// of env vars; this is the minimal bootstrap every environment needs.
func Seed(cfg *Config) Snapshot {
	hostnames := []string{"localhost", "127.0.0.1"}
	if u, err := url.Parse(cfg.BaseURL); err == nil && u.Hostname() != "" {
		hostnames = append(hostnames, u.Hostname())
	}

	root := Tenant{
		ID:            RootTenantID,
		Name:          getEnv("ROOT_TENANT_NAME", "Chronicle"),
		Hostnames:     hostnames,
		ScopesAllowed: []string{"public", "admin"},
		SpreadsheetID: getEnv("ROOT_TENANT_SPREADSHEET_ID", ""),
		Type:          TenantLeaf,
	}

	general := Template{
		ID: "general",
		Fields: []Field{
			{ID: "subtitle", Type: "string"},
			{ID: "rulesUrl", Type: "url"},
			{ID: "streamUrl", Type: "url"},
		},
	}

	tournament := Template{
		ID: "tournament",
		Fields: []Field{
			{ID: "format", Type: "string", Required: true},
			{ID: "rulesUrl", Type: "url"},
			{ID: "prizePool", Type: "string"},
		},
	}

	return Snapshot{
		Tenants: map[string]Tenant{
			root.ID: root,
		},
		Templates: map[string]Template{
			general.ID:    general,
			tournament.ID: tournament,
		},
		Aliases: map[string]URLAlias{
			"status":   {Alias: "status", IsAPI: true, Target: "status"},
			"schedule": {Alias: "schedule", IsAPI: false, Target: "events"},
			"display":  {Alias: "display", IsAPI: false, Target: "display"},
			"poster":   {Alias: "poster", IsAPI: false, Target: "poster"},
		},
		AdminSecrets: map[string]string{
			root.ID: getEnv("ADMIN_SECRET", ""),
		},
		DisplayDefaults: DisplayDefaults{
			SponsorSlots: 4,
			RotationMs:   8000,
			HasSidePane:  true,
			Emphasis:     "hero",
		},
		TemplateDisplay: map[string]DisplayDefaults{
			tournament.ID: {
				SponsorSlots: 6,
				RotationMs:   6000,
				HasSidePane:  true,
				Emphasis:     "scores",
			},
		},
		Build: getEnv("BUILD_VERSION", "dev"),
	}
}
