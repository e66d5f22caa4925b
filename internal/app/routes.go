package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/chronicle/internal/analytics"
	"github.com/keyxmakerx/chronicle/internal/auth"
	"github.com/keyxmakerx/chronicle/internal/bundle"
	"github.com/keyxmakerx/chronicle/internal/cache"
	"github.com/keyxmakerx/chronicle/internal/config"
	"github.com/keyxmakerx/chronicle/internal/csrf"
	"github.com/keyxmakerx/chronicle/internal/diag"
	"github.com/keyxmakerx/chronicle/internal/events"
	"github.com/keyxmakerx/chronicle/internal/formprovider"
	"github.com/keyxmakerx/chronicle/internal/lock"
	"github.com/keyxmakerx/chronicle/internal/qr"
	"github.com/keyxmakerx/chronicle/internal/ratelimit"
	"github.com/keyxmakerx/chronicle/internal/report"
	"github.com/keyxmakerx/chronicle/internal/router"
	"github.com/keyxmakerx/chronicle/internal/shortlink"
	"github.com/keyxmakerx/chronicle/internal/store"
)

// RegisterRoutes wires every domain service behind the Store, Cache, and
// Config Registry already attached to App, then registers the two-entry-
// point contract surface. This is the single place all services are
// constructed; when a new service is added, it's wired here.
func (a *App) RegisterRoutes() {
	e := a.Echo

	// --- Health check (no auth, no tenant) ---
	// Pings both MariaDB and Redis to report actual infrastructure health.
	// Registered on both /healthz (Kubernetes convention) and /health
	// (common alias).
	healthHandler := func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
		defer cancel()

		// Log full errors server-side but return only generic component
		// names to avoid leaking internal hostnames, ports, and driver
		// details.
		if err := a.DB.PingContext(ctx); err != nil {
			slog.Error("health check failed: mariadb", slog.Any("error", err))
			return c.JSON(http.StatusServiceUnavailable, map[string]string{
				"status": "unhealthy",
				"error":  "mariadb unavailable",
			})
		}
		if err := a.Redis.Ping(ctx).Err(); err != nil {
			slog.Error("health check failed: redis", slog.Any("error", err))
			return c.JSON(http.StatusServiceUnavailable, map[string]string{
				"status": "unhealthy",
				"error":  "redis unavailable",
			})
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	}
	e.GET("/healthz", healthHandler)
	e.GET("/health", healthHandler)

	// --- Store, Cache, process-wide lock ---
	sqlStore := store.NewSQL(a.DB)
	redisCache := cache.NewRedis(a.Redis)
	writeLock := lock.NewInMemory()

	// --- Config Registry ---
	registry := config.NewRegistry(config.Seed(a.Config))

	// --- Domain services ---
	qrRenderer := qr.Stub{}
	eventsSvc := events.New(sqlStore, registry, writeLock, redisCache, qrRenderer, a.Config.BaseURL)
	reportsSvc := report.New(sqlStore)
	bundlesSvc := bundle.New(eventsSvc, reportsSvc, sqlStore, registry)
	hostnameResolver := shortlink.HostnameResolver(func(host string) bool {
		_, ok := registry.Snapshot().TenantByHostname(host)
		return ok
	})
	shortlinksSvc := shortlink.New(sqlStore, a.Config.BaseURL, hostnameResolver, slog.Default())
	analyticsSvc := analytics.New(sqlStore)
	diagLogger := diag.New(sqlStore, redisCache, slog.Default())
	csrfManager := csrf.New(redisCache, writeLock, auth.GenerateUUIDv4)
	rateLimiter := ratelimit.New(redisCache)
	var forms formprovider.Provider = formprovider.Unconfigured{}

	rt := &router.Router{
		Registry:     registry,
		Events:       eventsSvc,
		Bundles:      bundlesSvc,
		Shortlinks:   shortlinksSvc,
		Analytics:    analyticsSvc,
		Reports:      reportsSvc,
		Diag:         diagLogger,
		CSRF:         csrfManager,
		RateLimit:    rateLimiter,
		Forms:        forms,
		BuildVersion: registry.Snapshot().Build,
		Ping: func(ctx context.Context) error {
			return a.DB.PingContext(ctx)
		},
	}
	rt.Register(e)
}
