package api

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/charlesng35/snippets/internal/app"
	"github.com/charlesng35/snippets/internal/handlers"
	"github.com/charlesng35/snippets/internal/middleware"
	"github.com/charlesng35/snippets/internal/monitoring"
)

// RouterOptions carries the infrastructure the router needs besides the services.
type RouterOptions struct {
	Config    *app.Config
	Health    *monitoring.HealthManager
	RateStore middleware.RateStore
}

// NewRouter builds the Gin engine, wires middleware and registers all routes.
func NewRouter(svc *Services, opts RouterOptions) (*gin.Engine, error) {
	if svc == nil {
		return nil, errors.New("api: services must be provided")
	}
	cfg := opts.Config
	if cfg == nil {
		return nil, errors.New("api: config must be provided")
	}

	r := gin.New()
	if err := r.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
		return nil, err
	}

	// Global middleware
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.Locale(svc.Catalog))
	if cfg.Server.RateLimit.Enabled {
		r.Use(middleware.RateLimit(opts.RateStore, cfg.Server.RateLimit.Requests, cfg.Server.RateLimit.Window))
	}

	registerHealthRoutes(r, cfg, opts.Health)
	authHandler := handlers.NewAuthHandler(svc.Local, svc.Sessions, svc.Users, svc.Checker, svc.Audit)
	registerPublicRoutes(r, handlers.NewSetupHandler(svc.Users), authHandler)

	api := r.Group("/api")
	api.Use(middleware.Auth(svc.JWT, svc.Sessions))

	registerAuthRoutes(api, authHandler)
	registerUserRoutes(api, handlers.NewUserHandler(svc.Users, svc.Sessions), svc.Checker)
	registerPermissionRoutes(api, handlers.NewPermissionHandler(svc.Checker), svc.Checker)
	registerTrackerRoutes(api, handlers.NewTrackerHandler(svc.Projects, svc.Bugs), svc.Checker)
	registerAuditRoutes(api, handlers.NewAuditHandler(svc.Audit), svc.Checker)
	securityHandler, err := handlers.NewSecurityHandler(svc.Security, svc.Audit)
	if err != nil {
		return nil, err
	}
	registerSecurityRoutes(api, securityHandler, svc.Checker)
	registerSnippetRoutes(api, handlers.NewSnippetHandler(svc.Snippets, svc.Access, svc.Users, svc.Catalog))
	registerPluginRoutes(api, handlers.NewPluginHandler(svc.Snippets, svc.Settings, svc.Access, svc.Users, svc.Bugs, svc.Catalog), svc.Checker)

	if cfg.Monitoring.Prometheus.Enabled {
		endpoint := strings.TrimSpace(cfg.Monitoring.Prometheus.Endpoint)
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
