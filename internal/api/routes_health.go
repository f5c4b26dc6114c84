package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/snippets/internal/app"
	"github.com/charlesng35/snippets/internal/handlers"
	"github.com/charlesng35/snippets/internal/monitoring"
	"github.com/charlesng35/snippets/pkg/errors"
	"github.com/charlesng35/snippets/pkg/response"
)

var errHealthDisabled = errors.ErrNotFound.WithMessage("health checks are disabled")

// registerHealthRoutes mounts the probes outside /api so load balancers can
// reach them without a token. When health reporting is off the paths still
// exist and answer 404.
func registerHealthRoutes(r *gin.Engine, cfg *app.Config, manager *monitoring.HealthManager) {
	routes := map[string]gin.HandlerFunc{}
	if cfg.Monitoring.Health.Enabled && manager != nil {
		handler := handlers.NewHealthHandler(manager)
		routes["/health"] = handler.Health
		routes["/health/live"] = handler.Liveness
		routes["/health/ready"] = handler.Readiness
	} else {
		disabled := func(c *gin.Context) { response.Error(c, errHealthDisabled) }
		for _, path := range []string{"/health", "/health/live", "/health/ready"} {
			routes[path] = disabled
		}
	}

	for path, handler := range routes {
		r.GET(path, handler)
	}
}
