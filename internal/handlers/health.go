package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/snippets/internal/monitoring"
	"github.com/charlesng35/snippets/pkg/response"
)

// HealthHandler exposes liveness and readiness probes.
type HealthHandler struct {
	manager *monitoring.HealthManager
}

func NewHealthHandler(manager *monitoring.HealthManager) *HealthHandler {
	return &HealthHandler{manager: manager}
}

// GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	ctx := requestContext(c)
	report := monitoring.MergeReports(h.manager.EvaluateLiveness(ctx), h.manager.EvaluateReadiness(ctx))
	writeReport(c, report)
}

// GET /health/live
func (h *HealthHandler) Liveness(c *gin.Context) {
	writeReport(c, h.manager.EvaluateLiveness(requestContext(c)))
}

// GET /health/ready
func (h *HealthHandler) Readiness(c *gin.Context) {
	writeReport(c, h.manager.EvaluateReadiness(requestContext(c)))
}

// Degraded dependencies still answer 200; only a down component fails the probe.
func writeReport(c *gin.Context, report monitoring.HealthReport) {
	if report.Status == monitoring.StatusDown {
		c.JSON(http.StatusServiceUnavailable, response.Response{Success: false, Data: report})
		return
	}
	response.Success(c, http.StatusOK, report)
}
