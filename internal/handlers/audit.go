package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/snippets/internal/services"
	"github.com/charlesng35/snippets/pkg/errors"
	"github.com/charlesng35/snippets/pkg/response"
)

type AuditHandler struct {
	svc *services.AuditService
}

func NewAuditHandler(svc *services.AuditService) *AuditHandler {
	return &AuditHandler{svc: svc}
}

// GET /api/audit
func (h *AuditHandler) List(c *gin.Context) {
	page, per := pagination(c, 50)

	filters, err := auditFilters(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	logs, total, err := h.svc.List(requestContext(c), services.AuditListOptions{Page: page, PageSize: per, Filters: filters})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, logs, response.Paginate(page, per, total))
}

// GET /api/audit/summary
func (h *AuditHandler) Summary(c *gin.Context) {
	filters, err := auditFilters(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	summary, err := h.svc.Summary(requestContext(c), filters)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, summary)
}

func auditFilters(c *gin.Context) (services.AuditFilters, error) {
	filters := services.AuditFilters{
		UserID:       c.Query("user_id"),
		Action:       c.Query("action"),
		ActionPrefix: c.Query("action_prefix"),
		Result:       c.Query("result"),
		Resource:     c.Query("resource"),
	}

	for key, target := range map[string]**time.Time{"since": &filters.Since, "until": &filters.Until} {
		raw := c.Query(key)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filters, errors.NewBadRequest(key + " must be an RFC3339 timestamp")
		}
		*target = &t
	}
	return filters, nil
}
