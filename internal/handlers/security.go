package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/snippets/internal/middleware"
	"github.com/charlesng35/snippets/internal/security"
	"github.com/charlesng35/snippets/internal/services"
	"github.com/charlesng35/snippets/pkg/response"
	appValidator "github.com/charlesng35/snippets/pkg/validator"
)

// SecurityHandler serves the configuration security audit.
type SecurityHandler struct {
	checks *security.AuditService
	audit  *services.AuditService
}

// NewSecurityHandler constructs a SecurityHandler. audit may be nil, in which
// case audit runs are not recorded.
func NewSecurityHandler(checks *security.AuditService, audit *services.AuditService) (*SecurityHandler, error) {
	if checks == nil {
		return nil, errors.New("security handler: audit service is required")
	}
	return &SecurityHandler{checks: checks, audit: audit}, nil
}

// GET /api/security/audit?status=fail|warn|pass
func (h *SecurityHandler) Audit(c *gin.Context) {
	filter := security.CheckStatus(strings.ToLower(strings.TrimSpace(c.Query("status"))))
	if err := appValidator.Var("status", string(filter), "omitempty,oneof=pass warn fail"); err != nil {
		response.Error(c, validationError(err))
		return
	}

	ctx := requestContext(c)
	result := h.checks.Run(ctx)

	if h.audit != nil {
		entry := services.AuditEntry{
			Action:    "security.audit",
			Resource:  "system",
			Result:    "success",
			IPAddress: c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
			Metadata: map[string]any{
				"fail": result.Summary[string(security.StatusFail)],
				"warn": result.Summary[string(security.StatusWarn)],
			},
		}
		if id := c.GetString(middleware.CtxUserIDKey); id != "" {
			entry.UserID = &id
		}
		_ = h.audit.Log(ctx, entry)
	}

	if filter != "" {
		kept := result.Checks[:0]
		for _, check := range result.Checks {
			if check.Status == filter {
				kept = append(kept, check)
			}
		}
		result.Checks = kept
	}
	response.Success(c, http.StatusOK, result)
}
