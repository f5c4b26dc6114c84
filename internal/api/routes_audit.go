package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/snippets/internal/handlers"
	"github.com/charlesng35/snippets/internal/middleware"
	"github.com/charlesng35/snippets/internal/permissions"
)

func registerAuditRoutes(api *gin.RouterGroup, handler *handlers.AuditHandler, checker *permissions.Checker) {
	audit := api.Group("/audit", middleware.RequirePermission(checker, "audit.view"))
	{
		audit.GET("", handler.List)
		audit.GET("/summary", handler.Summary)
	}
}

func registerSecurityRoutes(api *gin.RouterGroup, handler *handlers.SecurityHandler, checker *permissions.Checker) {
	api.GET("/security/audit", middleware.RequirePermission(checker, "security.audit"), handler.Audit)
}
