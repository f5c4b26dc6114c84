package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/snippets/internal/handlers"
	"github.com/charlesng35/snippets/internal/middleware"
	"github.com/charlesng35/snippets/internal/permissions"
)

// Ownership and threshold checks for the management routes happen inside the
// handler because they depend on the snippet being addressed.
func registerSnippetRoutes(api *gin.RouterGroup, handler *handlers.SnippetHandler) {
	snippets := api.Group("/snippets")
	{
		snippets.GET("", handler.List)
		snippets.POST("", handler.Create)
		snippets.POST("/bulk-delete", handler.BulkDelete)
		snippets.GET("/:id", handler.Get)
		snippets.PATCH("/:id", handler.Update)
		snippets.DELETE("/:id", handler.Delete)
	}
}

func registerPluginRoutes(api *gin.RouterGroup, handler *handlers.PluginHandler, checker *permissions.Checker) {
	plugin := api.Group("/plugins/snippets")
	{
		plugin.GET("/help", handler.Help)
		plugin.GET("/data", handler.Data)
		plugin.GET("/data/:bug_id", handler.Data)
		plugin.GET("/menu", handler.Menu)

		manage := middleware.RequirePermission(checker, permissions.SnippetsEditGlobal)
		plugin.GET("/config", manage, handler.GetConfig)
		plugin.PUT("/config", manage, handler.UpdateConfig)
		plugin.DELETE("/config", manage, handler.ResetConfig)
	}
}
