package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/snippets/internal/handlers"
	"github.com/charlesng35/snippets/internal/middleware"
	"github.com/charlesng35/snippets/internal/permissions"
)

func registerTrackerRoutes(api *gin.RouterGroup, handler *handlers.TrackerHandler, checker *permissions.Checker) {
	projects := api.Group("/projects")
	{
		projects.GET("", middleware.RequirePermission(checker, "project.view"), handler.ListProjects)
		projects.POST("", middleware.RequirePermission(checker, "project.create"), handler.CreateProject)
		projects.GET("/:id", middleware.RequirePermission(checker, "project.view"), handler.GetProject)
	}

	bugs := api.Group("/bugs")
	{
		bugs.POST("", middleware.RequirePermission(checker, "bug.create"), handler.CreateBug)
		bugs.GET("/:id", middleware.RequirePermission(checker, "bug.view"), handler.GetBug)
	}
}
