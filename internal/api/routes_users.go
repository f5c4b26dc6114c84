package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/snippets/internal/handlers"
	"github.com/charlesng35/snippets/internal/middleware"
	"github.com/charlesng35/snippets/internal/permissions"
)

func registerUserRoutes(api *gin.RouterGroup, handler *handlers.UserHandler, checker *permissions.Checker) {
	users := api.Group("/users")
	{
		users.GET("", middleware.RequirePermission(checker, "user.view"), handler.List)
		users.POST("", middleware.RequirePermission(checker, "user.manage"), handler.Create)
		users.GET("/:id", middleware.RequirePermission(checker, "user.view"), handler.Get)
		users.PATCH("/:id", middleware.RequirePermission(checker, "user.manage"), handler.Update)
		users.DELETE("/:id", middleware.RequirePermission(checker, "user.manage"), handler.Delete)
		users.POST("/:id/password", middleware.RequirePermission(checker, "user.manage"), handler.ResetPassword)
		users.POST("/:id/unlock", middleware.RequirePermission(checker, "user.manage"), handler.Unlock)
	}
}

func registerPermissionRoutes(api *gin.RouterGroup, handler *handlers.PermissionHandler, checker *permissions.Checker) {
	perms := api.Group("/permissions")
	{
		perms.GET("/registry", middleware.RequirePermission(checker, "user.view"), handler.Registry)
		perms.GET("/my", handler.MyPermissions)
	}
}
