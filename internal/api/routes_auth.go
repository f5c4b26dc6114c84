package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/snippets/internal/handlers"
)

// registerPublicRoutes mounts the endpoints reachable without a token.
func registerPublicRoutes(engine *gin.Engine, setup *handlers.SetupHandler, auth *handlers.AuthHandler) {
	public := engine.Group("/api")
	{
		public.GET("/setup/status", setup.Status)
		public.POST("/setup/initialize", setup.Initialize)
		public.POST("/auth/login", auth.Login)
		public.POST("/auth/refresh", auth.Refresh)
	}
}

func registerAuthRoutes(api *gin.RouterGroup, handler *handlers.AuthHandler) {
	api.GET("/auth/me", handler.Me)
	api.GET("/auth/sessions", handler.Sessions)
	api.POST("/auth/logout", handler.Logout)
	api.POST("/auth/password", handler.ChangePassword)
}
