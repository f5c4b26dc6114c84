package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/snippets/internal/middleware"
	"github.com/charlesng35/snippets/internal/permissions"
	"github.com/charlesng35/snippets/pkg/errors"
	"github.com/charlesng35/snippets/pkg/response"
)

type PermissionHandler struct {
	checker *permissions.Checker
}

func NewPermissionHandler(checker *permissions.Checker) *PermissionHandler {
	return &PermissionHandler{checker: checker}
}

// GET /api/permissions/registry
func (h *PermissionHandler) Registry(c *gin.Context) {
	catalog, err := h.checker.Catalog(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, catalog)
}

// GET /api/permissions/my
func (h *PermissionHandler) MyPermissions(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}
	perms, err := h.checker.GetUserPermissions(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, perms)
}
