package handlers

import (
	"context"
	stderrors "errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/snippets/internal/i18n"
	"github.com/charlesng35/snippets/internal/middleware"
	"github.com/charlesng35/snippets/internal/models"
	"github.com/charlesng35/snippets/internal/services"
	"github.com/charlesng35/snippets/pkg/errors"
)

// requestContext safely returns the request context with a background fallback for tests.
func requestContext(c *gin.Context) context.Context {
	if c == nil {
		return context.Background()
	}
	if req := c.Request; req != nil {
		return req.Context()
	}
	return context.Background()
}

// currentUser loads the authenticated account. Deleted or deactivated
// accounts holding a still-valid token are treated as unauthenticated.
func currentUser(c *gin.Context, users *services.UserService) (*models.User, error) {
	userID := strings.TrimSpace(c.GetString(middleware.CtxUserIDKey))
	if userID == "" {
		return nil, errors.ErrUnauthorized
	}
	user, err := users.GetByID(requestContext(c), userID)
	if err != nil {
		if stderrors.Is(err, services.ErrUserNotFound) {
			return nil, errors.ErrUnauthorized
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, errors.ErrUnauthorized
	}
	return user, nil
}

// localizer returns the request localizer, resolving one from the catalog
// when the Locale middleware did not run.
func localizer(c *gin.Context, catalog *i18n.Catalog) *i18n.Localizer {
	if loc := middleware.LocalizerFrom(c); loc != nil {
		return loc
	}
	return catalog.For(c.Query("lang"), c.GetHeader("Accept-Language"))
}
