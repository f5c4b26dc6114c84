package middleware

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/charlesng35/snippets/internal/permissions"
	"github.com/charlesng35/snippets/pkg/errors"
	"github.com/charlesng35/snippets/pkg/logger"
	"github.com/charlesng35/snippets/pkg/response"
)

// RequirePermission checks that the authenticated user has the provided permission ID.
// The checker records the outcome metrics.
func RequirePermission(checker *permissions.Checker, permissionID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString(CtxUserIDKey)
		if userID == "" {
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		allowed, err := checker.Check(c.Request.Context(), userID, permissionID)
		if err != nil {
			logger.WithModule("permissions").Warn("permission check failed",
				zap.String("permission", permissionID),
				zap.String("user_id", userID),
				zap.Error(err),
			)
			response.Error(c, errors.ErrForbidden)
			c.Abort()
			return
		}
		if !allowed {
			response.Error(c, errors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}
