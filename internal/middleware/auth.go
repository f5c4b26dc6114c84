package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/snippets/internal/auditctx"
	iauth "github.com/charlesng35/snippets/internal/auth"
	"github.com/charlesng35/snippets/pkg/errors"
	"github.com/charlesng35/snippets/pkg/response"
)

const (
	CtxClaimsKey    = "authClaims"
	CtxUserIDKey    = "userID"
	CtxSessionIDKey = "sessionID"
)

// SessionValidator reports whether the session behind an access token is still live.
type SessionValidator interface {
	ValidateSession(ctx context.Context, sessionID string) error
}

// Auth requires a valid bearer access token. With a non-nil sessions, a
// token whose refresh session was revoked or has expired is refused too.
// Every refusal is the same 401 so callers learn nothing about why.
func Auth(jwt *iauth.JWTService, sessions SessionValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			deny(c)
			return
		}

		claims, err := jwt.ValidateAccessToken(token)
		if err != nil {
			deny(c)
			return
		}
		if sessions != nil && claims.SessionID != "" {
			if err := sessions.ValidateSession(c.Request.Context(), claims.SessionID); err != nil {
				deny(c)
				return
			}
		}

		c.Set(CtxClaimsKey, claims)
		c.Set(CtxUserIDKey, claims.UserID)
		if claims.SessionID != "" {
			c.Set(CtxSessionIDKey, claims.SessionID)
		}

		// merged over the actor RequestID seeded, keeping its request id
		c.Request = c.Request.WithContext(auditctx.WithActor(c.Request.Context(), auditctx.Actor{
			UserID:    claims.UserID,
			Username:  claims.Username,
			SessionID: claims.SessionID,
			IPAddress: c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		}))
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func deny(c *gin.Context) {
	c.Header("WWW-Authenticate", `Bearer realm="snippets"`)
	response.Error(c, errors.ErrUnauthorized)
	c.Abort()
}
