package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/xid"

	"github.com/charlesng35/snippets/internal/auditctx"
)

const (
	// RequestIDHeader carries the request identifier in both directions.
	RequestIDHeader = "X-Request-ID"
	CtxRequestIDKey = "requestID"

	maxRequestIDLength = 64
)

// RequestID tags each request with an identifier, reusing a sane inbound
// X-Request-ID when the caller supplies one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(RequestIDHeader))
		if id == "" || len(id) > maxRequestIDLength || !printable(id) {
			id = xid.New().String()
		}
		c.Set(CtxRequestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Request = c.Request.WithContext(auditctx.WithActor(c.Request.Context(), auditctx.Actor{
			IPAddress: c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
			RequestID: id,
		}))
		c.Next()
	}
}

func printable(s string) bool {
	for _, r := range s {
		if r < 0x21 || r > 0x7e {
			return false
		}
	}
	return true
}
