package middleware

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "github.com/charlesng35/snippets/pkg/errors"
	"github.com/charlesng35/snippets/pkg/logger"
	"github.com/charlesng35/snippets/pkg/metrics"
	"github.com/charlesng35/snippets/pkg/response"
)

// Recovery turns handler panics into the JSON 500 envelope. A client that
// hung up mid-response is logged at warn level and left alone.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}

			route := c.FullPath()
			if route == "" {
				route = unmatchedRoute
			}
			log := logger.WithModule("http").With(
				zap.String("method", c.Request.Method),
				zap.String("route", route),
				zap.String("request_id", c.GetString(CtxRequestIDKey)),
				zap.String("user_id", c.GetString(CtxUserIDKey)),
			)

			if brokenPipe(rec) {
				log.Warn("client connection lost", zap.Any("error", rec))
				_ = c.Error(fmt.Errorf("%v", rec))
				c.Abort()
				return
			}

			metrics.APIPanics.WithLabelValues(c.Request.Method, route).Inc()
			log.Error("panic", zap.Any("error", rec), zap.Stack("stack"))
			if c.Writer.Written() {
				c.Abort()
				return
			}
			response.Error(c, apperrors.ErrInternalServer)
			c.Abort()
		}()
		c.Next()
	}
}

func brokenPipe(rec any) bool {
	err, ok := rec.(error)
	if !ok {
		return false
	}
	if errors.Is(err, http.ErrAbortHandler) {
		return true
	}
	var opErr *net.OpError
	if !errors.As(err, &opErr) {
		return false
	}
	var sysErr *os.SyscallError
	if !errors.As(opErr, &sysErr) {
		return false
	}
	msg := strings.ToLower(sysErr.Error())
	return strings.Contains(msg, "broken pipe") || strings.Contains(msg, "connection reset by peer")
}

// NotFoundHandler answers unknown routes with the JSON 404 envelope.
func NotFoundHandler(c *gin.Context) {
	response.Error(c, apperrors.ErrNotFound.WithMessage(fmt.Sprintf("route %s %s not found", c.Request.Method, c.Request.URL.Path)))
}
