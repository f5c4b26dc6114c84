package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"syscall"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/snippets/pkg/metrics"
	"github.com/charlesng35/snippets/pkg/response"
)

func recoveryRouter(handler gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Recovery())
	r.GET("/snippets/:id", handler)
	return r
}

func TestRecoveryMiddleware(t *testing.T) {
	r := recoveryRouter(func(*gin.Context) { panic("boom") })
	counter := metrics.APIPanics.WithLabelValues(http.MethodGet, "/snippets/:id")
	before := testutil.ToFloat64(counter)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/snippets/42", nil))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	var payload response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	require.False(t, payload.Success)
	require.Equal(t, "INTERNAL_SERVER_ERROR", payload.Error.Code)
	require.NotContains(t, w.Body.String(), "boom")
	require.Equal(t, before+1, testutil.ToFloat64(counter))
}

func TestRecoveryKeepsPartialResponse(t *testing.T) {
	r := recoveryRouter(func(c *gin.Context) {
		c.String(http.StatusOK, "partial")
		panic("late")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/snippets/1", nil))

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "partial", w.Body.String())
}

func TestRecoveryIgnoresBrokenPipe(t *testing.T) {
	pipe := &net.OpError{Op: "write", Net: "tcp", Err: os.NewSyscallError("write", syscall.EPIPE)}
	for name, rec := range map[string]any{
		"broken pipe": pipe,
		"abort":       http.ErrAbortHandler,
	} {
		t.Run(name, func(t *testing.T) {
			r := recoveryRouter(func(*gin.Context) { panic(rec) })

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/snippets/1", nil))
			require.Empty(t, w.Body.String())
		})
	}
}

func TestBrokenPipeDetection(t *testing.T) {
	reset := &net.OpError{Op: "read", Net: "tcp", Err: os.NewSyscallError("read", syscall.ECONNRESET)}
	require.True(t, brokenPipe(reset))
	require.False(t, brokenPipe("boom"))
	require.False(t, brokenPipe(&net.OpError{Op: "dial", Net: "tcp", Err: os.ErrDeadlineExceeded}))
}

func TestNotFoundHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.NoRoute(NotFoundHandler)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/missing", nil))

	require.Equal(t, http.StatusNotFound, w.Code)
	var payload response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	require.False(t, payload.Success)
	require.Equal(t, "NOT_FOUND", payload.Error.Code)
	require.Contains(t, payload.Error.Message, "route DELETE /missing not found")
}
