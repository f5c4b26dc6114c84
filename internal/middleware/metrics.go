package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/snippets/pkg/metrics"
)

// unmatchedRoute labels requests that reached NoRoute so arbitrary paths do
// not create new series.
const unmatchedRoute = "unmatched"

// Metrics records latency and in-flight gauges per route template.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		metrics.APIInFlight.Inc()
		defer metrics.APIInFlight.Dec()

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		status := strconv.Itoa(c.Writer.Status())
		metrics.APILatency.WithLabelValues(c.Request.Method, route, status).Observe(time.Since(start).Seconds())
	}
}
