package middleware

import (
	"time"

	"github.com/erp/customerdir/internal/infrastructure/metrics"
	"github.com/gin-gonic/gin"
)

// HTTPMetrics records request count, latency and in-flight requests on m.
// A nil m disables the middleware.
func HTTPMetrics(m *metrics.Metrics) gin.HandlerFunc {
	if m == nil {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return func(c *gin.Context) {
		start := time.Now()
		m.HTTPInFlight.Inc()
		defer m.HTTPInFlight.Dec()

		c.Next()

		m.ObserveRequest(c.Request.Method, getRoutePattern(c), c.Writer.Status(), time.Since(start).Seconds())
	}
}

// getRoutePattern returns the route pattern (e.g., "/api/v1/customers/:id")
// instead of the actual path to keep label cardinality bounded.
func getRoutePattern(c *gin.Context) string {
	route := c.FullPath()
	if route == "" {
		return "unknown"
	}
	return route
}
