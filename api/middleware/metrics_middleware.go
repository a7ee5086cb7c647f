// api/middleware/metrics_middleware.go
package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Annany2002/nebula-cms/internal/metrics"
)

// MetricsMiddleware counts requests by matched route pattern, not raw path.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		metrics.ObserveHTTP(c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}
