package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/woodland-analytics/woodland-dash/internal/infrastructure/observability/performance"
)

// PerformanceMiddleware records one marker per routed request, named after
// the route pattern. Streaming routes are skipped.
func PerformanceMiddleware(perfTracker *performance.Tracker) gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" || strings.HasSuffix(route, "/ws") || strings.HasSuffix(route, "/stream") {
			c.Next()
			return
		}

		marker := perfTracker.StartOperation("http:"+c.Request.Method+" "+route, c.Param("id"))
		c.Next()

		status := c.Writer.Status()
		marker.AddMetadata("status", status)
		if status >= http.StatusInternalServerError {
			marker.SetError(fmt.Errorf("status %d", status))
		}
		perfTracker.CompleteOperation(marker)
	}
}
