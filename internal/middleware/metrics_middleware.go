package middleware

import (
	"github.com/gin-gonic/gin"

	"workoutmap/backend/internal/metrics"
)

// Metrics counts requests by matched route so path parameters such as
// workout ids do not explode label cardinality.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.RecordRequest(c.Request.Method, route, c.Writer.Status())
	}
}
