package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fieldops/geosync/internal/logger"
)

// RequestLogger logs each request with method, path, status, and
// duration. The metrics endpoint is excluded to keep scrape noise out
// of the logs.
func RequestLogger(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		log.Info("HTTP request",
			logger.String("method", c.Request.Method),
			logger.String("path", c.Request.URL.Path),
			logger.Int("status", c.Writer.Status()),
			logger.Duration("duration", time.Since(start)),
		)
	}
}
