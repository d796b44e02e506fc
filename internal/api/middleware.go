package api

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"custom-alerts-service/internal/logging"
	"custom-alerts-service/internal/metrics"
)

func RequestLoggingMiddleware(logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()
		metrics.HTTPRequestsTotal.WithLabelValues(method, c.FullPath(), strconv.Itoa(status)).Inc()
		logger.Infof("Request: %s %s, Status: %d, Latency: %v", method, path, status, latency)
	}
}
