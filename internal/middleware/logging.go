package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yigit/scms/internal/pkg/logger"
)

// RequestLogger logs one line per request through the application logger
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path = path + "?" + raw
		}

		c.Next()

		status := c.Writer.Status()
		event := logger.Info()
		switch {
		case status >= 500:
			event = logger.Error()
		case status >= 400:
			event = logger.Warn()
		}

		event.
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("clientIP", c.ClientIP()).
			Int64("userID", c.GetInt64(ContextUserID)).
			Msg("Request handled")
	}
}
