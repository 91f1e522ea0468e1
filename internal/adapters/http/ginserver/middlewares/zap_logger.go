package middlewares

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLogger writes one entry per request. Scrapes and health checks log at debug level.
func ZapLogger(l *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method
		uri := c.Request.RequestURI

		c.Next()

		level := zapcore.InfoLevel
		switch c.FullPath() {
		case "/metrics", "/ping":
			level = zapcore.DebugLevel
		}
		if status := c.Writer.Status(); status >= 500 {
			level = zapcore.WarnLevel
		}

		l.Log(level, "http_request",
			zap.String("method", method),
			zap.String("uri", uri),
			zap.Int("status", c.Writer.Status()),
			zap.Int("size", max(c.Writer.Size(), 0)),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
