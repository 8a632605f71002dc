package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rlaxogns100-oss/uniroad-agent/internal/platform/ctxutil"
	"github.com/rlaxogns100-oss/uniroad-agent/internal/platform/logger"
)

// RequestLogger logs one structured line per request, tagging the
// principal when the auth middleware attached one (spec §4.9 logging).
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		fields := []interface{}{
			"method", strings.ToUpper(c.Request.Method),
			"path", path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if p, ok := ctxutil.GetPrincipal(c.Request.Context()); ok {
			fields = append(fields, "principal", p.ID)
		}

		status := c.Writer.Status()
		switch {
		case status >= 500:
			log.Error("http request", fields...)
		case status >= 400:
			log.Warn("http request", fields...)
		default:
			log.Info("http request", fields...)
		}
	}
}
