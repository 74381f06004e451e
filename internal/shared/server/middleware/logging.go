package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"dsr-backend/internal/shared/telemetry"
)

// FilePathKey is set by file handlers so the request log names the object touched.
const FilePathKey = "filePath"

// Logging emits a structured log per request.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		telemetry.Info("request.complete", map[string]any{
			"request_id":  RequestIDFromContext(c),
			"method":      c.Request.Method,
			"route":       c.FullPath(),
			"path":        c.Request.URL.Path,
			"status":      c.Writer.Status(),
			"duration_ms": float64(time.Since(start).Microseconds()) / 1000.0,
			"bytes":       c.Writer.Size(),
			"user_id":     UserIDFromContext(c),
			"file_path":   c.GetString(FilePathKey),
			"client_ip":   c.ClientIP(),
			"user_agent":  c.Request.UserAgent(),
		})
	}
}
