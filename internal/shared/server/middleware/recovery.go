package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"dsr-backend/internal/shared/server/respond"
	"dsr-backend/internal/shared/telemetry"
)

// Recovery turns a handler panic into a 500 failure envelope. When the
// response has already started, e.g. mid-download, the connection is only
// aborted. http.ErrAbortHandler is re-raised so net/http can drop the
// connection quietly.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
				panic(rec)
			}
			telemetry.Error("panic", map[string]any{
				"request_id": RequestIDFromContext(c),
				"route":      c.FullPath(),
				"method":     c.Request.Method,
				"error":      fmt.Sprint(rec),
				"stack":      string(debug.Stack()),
				"written":    c.Writer.Written(),
			})
			if c.Writer.Written() {
				c.Abort()
				return
			}
			respond.Error(c, http.StatusInternalServerError, respond.CodeInternal, "Unexpected server error", nil)
		}()
		c.Next()
	}
}
