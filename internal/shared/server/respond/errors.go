package respond

import (
	"github.com/gin-gonic/gin"

	"dsr-backend/internal/shared/telemetry"
)

// Error codes returned in ErrorBody.Code.
const (
	CodeValidation   = "validation_error"
	CodeUnauthorized = "unauthorized"
	CodeAccessDenied = "access_denied"
	CodeInvalidPath  = "invalid_path"
	CodeNotFound     = "not_found"
	CodeRateLimited  = "rate_limited"
	CodeStorage      = "storage_error"
	CodeInternal     = "internal"
)

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorResponse struct {
	Success bool      `json:"success"`
	Error   ErrorBody `json:"error"`
}

// Error aborts the request with a failure envelope and logs it, at error
// level for 5xx and warn otherwise. message reaches the client verbatim and
// must not carry server paths or raw errors.
func Error(c *gin.Context, status int, code, message string, details any) {
	fields := map[string]any{
		"status":     status,
		"code":       code,
		"message":    message,
		"route":      c.FullPath(),
		"method":     c.Request.Method,
		"request_id": c.GetString("requestId"),
	}
	if userID := c.GetString("userId"); userID != "" {
		fields["user_id"] = userID
	}
	if status >= 500 {
		telemetry.Error("http.error", fields)
	} else {
		telemetry.Warn("http.error", fields)
	}

	c.AbortWithStatusJSON(status, ErrorResponse{
		Error: ErrorBody{Code: code, Message: message, Details: details},
	})
}
