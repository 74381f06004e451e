package respond

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Envelope is the success shape of endpoints returning one resource.
type Envelope struct {
	Success bool `json:"success"`
	Data    any  `json:"data,omitempty"`
}

// JSON writes payload with the given status.
func JSON(c *gin.Context, status int, payload any) {
	c.JSON(status, payload)
}

// OK writes payload with 200.
func OK(c *gin.Context, payload any) {
	JSON(c, http.StatusOK, payload)
}

// Data wraps data in a success envelope and writes it with 200.
func Data(c *gin.Context, data any) {
	OK(c, Envelope{Success: true, Data: data})
}
