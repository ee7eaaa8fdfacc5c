package api

import (
	"github.com/gin-gonic/gin"
)

// RequireReady answers 503 until the server's store can be used
func (h *Handlers) RequireReady() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.server.Ready(); err != nil {
			RespondServiceUnavailable(c, "Store is not ready")
			return
		}
		c.Next()
	}
}
