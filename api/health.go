package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthResponse reports the variant and whether its store is usable
type HealthResponse struct {
	Status  string `json:"status"`
	Variant string `json:"variant"`
	Ready   bool   `json:"ready"`
	// Subscribers counts open notification streams
	Subscribers int `json:"subscribers"`
}

// Health handles GET /api/health. It answers 200 even when the store is
// not ready, so process supervisors can tell "starting" from "down".
func (h *Handlers) Health(c *gin.Context) {
	ready := h.server.Ready() == nil
	status := "ok"
	if !ready {
		status = "starting"
	}
	c.JSON(http.StatusOK, HealthResponse{
		Status:      status,
		Variant:     h.server.Config().Variant,
		Ready:       ready,
		Subscribers: h.server.Notifications().SubscriberCount(),
	})
}
