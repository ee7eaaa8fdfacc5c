package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xiaoyuanzhu-com/local-first-todo/notifications"
)

// ResetFeed handles POST /api/feed/reset. Every subscriber is told to
// refetch, live readers included.
func (h *Handlers) ResetFeed(c *gin.Context) {
	handle, err := h.server.DB().RotateShapeHandle(c.Request.Context())
	if err != nil {
		shapeLogger.Error().Err(err).Msg("failed to reset feed")
		RespondInternalError(c, "Failed to reset feed")
		return
	}

	h.server.Notifications().Notify(notifications.Event{
		Type: notifications.EventFeedReset,
		Data: map[string]string{"handle": handle},
	})
	shapeLogger.Info().Str("handle", handle).Msg("feed reset")

	c.JSON(http.StatusOK, gin.H{"handle": handle})
}

// CompactFeed handles POST /api/feed/compact. Compaction runs on the
// worker, so the answer only means the pass was queued.
func (h *Handlers) CompactFeed(c *gin.Context) {
	h.server.Compactor().Nudge()
	c.JSON(http.StatusAccepted, SuccessResponse{Success: true})
}
