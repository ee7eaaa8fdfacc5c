package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xiaoyuanzhu-com/local-first-todo/log"
	"github.com/xiaoyuanzhu-com/local-first-todo/notifications"
)

var notifLogger = log.GetLogger("ApiNotifications")

// heartbeatInterval keeps idle SSE connections open through proxies
var heartbeatInterval = 30 * time.Second

func startSSE(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no") // Disable nginx buffering
}

func writeSSE(c *gin.Context, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		notifLogger.Error().Err(err).Msg("failed to marshal event")
		return
	}
	fmt.Fprintf(c.Writer, "data: %s\n\n", data)
	c.Writer.Flush()
}

func writeHeartbeat(c *gin.Context) {
	fmt.Fprintf(c.Writer, ": heartbeat\n\n")
	c.Writer.Flush()
}

// NotificationStream handles GET /api/notifications/stream (SSE)
func (h *Handlers) NotificationStream(c *gin.Context) {
	startSSE(c)

	// Subscribe to notifications
	events, unsubscribe := h.server.Notifications().Subscribe()
	defer unsubscribe()

	// Send initial connected event
	writeSSE(c, notifications.Event{
		Type:      notifications.EventConnected,
		Timestamp: time.Now().UnixMilli(),
	})

	notifLogger.Debug().Msg("client connected to notification stream")

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			writeSSE(c, event)

		case <-ticker.C:
			writeHeartbeat(c)

		case <-c.Request.Context().Done():
			notifLogger.Debug().Msg("client disconnected from notification stream")
			return

		case <-h.server.ShutdownContext().Done():
			return
		}
	}
}

// TodosLive handles GET /api/todos/live (SSE). Each event carries the full
// row list, newest first, sent on connect and after every change.
func (h *Handlers) TodosLive(c *gin.Context) {
	ctx := c.Request.Context()
	if _, err := h.server.LiveQuery().Current(ctx); err != nil {
		respondStoreError(c, err, "list todos")
		return
	}

	startSSE(c)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	// Monitor server shutdown
	go func() {
		select {
		case <-h.server.ShutdownContext().Done():
			cancel()
		case <-ctx.Done():
		}
	}()

	rows := h.server.LiveQuery().Subscribe(ctx)

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case todos, ok := <-rows:
			if !ok {
				return
			}
			writeSSE(c, todos)

		case <-ticker.C:
			writeHeartbeat(c)
		}
	}
}
