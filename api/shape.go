package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"

	"github.com/xiaoyuanzhu-com/local-first-todo/feed"
	"github.com/xiaoyuanzhu-com/local-first-todo/log"
)

var shapeLogger = log.GetLogger("ApiShape")

// ShapeRead handles GET /v1/shape/todos (snapshot, catch-up and long-poll)
func (h *Handlers) ShapeRead(c *gin.Context) {
	req, err := feed.ParseRequest(c.Request.URL.Query())
	if err != nil {
		RespondBadRequest(c, err.Error())
		return
	}

	batch, err := h.server.Shape().Read(c.Request.Context(), req)
	if errors.Is(err, feed.ErrShutdown) {
		// Answer with what we have; the reader comes back after restart.
		err = nil
	}
	if err != nil {
		if c.Request.Context().Err() != nil {
			return
		}
		shapeLogger.Error().Err(err).Int64("offset", req.Offset).Msg("shape read failed")
		RespondInternalError(c, "Failed to read shape")
		return
	}

	if err := feed.WriteBatch(c.Writer, batch); err != nil {
		shapeLogger.Debug().Err(err).Msg("failed to write shape response")
	}
}

// ShapeWebSocket handles GET /v1/shape/todos/ws
func (h *Handlers) ShapeWebSocket(c *gin.Context) {
	req, err := feed.ParseRequest(c.Request.URL.Query())
	if err != nil {
		RespondBadRequest(c, err.Error())
		return
	}

	// Keep the request logger off the writer once it is hijacked
	log.MarkHijacked(c)

	// Gin's writer refuses to hijack once the 101 is written, so upgrade on
	// the underlying http.ResponseWriter
	var w http.ResponseWriter = c.Writer
	if unwrapper, ok := c.Writer.(interface{ Unwrap() http.ResponseWriter }); ok {
		w = unwrapper.Unwrap()
	}

	conn, err := websocket.Accept(w, c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		shapeLogger.Error().Err(err).Msg("shape websocket accept failed")
		return
	}
	defer conn.CloseNow()

	// Abort gin context to prevent middleware from writing to hijacked connection
	c.Abort()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// Monitor server shutdown
	go func() {
		select {
		case <-h.server.ShutdownContext().Done():
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := h.server.Shape().ServeWebSocket(ctx, conn, req); err != nil {
		shapeLogger.Warn().Err(err).Msg("shape websocket ended with error")
	}
}

// requireShape answers 404 on variants that keep no change log
func (h *Handlers) requireShape(c *gin.Context) {
	if h.server.Shape() == nil {
		RespondNotFound(c, "This server does not publish a change feed")
		return
	}
	c.Next()
}
