package api

import (
	"github.com/gin-gonic/gin"

	"github.com/xiaoyuanzhu-com/local-first-todo/feed"
)

// SetupRoutes configures all API routes
func SetupRoutes(r *gin.Engine, h *Handlers) {
	// API group
	api := r.Group("/api")

	api.GET("/health", h.Health)

	// Notifications (SSE)
	api.GET("/notifications/stream", h.NotificationStream)

	// Todo routes
	todos := api.Group("/todos", h.RequireReady())
	todos.GET("", h.ListTodos)
	todos.POST("", h.CreateTodo)
	todos.PUT("", h.UpdateTodo)
	todos.DELETE("", h.DeleteTodo)
	todos.GET("/live", h.TodosLive)

	// Change feed administration
	feedAdmin := api.Group("/feed", h.requireShape)
	feedAdmin.POST("/reset", h.ResetFeed)
	feedAdmin.POST("/compact", h.CompactFeed)

	// Change feed
	shape := r.Group(feed.ShapePath, h.requireShape)
	shape.GET("", h.ShapeRead)
	shape.GET("/ws", h.ShapeWebSocket)
}
