package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xiaoyuanzhu-com/local-first-todo/log"
)

var todosLogger = log.GetLogger("ApiTodos")

// ListTodos handles GET /api/todos
func (h *Handlers) ListTodos(c *gin.Context) {
	todos, err := h.server.Gateway().List(c.Request.Context())
	if err != nil {
		respondStoreError(c, err, "list todos")
		return
	}
	c.JSON(http.StatusOK, todos)
}

// CreateTodo handles POST /api/todos
func (h *Handlers) CreateTodo(c *gin.Context) {
	var body struct {
		Title string `json:"title"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondBadRequest(c, "Invalid request body")
		return
	}

	todo, err := h.server.Gateway().Insert(c.Request.Context(), body.Title)
	if err != nil {
		respondStoreError(c, err, "create todo")
		return
	}

	todosLogger.Debug().Int64("id", todo.ID).Msg("todo created")
	c.JSON(http.StatusOK, todo)
}

// UpdateTodo handles PUT /api/todos
func (h *Handlers) UpdateTodo(c *gin.Context) {
	var body struct {
		ID        int64 `json:"id"`
		Completed *bool `json:"completed"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondBadRequest(c, "Invalid request body")
		return
	}
	if body.Completed == nil {
		RespondValidationError(c, "completed is required", []ErrorDetail{{Field: "completed", Message: "required"}})
		return
	}

	todo, err := h.server.Gateway().Update(c.Request.Context(), body.ID, *body.Completed)
	if err != nil {
		respondStoreError(c, err, "update todo")
		return
	}
	c.JSON(http.StatusOK, todo)
}

// DeleteTodo handles DELETE /api/todos
func (h *Handlers) DeleteTodo(c *gin.Context) {
	var body struct {
		ID int64 `json:"id"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondBadRequest(c, "Invalid request body")
		return
	}

	if err := h.server.Gateway().Delete(c.Request.Context(), body.ID); err != nil {
		respondStoreError(c, err, "delete todo")
		return
	}
	RespondSuccess(c)
}
