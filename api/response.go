package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xiaoyuanzhu-com/local-first-todo/log"
	"github.com/xiaoyuanzhu-com/local-first-todo/models"
	"github.com/xiaoyuanzhu-com/local-first-todo/remote"
	"github.com/xiaoyuanzhu-com/local-first-todo/replica"
)

// =============================================================================
// Standard API Response Types
// =============================================================================
//
// Successful todo responses are the bare row or row list. Errors share one
// structure so clients can branch on the code.

// ErrorCode defines standard error codes for programmatic handling
type ErrorCode string

const (
	// Client errors (4xx)
	ErrCodeBadRequest ErrorCode = "BAD_REQUEST"      // 400 - Malformed request
	ErrCodeValidation ErrorCode = "VALIDATION_ERROR" // 400 - Validation failed
	ErrCodeNotFound   ErrorCode = "NOT_FOUND"        // 404 - Resource not found

	// Server errors (5xx)
	ErrCodeInternal           ErrorCode = "INTERNAL_ERROR"      // 500 - Unexpected error
	ErrCodeBadGateway         ErrorCode = "BAD_GATEWAY"         // 502 - Upstream rejected the write
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE" // 503 - Store not ready
)

// ErrorDetail provides additional context for validation errors
type ErrorDetail struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// ErrorResponse is the standard error response structure
type ErrorResponse struct {
	Error struct {
		Code    ErrorCode     `json:"code"`
		Message string        `json:"message"`
		Details []ErrorDetail `json:"details,omitempty"`
	} `json:"error"`
}

// SuccessResponse answers mutations that return no row
type SuccessResponse struct {
	Success bool `json:"success"`
}

// respondError is the internal helper for error responses
func respondError(c *gin.Context, status int, code ErrorCode, message string, details []ErrorDetail) {
	resp := ErrorResponse{}
	resp.Error.Code = code
	resp.Error.Message = message
	resp.Error.Details = details
	c.AbortWithStatusJSON(status, resp)
}

// RespondSuccess sends {"success": true}
func RespondSuccess(c *gin.Context) {
	c.JSON(http.StatusOK, SuccessResponse{Success: true})
}

// RespondBadRequest sends a 400 Bad Request error
func RespondBadRequest(c *gin.Context, message string) {
	respondError(c, http.StatusBadRequest, ErrCodeBadRequest, message, nil)
}

// RespondValidationError sends a 400 Bad Request with validation details
func RespondValidationError(c *gin.Context, message string, details []ErrorDetail) {
	respondError(c, http.StatusBadRequest, ErrCodeValidation, message, details)
}

// RespondNotFound sends a 404 Not Found error
func RespondNotFound(c *gin.Context, message string) {
	respondError(c, http.StatusNotFound, ErrCodeNotFound, message, nil)
}

// RespondInternalError sends a 500 Internal Server Error
func RespondInternalError(c *gin.Context, message string) {
	respondError(c, http.StatusInternalServerError, ErrCodeInternal, message, nil)
}

// RespondServiceUnavailable sends a 503 Service Unavailable error
func RespondServiceUnavailable(c *gin.Context, message string) {
	respondError(c, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, message, nil)
}

// respondStoreError maps a gateway error to a response. Anything that is
// not the caller's fault is logged and answered with a generic message.
func respondStoreError(c *gin.Context, err error, action string) {
	var apiErr *remote.APIError

	switch {
	case errors.Is(err, models.ErrEmptyTitle), errors.Is(err, models.ErrTitleTooLong):
		RespondValidationError(c, err.Error(), []ErrorDetail{{Field: "title", Message: err.Error()}})
	case errors.Is(err, models.ErrInvalidTodoID):
		RespondValidationError(c, err.Error(), []ErrorDetail{{Field: "id", Message: err.Error()}})
	case errors.Is(err, models.ErrTodoNotFound):
		RespondNotFound(c, "Todo not found")
	case errors.Is(err, replica.ErrNotReady), errors.Is(err, replica.ErrClosed):
		RespondServiceUnavailable(c, "Store is not ready")
	case errors.As(err, &apiErr) && apiErr.Status < http.StatusInternalServerError:
		// The upstream refused the write; pass its verdict through.
		code := ErrorCode(apiErr.Code)
		if code == "" {
			code = ErrCodeBadRequest
		}
		respondError(c, apiErr.Status, code, apiErr.Message, nil)
	case errors.As(err, &apiErr):
		log.Error().Err(err).Msg("failed to " + action)
		respondError(c, http.StatusBadGateway, ErrCodeBadGateway, "Upstream failed to "+action, nil)
	default:
		log.Error().Err(err).Msg("failed to " + action)
		RespondInternalError(c, "Failed to "+action)
	}
}
