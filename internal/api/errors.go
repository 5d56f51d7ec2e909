package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"soulmedia/internal/delivery"
	"soulmedia/internal/locks"
)

// Error codes returned in API error payloads.
const (
	ErrCodeInvalidRequest     = "ERR_INVALID_REQUEST"
	ErrCodeMissingField       = "ERR_MISSING_FIELD"
	ErrCodeUnauthorized       = "ERR_UNAUTHORIZED"
	ErrCodeForbidden          = "ERR_FORBIDDEN"
	ErrCodeNotFound           = "ERR_NOT_FOUND"
	ErrCodeSessionExpired     = "ERR_SESSION_EXPIRED"
	ErrCodeInternalError      = "ERR_INTERNAL_ERROR"
	ErrCodeServiceUnavailable = "ERR_SERVICE_UNAVAILABLE"

	ErrCodeGenerationFailed = "ERR_GENERATION_FAILED"
	ErrCodeLockTimeout      = "ERR_LOCK_TIMEOUT"
	ErrCodeRequestCancelled = "ERR_REQUEST_CANCELLED"
	ErrCodeTaskNotFound     = "ERR_TASK_NOT_FOUND"
	ErrCodeQueueFull        = "ERR_QUEUE_FULL"
)

// APIError is the unified error response body.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorResponse writes a uniform error payload.
func ErrorResponse(c *gin.Context, status int, code string, message string) {
	c.JSON(status, APIError{
		Code:    code,
		Message: message,
	})
}

// ErrorResponseWithDetails writes an error payload with extra details.
func ErrorResponseWithDetails(c *gin.Context, status int, code string, message string, details any) {
	c.JSON(status, APIError{
		Code:    code,
		Message: message,
		Details: details,
	})
}

// BadRequest writes a 400 response.
func BadRequest(c *gin.Context, code string, message string) {
	ErrorResponse(c, http.StatusBadRequest, code, message)
}

// Unauthorized writes a 401 response.
func Unauthorized(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// Forbidden writes a 403 response.
func Forbidden(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusForbidden, ErrCodeForbidden, message)
}

// NotFound writes a 404 response.
func NotFound(c *gin.Context, code string, message string) {
	ErrorResponse(c, http.StatusNotFound, code, message)
}

// InternalError writes a 500 response.
func InternalError(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusInternalServerError, ErrCodeInternalError, message)
}

// ServiceUnavailable writes a 503 response.
func ServiceUnavailable(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, message)
}

// MissingField writes a 400 response for an absent required field.
func MissingField(c *gin.Context, field string) {
	ErrorResponseWithDetails(c, http.StatusBadRequest, ErrCodeMissingField, field+" is required", gin.H{"field": field})
}

// InvalidPayload writes a 400 response for an unparseable request body.
func InvalidPayload(c *gin.Context) {
	ErrorResponse(c, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request payload")
}

// EngineError maps delivery-layer errors to HTTP responses.
func EngineError(c *gin.Context, err error) {
	var ve *delivery.ValidationError
	if errors.As(err, &ve) {
		ErrorResponseWithDetails(c, http.StatusBadRequest, ErrCodeInvalidRequest, ve.Error(), gin.H{"field": ve.Field})
		return
	}
	var nf *delivery.NotFoundError
	if errors.As(err, &nf) {
		NotFound(c, ErrCodeNotFound, nf.Error())
		return
	}
	var lt *locks.TimeoutError
	if errors.As(err, &lt) {
		ErrorResponse(c, http.StatusServiceUnavailable, ErrCodeLockTimeout, lt.Error())
		return
	}
	var be *delivery.BackendError
	if errors.As(err, &be) {
		logrus.WithError(err).Error("generation backend failure")
		ErrorResponse(c, http.StatusBadGateway, ErrCodeGenerationFailed, be.Error())
		return
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		ErrorResponse(c, http.StatusServiceUnavailable, ErrCodeRequestCancelled, "request cancelled")
		return
	}
	logrus.WithError(err).Error("unhandled engine error")
	InternalError(c, "internal error")
}
