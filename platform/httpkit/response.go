// Package httpkit provides HTTP response envelopes, error mapping, and
// shared middleware. This is part of the platform layer and contains no
// business logic.
package httpkit

import (
	"errors"
	"net/http"

	"leadmarket_backend/platform/apperr"

	"github.com/gin-gonic/gin"
)

// ErrorResponse is the error envelope every handler returns on failure.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// JSON writes the payload with the given status.
func JSON(c *gin.Context, status int, payload any) {
	c.JSON(status, payload)
}

// OK writes the payload with a 200 status.
func OK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

// Error writes an explicit error response.
func Error(c *gin.Context, status int, message string, details any) {
	c.JSON(status, ErrorResponse{Error: message, Details: details})
}

// HandleError writes the HTTP mapping of a service error and reports
// whether anything was written. Typed *apperr.Error values map through
// their Kind; untyped errors fall back to 400.
func HandleError(c *gin.Context, err error) bool {
	if err == nil {
		return false
	}

	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		c.JSON(appErr.HTTPStatus(), ErrorResponse{
			Error:   appErr.Message,
			Details: appErr.Details,
		})
		return true
	}

	c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	return true
}
