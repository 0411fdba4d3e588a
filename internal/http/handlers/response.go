// Package handlers provides HTTP handler implementations for the public API.
//
// This file defines the response utilities shared by all endpoints: the error
// envelope, the mapping from service errors to status codes, and small
// helpers for success responses.
//
// Example error response:
//
//	HTTP/1.1 409 Conflict
//	Retry-After: 0
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "version_conflict",
//	  "message": "negotiation was modified concurrently"
//	}
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-negotiation-backend/internal/benchmark"
	"github.com/tbourn/go-negotiation-backend/internal/http/middleware"
	"github.com/tbourn/go-negotiation-backend/internal/services"
)

// ErrorResponse is the standard error envelope returned by all endpoints.
type ErrorResponse struct {
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go constants)
	Code string `json:"code" example:"not_found"`
	// Offending input field for validation_failed
	Field string `json:"field,omitempty" example:"goals.target_salary"`
	// Human-readable message (safe to show to users)
	Message string `json:"message" example:"resource not found"`
}

// fail aborts the request with a structured error and logs server-side errors.
func fail(c *gin.Context, status int, code, msg string) {
	failField(c, status, code, "", msg)
}

func failField(c *gin.Context, status int, code, field, msg string) {
	resp := ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Field:     field,
		Message:   msg,
	}

	if status >= http.StatusInternalServerError {
		lg := middleware.LoggerFrom(c)
		lg.Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}

	c.AbortWithStatusJSON(status, resp)
}

// Fail is the exported variant of fail() for router-level fallbacks.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// failErr translates a service error into the matching envelope. Unknown
// errors become a 500 whose detail is logged but not echoed.
func failErr(c *gin.Context, err error) {
	var ve *services.ValidationError
	switch {
	case errors.As(err, &ve):
		failField(c, http.StatusBadRequest, ErrCodeValidation, ve.Field, ve.Msg)
	case errors.Is(err, services.ErrEmptyMessage):
		failField(c, http.StatusBadRequest, ErrCodeValidation, "message", err.Error())
	case errors.Is(err, services.ErrNegotiationNotFound),
		errors.Is(err, services.ErrOfferNotFound),
		errors.Is(err, services.ErrItemNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
	case errors.Is(err, benchmark.ErrNotFound), errors.Is(err, benchmark.ErrUnavailable):
		fail(c, http.StatusNotFound, ErrCodeBenchmarkUnavailable, "no market data for this combination")
	case errors.Is(err, services.ErrVersionConflict):
		c.Header("Retry-After", "0")
		fail(c, http.StatusConflict, ErrCodeVersionConflict, err.Error())
	case errors.Is(err, services.ErrInvalidTransition):
		fail(c, http.StatusConflict, ErrCodeInvalidTransition, err.Error())
	case errors.Is(err, services.ErrSessionClosed):
		fail(c, http.StatusConflict, ErrCodeSessionClosed, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		fail(c, http.StatusGatewayTimeout, ErrCodeInternal, "request timed out")
	default:
		middleware.LoggerFrom(c).Error().Err(err).Msg("unhandled service error")
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "internal error")
	}
}

// ok writes a success JSON response.
func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

// noContent writes an HTTP 204 No Content response.
func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
