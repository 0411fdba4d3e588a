// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// Codes are lowercase snake_case and stable; clients branch on them rather
// than on messages. Generic codes mirror HTTP status semantics, domain codes
// name a business rule the status alone cannot convey.
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "validation_failed",
//	  "field": "goals.target_salary",
//	  "message": "must be at least minimum_acceptable"
//	}
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeNotFound         = "not_found"
	ErrCodeConflict         = "conflict"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"

	// Domain-specific:
	ErrCodeValidation           = "validation_failed"
	ErrCodeVersionConflict      = "version_conflict"
	ErrCodeInvalidTransition    = "invalid_transition"
	ErrCodeSessionClosed        = "session_closed"
	ErrCodeBenchmarkUnavailable = "benchmark_unavailable"
)
