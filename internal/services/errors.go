// Package services defines the business logic for negotiation sessions, the
// offer ledger and user analytics. This file centralizes common service-level
// error values so that they can be consistently returned by service methods
// and checked by callers.
//
// Translation into user-facing messages or HTTP status codes is performed at
// the handler layer.
package services

import (
	"errors"
	"fmt"
)

var (
	// ErrNegotiationNotFound indicates that the requested session does not
	// exist or is not accessible to the current user.
	ErrNegotiationNotFound = errors.New("negotiation not found")

	// ErrOfferNotFound indicates that the requested offer does not exist or
	// is not accessible to the current user.
	ErrOfferNotFound = errors.New("offer not found")

	// ErrItemNotFound indicates that a checklist item or exercise does not
	// exist within the session.
	ErrItemNotFound = errors.New("item not found")

	// ErrVersionConflict is returned when a session changed between read and
	// write. The client may re-read and retry.
	ErrVersionConflict = errors.New("negotiation was modified concurrently")

	// ErrInvalidTransition is returned for a status change the session or
	// offer state machine does not allow.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrSessionClosed is returned when content generation or ledger writes
	// target a session in a terminal state.
	ErrSessionClosed = errors.New("negotiation is closed")

	// ErrEmptyMessage is returned when a practice line is blank.
	ErrEmptyMessage = errors.New("message is empty")
)

// ValidationError reports a rejected input field. Err optionally carries the
// underlying cause so callers can still match it with errors.Is.
type ValidationError struct {
	Field string
	Msg   string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Msg: fmt.Sprintf(format, args...)}
}
