// Package apperr defines the application error taxonomy shared by services
// and handlers. Services return these; the HTTP layer maps them to status
// codes in one place and never leaks provider internals to clients.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindValidation Kind = iota
	KindAuthorization
	KindNotFound
	KindGateway
	KindConflict
	KindState
	KindInternal
)

type Error struct {
	Kind    Kind
	Code    string // stable machine-readable code
	Message string // human-readable, safe for clients
	Err     error  // wrapped cause, logged but not returned to clients
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(code, message string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: message}
}

func Authorization(code, message string) *Error {
	return &Error{Kind: KindAuthorization, Code: code, Message: message}
}

func NotFound(code, message string) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: message}
}

// Gateway wraps an upstream provider failure. Retryable from the caller's
// point of view; the raw cause stays in logs.
func Gateway(code, message string, err error) *Error {
	return &Error{Kind: KindGateway, Code: code, Message: message, Err: err}
}

// Conflict marks a state-machine transition rejected because the record is
// already terminal with a different outcome.
func Conflict(code, message string) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: message}
}

// State marks an operation invalid for the record's current status, e.g.
// refunding a pending payment.
func State(code, message string) *Error {
	return &Error{Kind: KindState, Code: code, Message: message}
}

func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Code: "internal_error", Message: "internal error", Err: err}
}

// KindOf extracts the Kind from any error; unknown errors are internal.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

func IsKind(err error, k Kind) bool {
	return KindOf(err) == k
}

// HTTPStatus maps an error onto an HTTP status by its Kind.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuthorization:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindState:
		return http.StatusUnprocessableEntity
	case KindGateway:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
