// Package domainerrors defines the coded error type shared across services.
// Services return these so transports can translate them into consistent
// HTTP responses without inspecting error strings.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies a class of failure. Codes are part of the API contract:
// clients branch on them, so renaming one is a breaking change.
type Code string

const (
	// CodeBadRequest covers malformed input at the transport boundary.
	CodeBadRequest Code = "bad_request"

	// CodeInvalidRequest covers a blood request that violates a precondition,
	// e.g. missing location or zero units.
	CodeInvalidRequest Code = "invalid_request"

	// CodeNotMatched is returned when a donor acts on a request that was
	// never offered to them.
	CodeNotMatched Code = "not_matched"

	// CodeAlreadyResponded is returned on a duplicate donor response. The
	// message carries the prior match status so clients can surface it.
	CodeAlreadyResponded Code = "already_responded"

	// CodeInvalidTransition is returned when a lifecycle transition would
	// move a request backward or out of a terminal state.
	CodeInvalidTransition Code = "invalid_transition"

	// CodeConflict signals a concurrent modification detected at save time.
	// Callers may retry with a fresh load.
	CodeConflict Code = "conflict"

	CodeNotFound     Code = "not_found"
	CodeUnauthorized Code = "unauthorized"
	CodeForbidden    Code = "forbidden"
	CodeInternal     Code = "internal_error"
)

// Error is the coded error returned by domain services.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return string(e.Code) + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a coded error.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) error {
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf extracts the code from err, defaulting to CodeInternal for errors
// that did not originate in domain logic.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// ToHTTPStatus maps a code to the status the transport layer should write.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest, CodeInvalidRequest:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden, CodeNotMatched:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeAlreadyResponded, CodeInvalidTransition, CodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
