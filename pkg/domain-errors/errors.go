// Package domainerrors provides coded errors for the service boundary.
//
// Stores and upstream clients return sentinel errors (pkg/platform/sentinel);
// services translate those facts into coded errors here, and handlers map
// codes onto HTTP statuses. Codes travel with the error through wrapping, so
// HasCode works at any depth.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a domain error.
type Code string

const (
	// CodeBadRequest marks malformed input rejected before any I/O, such as
	// an unparsable UUID or URL.
	CodeBadRequest Code = "bad_request"
	// CodeNotFound marks a missing record at the query surface.
	CodeNotFound Code = "not_found"
	// CodeNoResult marks an upstream that resolved no subject at all,
	// distinct from a subject with zero proofs.
	CodeNoResult Code = "no_result"
	// CodeUpstream marks a failed upstream call; the message carries the
	// upstream's own diagnostic text.
	CodeUpstream Code = "upstream_error"
	// CodeConflict marks a uniqueness violation surfaced to the caller.
	CodeConflict Code = "conflict"
	// CodeUnauthorized marks a missing or invalid credential.
	CodeUnauthorized Code = "unauthorized"
	// CodeInternal marks everything else; details stay in logs.
	CodeInternal Code = "internal"
)

// Error is a coded domain error. It may wrap an underlying cause.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New builds a coded error with no underlying cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf builds a coded error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err or anything it wraps carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf returns the code carried by err, or CodeInternal when none is.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// HTTPStatus maps a domain error onto an HTTP status code.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeBadRequest:
		return http.StatusBadRequest
	case CodeNotFound, CodeNoResult:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
