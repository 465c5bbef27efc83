package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies an error or warning category.
type Code string

const (
	CodeNotFound         Code = "not-found"
	CodeInvalidFilter    Code = "invalid-filter"
	CodeInvalidArguments Code = "invalid-arguments"
	CodeNothingRequested Code = "nothing-requested"
	CodeNotImplemented   Code = "not-implemented"
	CodeServerError      Code = "server-error"

	// Warning codes.
	CodeUnrecognizedFields    Code = "unrecognized-fields"
	CodeDuplicateArguments    Code = "duplicate-arguments"
	CodeIncompatibleArguments Code = "incompatible-arguments"
)

// Error is a typed API failure.
type Error struct {
	// Status is the HTTP status code the failure maps to.
	Status int

	// Code identifies the failure category.
	Code Code

	// Message is a human-readable description.
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

// New creates an Error with a formatted message.
func New(status int, code Code, format string, args ...any) *Error {
	return &Error{Status: status, Code: code, Message: fmt.Sprintf(format, args...)}
}

// NotFound creates a 404 not-found error.
func NotFound(format string, args ...any) *Error {
	return New(http.StatusNotFound, CodeNotFound, format, args...)
}

// InvalidFilter creates a 400 invalid-filter error.
func InvalidFilter(format string, args ...any) *Error {
	return New(http.StatusBadRequest, CodeInvalidFilter, format, args...)
}

// InvalidArguments creates a 400 invalid-arguments error.
func InvalidArguments(format string, args ...any) *Error {
	return New(http.StatusBadRequest, CodeInvalidArguments, format, args...)
}

// NothingRequested creates a 400 nothing-requested error.
func NothingRequested(format string, args ...any) *Error {
	return New(http.StatusBadRequest, CodeNothingRequested, format, args...)
}

// NotImplemented creates a 501 not-implemented error.
func NotImplemented(format string, args ...any) *Error {
	return New(http.StatusNotImplemented, CodeNotImplemented, format, args...)
}

// ServerError creates a 500 server-error.
func ServerError(format string, args ...any) *Error {
	return New(http.StatusInternalServerError, CodeServerError, format, args...)
}

// As returns err as an *Error. Errors that are not API errors (storage
// failures, context cancellation) become 500 server errors carrying the
// original message. As(nil) returns nil.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return ServerError("%s", err.Error())
}

// HasCode reports whether err is an *Error with the given code.
// Uses errors.As to handle wrapped errors.
func HasCode(err error, code Code) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code == code
	}
	return false
}

// IsNotFound returns true if err is a not-found error.
func IsNotFound(err error) bool { return HasCode(err, CodeNotFound) }

// IsInvalidFilter returns true if err is an invalid-filter error.
func IsInvalidFilter(err error) bool { return HasCode(err, CodeInvalidFilter) }

// IsNotImplemented returns true if err is a not-implemented error.
func IsNotImplemented(err error) bool { return HasCode(err, CodeNotImplemented) }

// IsServerError returns true if err is a server-error.
func IsServerError(err error) bool { return HasCode(err, CodeServerError) }
