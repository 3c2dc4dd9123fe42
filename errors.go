package anecdote

import (
	"errors"
	"fmt"
)

// Application error codes.
const (
	ECONFIG   = "config"    // malformed URL template or invalid selector syntax
	EINTERNAL = "internal"  // internal error
	EINVALID  = "invalid"   // validation failed
	ENETWORK  = "network"   // transport failure or non-success response status
	ENOTFOUND = "not_found" // entity does not exist
)

// Error represents an application error. Errors carry a machine-readable
// code used for routing decisions (retry vs surface-only) and a
// human-readable message.
type Error struct {
	// Code is one of the application error codes above.
	Code string

	// Message is a human-readable description of the error.
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("anecdote error: code=%s message=%s", e.Code, e.Message)
}

// ErrorCode returns the code of the error, if available.
// Returns EINTERNAL for non-application errors and "" for nil.
func ErrorCode(err error) string {
	var e *Error
	if err == nil {
		return ""
	} else if errors.As(err, &e) {
		return e.Code
	}
	return EINTERNAL
}

// ErrorMessage returns the message of the error, if available.
// Returns a generic message for non-application errors and "" for nil.
func ErrorMessage(err error) string {
	var e *Error
	if err == nil {
		return ""
	} else if errors.As(err, &e) {
		return e.Message
	}
	return "Internal error."
}

// Errorf is a helper to construct an Error with formatting.
func Errorf(code string, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}
