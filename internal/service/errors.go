package service

import (
	"errors"
	"fmt"
)

// ErrorCode classifies core failures so callers can map them to transport
// semantics without string matching.
type ErrorCode string

const (
	CodeValidation        ErrorCode = "VALIDATION_ERROR"
	CodeInvalidTransition ErrorCode = "INVALID_TRANSITION"
	CodeTerminalState     ErrorCode = "TERMINAL_STATE"
	CodeNotFound          ErrorCode = "NOT_FOUND"
	CodeCapacityExceeded  ErrorCode = "CAPACITY_EXCEEDED"
	CodeUnderflow         ErrorCode = "OCCUPANCY_UNDERFLOW"
	CodeNotActive         ErrorCode = "ALERT_NOT_ACTIVE"
)

// Error is a typed core error. A failed operation leaves every invariant
// intact; the core never retries on the caller's behalf.
type Error struct {
	Code    ErrorCode
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newError(code ErrorCode, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// IsCode reports whether err carries the given core error code.
func IsCode(err error, code ErrorCode) bool {
	var ce *Error
	return errors.As(err, &ce) && ce.Code == code
}

// CodeOf extracts the core error code, or "" for foreign errors.
func CodeOf(err error) ErrorCode {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}
