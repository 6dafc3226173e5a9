package content

import (
	"errors"
	"fmt"
)

// Sentinels matched by *Error through errors.Is.
var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrUnknownCollection = errors.New("unknown collection")
)

// ErrorCode categorizes builder errors.
type ErrorCode string

const (
	// CodeInvalidArgument marks a bad operator, value, field, count or direction.
	CodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"

	// CodeUnknownCollection marks a collection missing from the manifest.
	CodeUnknownCollection ErrorCode = "UNKNOWN_COLLECTION"
)

// Error is a builder error. It is recorded by the call that caused it and
// returned by every terminal operation after that.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Op is the builder method that failed, e.g. "Where".
	Op string

	// Field is the field involved, when there is one.
	Field string

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s(%s): %s", e.Code, e.Op, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Code, e.Op, e.Message)
}

// Is matches the sentinel for the error's code.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrInvalidArgument:
		return e.Code == CodeInvalidArgument
	case ErrUnknownCollection:
		return e.Code == CodeUnknownCollection
	}
	return false
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsInvalidArgument returns true if err is an invalid argument error.
// Uses errors.Is to handle wrapped errors.
func IsInvalidArgument(err error) bool {
	return errors.Is(err, ErrInvalidArgument)
}

// IsUnknownCollection returns true if err reports a collection missing from
// the manifest.
func IsUnknownCollection(err error) bool {
	return errors.Is(err, ErrUnknownCollection)
}

func invalidArgument(op, field string, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    CodeInvalidArgument,
		Op:      op,
		Field:   field,
		Message: fmt.Sprintf(format, args...),
		Err:     cause,
	}
}
