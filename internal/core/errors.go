package core

import (
	"fmt"

	"github.com/pkg/errors"
)

// FieldError is used to indicate an error with a specific request field.
type FieldError struct {
	Field string
	Error string
}

// ValidationError is a rejected request body.
type ValidationError struct {
	Err    error
	Fields []FieldError
}

// NewValidationError creates a ValidationError with optional field errors.
func NewValidationError(msg string, flds ...FieldError) error {
	return &ValidationError{Err: errors.New(msg), Fields: flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

// Kind classifies domain errors for the HTTP layer.
type Kind int

const (
	KindNotFound Kind = iota + 1
	KindConflict
	KindForbidden
)

// Error is a domain failure the HTTP layer can translate to a status code.
// Details, when set, is rendered next to the message.
type Error struct {
	Kind    Kind
	Message string
	Details interface{}
}

func (e *Error) Error() string {
	return e.Message
}

// NotFound returns a KindNotFound error.
func NotFound(format string, args ...interface{}) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Forbidden returns a KindForbidden error.
func Forbidden(format string, args ...interface{}) error {
	return &Error{Kind: KindForbidden, Message: fmt.Sprintf(format, args...)}
}

// Conflict returns a KindConflict error carrying details for the response.
func Conflict(details interface{}, format string, args ...interface{}) error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...), Details: details}
}

// KindOf returns the Kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }
func IsConflict(err error) bool { return KindOf(err) == KindConflict }
