// Package domainerrors carries the error taxonomy shared by services and the
// HTTP layer. Services return *Error values; transport maps Code to a status.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain failure.
type Code string

const (
	// CodeMalformed is a request whose shape is wrong before any field is looked at.
	CodeMalformed Code = "malformed_request"
	// CodeValidation is a single field failing its rule. Field names the offender.
	CodeValidation Code = "validation_error"
	// CodeStructural covers relation-level violations: self-relatives,
	// unknown relatives, batch-wide asymmetry.
	CodeStructural Code = "structural_error"
	// CodeNotFound is an unknown import or citizen id.
	CodeNotFound Code = "not_found"
	// CodeInternal is any infrastructure failure.
	CodeInternal Code = "internal_error"
)

// Error is a coded domain error. Field is set for CodeValidation.
type Error struct {
	Code    Code
	Message string
	Field   string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Field != "" {
		msg = e.Field + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a coded error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying cause.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// Field creates a validation error naming the offending field.
func Field(field, message string) *Error {
	return &Error{Code: CodeValidation, Field: field, Message: message}
}

// CodeOf returns the code of the first *Error in err's chain, or CodeInternal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

// FieldOf returns the offending field name of a validation error, if any.
func FieldOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Field
	}
	return ""
}
