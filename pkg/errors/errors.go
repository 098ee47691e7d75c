// Package errors provides structured error handling for the MemOS user store.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents specific error codes
type ErrorCode string

const (
	// Bootstrap errors
	ErrCodeConnectivity   ErrorCode = "CONNECTIVITY_ERROR"
	ErrCodeSchemaConflict ErrorCode = "SCHEMA_CONFLICT"

	// Row-level errors
	ErrCodeConstraintViolation ErrorCode = "CONSTRAINT_VIOLATION"
	ErrCodeNotFound            ErrorCode = "NOT_FOUND"
	ErrCodeAlreadyExists       ErrorCode = "ALREADY_EXISTS"

	// Input errors
	ErrCodeValidation ErrorCode = "VALIDATION_ERROR"

	// System errors
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// Error represents a structured error in the user store
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Cause   error     `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches errors by code so callers can use errors.Is against another
// structured error of the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !stderrors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// NewConnectivityError creates an error for an unreachable endpoint or
// rejected credentials.
func NewConnectivityError(message string, cause error) *Error {
	return &Error{Code: ErrCodeConnectivity, Message: message, Cause: cause}
}

// NewSchemaConflictError creates an error for an existing database object
// whose shape does not match the expected one.
func NewSchemaConflictError(message string, cause error) *Error {
	return &Error{Code: ErrCodeSchemaConflict, Message: message, Cause: cause}
}

// NewConstraintViolationError creates an error for a rejected row operation
// (uniqueness, referential integrity, primary key).
func NewConstraintViolationError(message string, cause error) *Error {
	return &Error{Code: ErrCodeConstraintViolation, Message: message, Cause: cause}
}

// NewNotFoundError creates an error for a missing row
func NewNotFoundError(message string) *Error {
	return &Error{Code: ErrCodeNotFound, Message: message}
}

// NewAlreadyExistsError creates an error for a duplicate row
func NewAlreadyExistsError(message string, cause error) *Error {
	return &Error{Code: ErrCodeAlreadyExists, Message: message, Cause: cause}
}

// NewValidationError creates an error for invalid input
func NewValidationError(message string) *Error {
	return &Error{Code: ErrCodeValidation, Message: message}
}

// NewInternalError creates an error for unexpected failures
func NewInternalError(message string, cause error) *Error {
	return &Error{Code: ErrCodeInternal, Message: message, Cause: cause}
}

// IsConnectivity reports whether err is a connectivity error
func IsConnectivity(err error) bool {
	return hasCode(err, ErrCodeConnectivity)
}

// IsSchemaConflict reports whether err is a schema conflict error
func IsSchemaConflict(err error) bool {
	return hasCode(err, ErrCodeSchemaConflict)
}

// IsConstraintViolation reports whether err is a constraint violation
func IsConstraintViolation(err error) bool {
	return hasCode(err, ErrCodeConstraintViolation)
}

// IsNotFound reports whether err is a not-found error
func IsNotFound(err error) bool {
	return hasCode(err, ErrCodeNotFound)
}

// IsAlreadyExists reports whether err is a duplicate error
func IsAlreadyExists(err error) bool {
	return hasCode(err, ErrCodeAlreadyExists)
}

// IsValidation reports whether err is a validation error
func IsValidation(err error) bool {
	return hasCode(err, ErrCodeValidation)
}

func hasCode(err error, code ErrorCode) bool {
	var e *Error
	if !stderrors.As(err, &e) {
		return false
	}
	return e.Code == code
}

// GetCode returns the error code of err, or ErrCodeInternal if err is not a
// structured error.
func GetCode(err error) ErrorCode {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return ErrCodeInternal
}
