package errors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorType represents the type of error
type ErrorType string

const (
	ErrTypeValidation ErrorType = "VALIDATION"
	ErrTypeLookup     ErrorType = "LOOKUP"
	ErrTypeArithmetic ErrorType = "ARITHMETIC"
	ErrTypeAlignment  ErrorType = "ALIGNMENT"
	ErrTypeConfig     ErrorType = "CONFIG"
	ErrTypeParsing    ErrorType = "PARSING"
	ErrTypeStorage    ErrorType = "STORAGE"
	ErrTypeNetwork    ErrorType = "NETWORK"
	ErrTypeNotFound   ErrorType = "NOT_FOUND"
)

// AppError represents an application-specific error
type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap allows errors.Is and errors.As to work with AppError
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewAppError creates a new application error
func NewAppError(errType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// NewValidationError reports malformed input: empty panels, bad frequency,
// null values, non-positive horizons, out-of-range shares or weights.
func NewValidationError(format string, args ...interface{}) *AppError {
	return NewAppError(ErrTypeValidation, fmt.Sprintf(format, args...), nil)
}

// NewLookupError reports references to keys absent from a table. The missing
// keys are listed in sorted order in the message and stored under "missing".
func NewLookupError(what string, missing ...string) *AppError {
	keys := append([]string(nil), missing...)
	sort.Strings(keys)
	msg := fmt.Sprintf("missing %s: %s", what, strings.Join(keys, ", "))
	return NewAppError(ErrTypeLookup, msg, nil).WithContext("missing", keys)
}

// NewArithmeticError reports a violated numeric precondition.
func NewArithmeticError(format string, args ...interface{}) *AppError {
	return NewAppError(ErrTypeArithmetic, fmt.Sprintf(format, args...), nil)
}

// NewAlignmentError reports an empty intersection of time indices.
func NewAlignmentError(format string, args ...interface{}) *AppError {
	return NewAppError(ErrTypeAlignment, fmt.Sprintf(format, args...), nil)
}

// NewConfigError creates a configuration error
func NewConfigError(message string, cause error) *AppError {
	return NewAppError(ErrTypeConfig, message, cause)
}

// NewParsingError creates a parsing-related error
func NewParsingError(message string, cause error) *AppError {
	return NewAppError(ErrTypeParsing, message, cause)
}

// NewStorageError creates a storage-related error
func NewStorageError(message string, cause error) *AppError {
	return NewAppError(ErrTypeStorage, message, cause)
}

// NewNetworkError creates a network-related error
func NewNetworkError(message string, cause error) *AppError {
	return NewAppError(ErrTypeNetwork, message, cause)
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string) *AppError {
	return NewAppError(ErrTypeNotFound, fmt.Sprintf("%s not found", resource), nil)
}

// IsType reports whether err wraps an AppError of the given type.
func IsType(err error, errType ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == errType
	}
	return false
}

// TypeOf returns the type of the first AppError in err's chain, or "".
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ""
}
