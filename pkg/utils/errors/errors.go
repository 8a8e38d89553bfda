package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents the type of an error
type ErrorType uint

const (
	// ErrorTypeUnknown represents an unknown error
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeInvalidArgument represents an invalid argument error
	ErrorTypeInvalidArgument
	// ErrorTypeNotFound represents a not found error
	ErrorTypeNotFound
	// ErrorTypeInternal represents an internal error
	ErrorTypeInternal
	// ErrorTypeConfiguration represents an unusable weight or parameter configuration
	ErrorTypeConfiguration
	// ErrorTypeInsufficientData represents too few observations for an estimate
	ErrorTypeInsufficientData
	// ErrorTypeNumerical represents a failed numerical decomposition
	ErrorTypeNumerical
)

// String returns the name of the error type
func (t ErrorType) String() string {
	switch t {
	case ErrorTypeInvalidArgument:
		return "invalid_argument"
	case ErrorTypeNotFound:
		return "not_found"
	case ErrorTypeInternal:
		return "internal"
	case ErrorTypeConfiguration:
		return "configuration"
	case ErrorTypeInsufficientData:
		return "insufficient_data"
	case ErrorTypeNumerical:
		return "numerical"
	default:
		return "unknown"
	}
}

// AppError represents an application error
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
}

// Error returns the error message
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new error with the given message
func New(message string) error {
	return &AppError{
		Type:    ErrorTypeUnknown,
		Message: message,
	}
}

// Newf creates a new error with the given format and arguments
func Newf(format string, args ...interface{}) error {
	return &AppError{
		Type:    ErrorTypeUnknown,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an error with a message, keeping the type of the innermost AppError
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return &AppError{
		Type:    TypeOf(err),
		Message: message,
		Err:     err,
	}
}

// Wrapf wraps an error with a formatted message
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// Is reports whether err or any of the errors in its chain is target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// TypeOf returns the type of the first AppError in the chain
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrorTypeUnknown
}

// IsType reports whether the first AppError in err's chain has the given type
func IsType(err error, errType ErrorType) bool {
	return err != nil && TypeOf(err) == errType
}

// InvalidArgument creates a new InvalidArgument error
func InvalidArgument(message string) error {
	return &AppError{Type: ErrorTypeInvalidArgument, Message: message}
}

// InvalidArgumentf creates a new InvalidArgument error with a formatted message
func InvalidArgumentf(format string, args ...interface{}) error {
	return InvalidArgument(fmt.Sprintf(format, args...))
}

// NotFound creates a new NotFound error
func NotFound(message string) error {
	return &AppError{Type: ErrorTypeNotFound, Message: message}
}

// Internal creates a new Internal error
func Internal(message string) error {
	return &AppError{Type: ErrorTypeInternal, Message: message}
}

// Configuration creates a new Configuration error
func Configuration(message string) error {
	return &AppError{Type: ErrorTypeConfiguration, Message: message}
}

// Configurationf creates a new Configuration error with a formatted message
func Configurationf(format string, args ...interface{}) error {
	return Configuration(fmt.Sprintf(format, args...))
}

// InsufficientData creates a new InsufficientData error
func InsufficientData(message string) error {
	return &AppError{Type: ErrorTypeInsufficientData, Message: message}
}

// InsufficientDataf creates a new InsufficientData error with a formatted message
func InsufficientDataf(format string, args ...interface{}) error {
	return InsufficientData(fmt.Sprintf(format, args...))
}

// Numerical wraps a decomposition failure as a Numerical error
func Numerical(message string, err error) error {
	return &AppError{Type: ErrorTypeNumerical, Message: message, Err: err}
}

// Common error values
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrInternal     = errors.New("internal error")
)
