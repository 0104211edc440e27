package errors

import (
	stderrors "errors"
	"fmt"
)

// AppError represents a structured application error
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates a new AppError
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new AppError with a formatted message
func Newf(code, format string, args ...interface{}) *AppError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap wraps an error with additional context. The code of a wrapped
// AppError is preserved.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return &AppError{
			Code:    appErr.Code,
			Message: message,
			Cause:   err,
		}
	}
	return &AppError{
		Code:    CodeInternalError,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an error with formatted additional context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// WithCode adds an error code to an existing error
func WithCode(code string, err error) error {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return &AppError{
			Code:    code,
			Message: appErr.Message,
			Cause:   appErr.Cause,
		}
	}
	return &AppError{
		Code:    code,
		Message: err.Error(),
		Cause:   err,
	}
}

// GetCode returns the code of the outermost AppError in the chain, or "UNKNOWN"
func GetCode(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return "UNKNOWN"
}

// HasCode reports whether any AppError in the chain carries code
func HasCode(err error, code string) bool {
	for err != nil {
		if appErr, ok := err.(*AppError); ok && appErr.Code == code {
			return true
		}
		err = stderrors.Unwrap(err)
	}
	return false
}

// Predefined error codes
const (
	// CodeConfiguration marks a filter or mapping that matched nothing.
	// The affected dataset run must halt.
	CodeConfiguration = "CONFIGURATION_ERROR"
	// CodeInsufficientData marks a sample, feature or fold with too few
	// measurements. The unit is skipped and counted.
	CodeInsufficientData = "INSUFFICIENT_DATA"
	// CodeDegenerateMatrix marks a rank-deficient design matrix.
	CodeDegenerateMatrix = "DEGENERATE_MATRIX"
	// CodeEmptyThresholdSet marks an enrichment without true positives.
	CodeEmptyThresholdSet = "EMPTY_THRESHOLD_SET"
	CodeInvalidInput      = "INVALID_INPUT"
	CodeInternalError     = "INTERNAL_ERROR"
)

// Common error constructors
func Configuration(format string, args ...interface{}) *AppError {
	return Newf(CodeConfiguration, format, args...)
}

func InsufficientData(format string, args ...interface{}) *AppError {
	return Newf(CodeInsufficientData, format, args...)
}

func DegenerateMatrix(format string, args ...interface{}) *AppError {
	return Newf(CodeDegenerateMatrix, format, args...)
}

func EmptyThresholdSet(format string, args ...interface{}) *AppError {
	return Newf(CodeEmptyThresholdSet, format, args...)
}

func InvalidInput(format string, args ...interface{}) *AppError {
	return Newf(CodeInvalidInput, format, args...)
}

func InternalError(message string) *AppError {
	return New(CodeInternalError, message)
}

// IsConfiguration reports whether err aborts a dataset run
func IsConfiguration(err error) bool { return HasCode(err, CodeConfiguration) }

// IsRecoverable reports whether err only excludes a single unit of work
func IsRecoverable(err error) bool {
	return HasCode(err, CodeInsufficientData) || HasCode(err, CodeDegenerateMatrix) || HasCode(err, CodeEmptyThresholdSet)
}
