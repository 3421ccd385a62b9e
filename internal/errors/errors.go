// Package errors provides unified error handling across prompthive.
//
// Every failure the store, resolver and sync engine report is an *AppError
// carrying one of the codes below. Callers branch on codes with Is, never on
// message text. Handlers in handlers.go turn AppErrors into terminal output
// or HTTP responses.
package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorCode represents standardized error codes
type ErrorCode string

const (
	// Resolution / lookup
	ErrCodeNotFound      ErrorCode = "NOT_FOUND"
	ErrCodeAmbiguous     ErrorCode = "AMBIGUOUS"
	ErrCodeAlreadyExists ErrorCode = "ALREADY_EXISTS"
	ErrCodeNotEmpty      ErrorCode = "NOT_EMPTY"

	// Validation
	ErrCodeInvalidKey   ErrorCode = "INVALID_KEY"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"

	// Replica mismatch
	ErrCodeConflict ErrorCode = "CONFLICT"

	// Storage
	ErrCodeStorageFailure ErrorCode = "STORAGE_FAILURE"

	// Remote store
	ErrCodeRemoteFailure ErrorCode = "REMOTE_FAILURE"
	ErrCodeParseFailure  ErrorCode = "PARSE_FAILURE"
	ErrCodeUnauthorized  ErrorCode = "UNAUTHORIZED"

	ErrCodeInternalError ErrorCode = "INTERNAL_ERROR"
)

// ErrorSeverity represents the severity level of an error
type ErrorSeverity string

const (
	SeverityInfo     ErrorSeverity = "info"
	SeverityWarning  ErrorSeverity = "warning"
	SeverityError    ErrorSeverity = "error"
	SeverityCritical ErrorSeverity = "critical"
)

// ErrorCategory represents the category of an error
type ErrorCategory string

const (
	CategoryValidation ErrorCategory = "validation"
	CategoryResolution ErrorCategory = "resolution"
	CategoryStorage    ErrorCategory = "storage"
	CategoryRemote     ErrorCategory = "remote"
	CategorySync       ErrorCategory = "sync"
	CategorySystem     ErrorCategory = "system"
)

// AppError represents a standardized application error
type AppError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Severity  ErrorSeverity          `json:"severity"`
	Category  ErrorCategory          `json:"category"`
	Cause     error                  `json:"-"`
	Context   map[string]interface{} `json:"context,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Retryable bool                   `json:"retryable"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Details != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Details)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// IsRetryable returns whether the error is retryable
func (e *AppError) IsRetryable() bool {
	return e.Retryable
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithDetails adds details to the error
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// NewAppError creates a new application error
func NewAppError(code ErrorCode, message string) *AppError {
	category, severity := categorizeError(code)
	return &AppError{
		Code:      code,
		Message:   message,
		Severity:  severity,
		Category:  category,
		Timestamp: time.Now(),
		Retryable: isRetryable(code),
	}
}

// Wrap wraps an existing error with application error context
func Wrap(err error, code ErrorCode, message string) *AppError {
	appErr := NewAppError(code, message)
	appErr.Cause = err
	return appErr
}

// categorizeError determines the category and severity based on error code
func categorizeError(code ErrorCode) (ErrorCategory, ErrorSeverity) {
	switch code {
	case ErrCodeInvalidKey, ErrCodeInvalidInput:
		return CategoryValidation, SeverityWarning
	case ErrCodeNotFound:
		return CategoryResolution, SeverityInfo
	case ErrCodeAmbiguous, ErrCodeAlreadyExists, ErrCodeNotEmpty:
		return CategoryResolution, SeverityWarning
	case ErrCodeConflict:
		return CategorySync, SeverityWarning
	case ErrCodeStorageFailure:
		return CategoryStorage, SeverityError
	case ErrCodeRemoteFailure, ErrCodeParseFailure, ErrCodeUnauthorized:
		return CategoryRemote, SeverityError
	case ErrCodeInternalError:
		return CategorySystem, SeverityCritical
	default:
		return CategorySystem, SeverityError
	}
}

// isRetryable determines if an error is retryable based on its code
func isRetryable(code ErrorCode) bool {
	switch code {
	case ErrCodeRemoteFailure, ErrCodeStorageFailure:
		return true
	default:
		return false
	}
}

// GetAppError extracts an AppError from an error chain, or converts it to one
func GetAppError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return Wrap(err, ErrCodeInternalError, "Internal error occurred")
}

// Is reports whether any AppError in err's chain carries code.
func Is(err error, code ErrorCode) bool {
	for err != nil {
		var appErr *AppError
		if !stderrors.As(err, &appErr) {
			return false
		}
		if appErr.Code == code {
			return true
		}
		err = appErr.Cause
	}
	return false
}

// Common error constructors for frequently used errors

func NotFoundError(resource string) *AppError {
	return NewAppError(ErrCodeNotFound, fmt.Sprintf("%s not found", resource))
}

func AmbiguousError(query string, candidates []string) *AppError {
	return NewAppError(ErrCodeAmbiguous, fmt.Sprintf("'%s' matches more than one prompt", query)).
		WithContext("candidates", candidates)
}

func AlreadyExistsError(resource string) *AppError {
	return NewAppError(ErrCodeAlreadyExists, fmt.Sprintf("%s already exists", resource))
}

func NotEmptyError(resource string) *AppError {
	return NewAppError(ErrCodeNotEmpty, fmt.Sprintf("%s is not empty", resource))
}

func InvalidKeyError(key string, reason string) *AppError {
	return NewAppError(ErrCodeInvalidKey, fmt.Sprintf("invalid key '%s': %s", key, reason))
}

func InvalidInputError(message string) *AppError {
	return NewAppError(ErrCodeInvalidInput, message)
}

func ConflictError(name string) *AppError {
	return NewAppError(ErrCodeConflict, fmt.Sprintf("'%s' differs between local and remote", name))
}

func StorageError(operation string, err error) *AppError {
	return Wrap(err, ErrCodeStorageFailure, fmt.Sprintf("storage operation failed: %s", operation))
}

func RemoteError(operation string, err error) *AppError {
	return Wrap(err, ErrCodeRemoteFailure, fmt.Sprintf("remote operation failed: %s", operation))
}

func ParseError(what string, err error) *AppError {
	return Wrap(err, ErrCodeParseFailure, fmt.Sprintf("failed to parse %s", what))
}

func InternalError(message string) *AppError {
	return NewAppError(ErrCodeInternalError, message)
}
