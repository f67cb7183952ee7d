package errors

import (
	"errors"
	"fmt"
)

// ErrCode represents an error code
type ErrCode string

const (
	ErrCodeNotFound       ErrCode = "NOT_FOUND"
	ErrCodeUnauthorized   ErrCode = "UNAUTHORIZED"
	ErrCodeRateLimited    ErrCode = "RATE_LIMITED"
	ErrCodeTransientFetch ErrCode = "TRANSIENT_FETCH"
	ErrCodeMalformed      ErrCode = "MALFORMED_RECORD"
	ErrCodeConfiguration  ErrCode = "CONFIGURATION"
	ErrCodeStorageIO      ErrCode = "STORAGE_IO"
	ErrCodeInternal       ErrCode = "INTERNAL_ERROR"
	ErrCodeBadRequest     ErrCode = "BAD_REQUEST"
)

// AppError represents an application error
type AppError struct {
	Code    ErrCode
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(resource string) *AppError {
	return &AppError{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
	}
}

// NewUnauthorizedError creates a new unauthorized error
func NewUnauthorizedError(message string, err error) *AppError {
	return &AppError{
		Code:    ErrCodeUnauthorized,
		Message: message,
		Err:     err,
	}
}

// NewRateLimitedError creates a new rate limited error
func NewRateLimitedError(message string, err error) *AppError {
	return &AppError{
		Code:    ErrCodeRateLimited,
		Message: message,
		Err:     err,
	}
}

// NewTransientFetchError wraps a network or server failure while fetching a snapshot
func NewTransientFetchError(message string, err error) *AppError {
	return &AppError{
		Code:    ErrCodeTransientFetch,
		Message: message,
		Err:     err,
	}
}

// NewMalformedRecordError reports an unusable raw log line
func NewMalformedRecordError(path string, line int, err error) *AppError {
	return &AppError{
		Code:    ErrCodeMalformed,
		Message: fmt.Sprintf("%s:%d: malformed record", path, line),
		Err:     err,
	}
}

// NewConfigurationError reports an invalid configuration field
func NewConfigurationError(field, message string) *AppError {
	return &AppError{
		Code:    ErrCodeConfiguration,
		Message: field + ": " + message,
	}
}

// NewStorageIOError wraps a failure reading or writing a store
func NewStorageIOError(message string, err error) *AppError {
	return &AppError{
		Code:    ErrCodeStorageIO,
		Message: message,
		Err:     err,
	}
}

// NewInternalError creates a new internal error
func NewInternalError(message string, err error) *AppError {
	return &AppError{
		Code:    ErrCodeInternal,
		Message: message,
		Err:     err,
	}
}

// NewBadRequestError creates a new bad request error
func NewBadRequestError(message string) *AppError {
	return &AppError{
		Code:    ErrCodeBadRequest,
		Message: message,
	}
}

// CodeOf returns the code of the first AppError in err's chain, or "" if there is none
func CodeOf(err error) ErrCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// IsNotFound checks if the error is a not found error
func IsNotFound(err error) bool {
	return CodeOf(err) == ErrCodeNotFound
}

// IsRateLimited checks if the error is a rate limited error
func IsRateLimited(err error) bool {
	return CodeOf(err) == ErrCodeRateLimited
}

// IsMalformed checks if the error is a malformed record error
func IsMalformed(err error) bool {
	return CodeOf(err) == ErrCodeMalformed
}

// IsConfiguration checks if the error is a configuration error
func IsConfiguration(err error) bool {
	return CodeOf(err) == ErrCodeConfiguration
}

// IsStorageIO checks if the error is a storage I/O error
func IsStorageIO(err error) bool {
	return CodeOf(err) == ErrCodeStorageIO
}

// IsFetchFailure reports whether err came from the snapshot source, as opposed to local storage
func IsFetchFailure(err error) bool {
	switch CodeOf(err) {
	case ErrCodeTransientFetch, ErrCodeRateLimited, ErrCodeUnauthorized, ErrCodeNotFound:
		return true
	}
	return false
}
