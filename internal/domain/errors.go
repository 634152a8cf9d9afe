package domain

import "fmt"

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches on code and message so wrapped sentinels compare equal
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewConfigError reports an invalid configuration value. These are fatal.
func NewConfigError(message string) *DomainError {
	return NewDomainError(ErrCodeConfiguration, message)
}

// Common domain error codes
const (
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeConfiguration    = "CONFIGURATION_ERROR"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeInternalError    = "INTERNAL_ERROR"
	ErrCodeInvalidOperation = "INVALID_OPERATION"
	ErrCodeUnavailable      = "UNAVAILABLE"
)

// Validation errors
var (
	ErrInvalidTurnID        = NewDomainError(ErrCodeValidation, "turn id must be positive")
	ErrInvalidFeedbackScore = NewDomainError(ErrCodeValidation, "feedback score out of range")
)

// Not found errors
var (
	ErrInteractionNotFound = NewDomainError(ErrCodeNotFound, "interaction record not found")
	ErrDocumentNotFound    = NewDomainError(ErrCodeNotFound, "document not found")
)

// Operation errors
var (
	ErrNonIncreasingTurn = NewDomainError(ErrCodeInvalidOperation, "turn id must increase within a session")
	ErrDimensionMismatch = NewDomainError(ErrCodeInvalidOperation, "vector dimension does not match store")
)

// Availability errors
var (
	ErrGeneratorUnavailable = NewDomainError(ErrCodeUnavailable, "no generative model configured")
	ErrStorageUnavailable   = NewDomainError(ErrCodeUnavailable, "object storage not configured")
)

// Authorization errors
var (
	ErrInvalidAPIKey = NewDomainError(ErrCodeUnauthorized, "invalid api key")
)
