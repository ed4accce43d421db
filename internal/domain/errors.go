package domain

import (
	"fmt"
	"time"
)

// InvalidInputError reports a clinical input value that the risk model
// cannot accept (non-positive values that would enter a logarithm).
// The engine raises it before transforming, never letting NaN reach the
// classifiers.
type InvalidInputError struct {
	Field  string  `json:"field"`
	Value  float64 `json:"value"`
	Reason string  `json:"reason"`
}

// Error implements the error interface
func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input for field '%s' (%g): %s", e.Field, e.Value, e.Reason)
}

// UnknownStratumError reports a sex value with no fitted coefficient
// stratum. Race has no unknown case: 'other' is a defined alias of the
// same-sex white stratum.
type UnknownStratumError struct {
	Sex Sex `json:"sex"`
}

// Error implements the error interface
func (e *UnknownStratumError) Error() string {
	return fmt.Sprintf("no coefficient stratum for sex '%s'", e.Sex)
}

// APIError is the standardized error response body of the HTTP surface.
type APIError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error codes for different failure scenarios
const (
	ErrCodeInvalidInput   = "INVALID_INPUT"
	ErrCodeUnknownStratum = "UNKNOWN_STRATUM"
	ErrCodeDatabaseError  = "DATABASE_ERROR"
	ErrCodeRateLimit      = "RATE_LIMIT_EXCEEDED"
	ErrCodeNotFound       = "NOT_FOUND"
	ErrCodeInternalServer = "INTERNAL_SERVER_ERROR"
)

// NewAPIError creates a new APIError with timestamp
func NewAPIError(code, message, details, requestID string) *APIError {
	return &APIError{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
	}
}
