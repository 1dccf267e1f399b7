package domain

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// APIError represents a standardized error response returned by the HTTP and MCP surfaces
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
	ErrInvalidInput        = "INVALID_INPUT"
	ErrValidation          = "VALIDATION_ERROR"
	ErrModelInference      = "MODEL_INFERENCE_ERROR"
	ErrConsistency         = "INTERNAL_CONSISTENCY_ERROR"
	ErrDatabaseError       = "DATABASE_ERROR"
	ErrRateLimit           = "RATE_LIMIT_EXCEEDED"
	ErrNotFound            = "NOT_FOUND"
	ErrInternalServer      = "INTERNAL_SERVER_ERROR"
	ErrServiceUnavailable  = "SERVICE_UNAVAILABLE"
	ErrRequestCancellation = "REQUEST_CANCELLED"
	ErrPayloadTooLarge     = "PAYLOAD_TOO_LARGE"
)

// ValidationError represents input validation errors
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// SchemaError reports a patient record that does not match a model's expected column list.
type SchemaError struct {
	Field  string
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema error for feature '%s': %s", e.Field, e.Reason)
}

// TypeConversionError reports a zoned feature value that cannot be read as a number.
type TypeConversionError struct {
	Field string
	Value interface{}
}

func (e *TypeConversionError) Error() string {
	return fmt.Sprintf("cannot convert feature '%s' value %v (%T) to a number", e.Field, e.Value, e.Value)
}

// ModelInferenceError wraps a failure of a trained model or its output contract.
type ModelInferenceError struct {
	Model string
	Err   error
}

func (e *ModelInferenceError) Error() string {
	return fmt.Sprintf("model inference failed for %s: %v", e.Model, e.Err)
}

func (e *ModelInferenceError) Unwrap() error {
	return e.Err
}

// ConsistencyError reports artifacts that disagree with each other, such as a cluster id with no
// summary row.
type ConsistencyError struct {
	What string
	Key  string
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("inconsistent artifacts: %s %q", e.What, e.Key)
}

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

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// NewModelInferenceError wraps err as a failure of the named model.
func NewModelInferenceError(model string, err error) *ModelInferenceError {
	return &ModelInferenceError{Model: model, Err: err}
}

// IsClientError reports whether err was caused by the caller's input rather than the deployment.
func IsClientError(err error) bool {
	var (
		schemaErr     *SchemaError
		conversionErr *TypeConversionError
		validationErr *ValidationError
		maxBytesErr   *http.MaxBytesError
	)
	return errors.As(err, &schemaErr) || errors.As(err, &conversionErr) || errors.As(err, &validationErr) ||
		errors.As(err, &maxBytesErr)
}

// Classify maps an error to its API error code and HTTP status.
func Classify(err error) (string, int) {
	var (
		schemaErr      *SchemaError
		conversionErr  *TypeConversionError
		validationErr  *ValidationError
		inferenceErr   *ModelInferenceError
		consistencyErr *ConsistencyError
		apiErr         *APIError
		maxBytesErr    *http.MaxBytesError
	)

	switch {
	case err == nil:
		return "", http.StatusOK
	case errors.As(err, &apiErr):
		return apiErr.Code, statusForCode(apiErr.Code)
	case errors.As(err, &maxBytesErr):
		return ErrPayloadTooLarge, http.StatusRequestEntityTooLarge
	case errors.As(err, &validationErr), errors.As(err, &schemaErr), errors.As(err, &conversionErr):
		return ErrValidation, http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ErrRequestCancellation, http.StatusRequestTimeout
	case errors.As(err, &inferenceErr):
		return ErrModelInference, http.StatusInternalServerError
	case errors.As(err, &consistencyErr):
		return ErrConsistency, http.StatusInternalServerError
	default:
		return ErrInternalServer, http.StatusInternalServerError
	}
}

func statusForCode(code string) int {
	switch code {
	case ErrInvalidInput, ErrValidation:
		return http.StatusBadRequest
	case ErrNotFound:
		return http.StatusNotFound
	case ErrRateLimit:
		return http.StatusTooManyRequests
	case ErrServiceUnavailable:
		return http.StatusServiceUnavailable
	case ErrRequestCancellation:
		return http.StatusRequestTimeout
	case ErrPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}
