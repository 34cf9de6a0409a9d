// Package errors provides the engine's standardized error taxonomy.
package errors

import (
	"fmt"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeClassificationAmbiguous ErrorCode = "CLASSIFICATION_AMBIGUOUS"

	ErrCodeProviderTimeout    ErrorCode = "PROVIDER_TIMEOUT"
	ErrCodeProviderError      ErrorCode = "PROVIDER_ERROR"
	ErrCodeAllProvidersFailed ErrorCode = "ALL_PROVIDERS_FAILED"

	ErrCodeModelTimeout     ErrorCode = "MODEL_TIMEOUT"
	ErrCodeModelUnavailable ErrorCode = "MODEL_UNAVAILABLE"

	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeCacheUnavailable ErrorCode = "CACHE_UNAVAILABLE"

	ErrCodeDeviceExecuteFailed ErrorCode = "DEVICE_EXECUTE_FAILED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 2. Error Constructors
// ==========================

// NewClassificationAmbiguousError marks a below-threshold classification.
// Not fatal: callers route the query down the info path.
func NewClassificationAmbiguousError(confidence float64) *StandardError {
	return &StandardError{
		Code:      ErrCodeClassificationAmbiguous,
		Message:   "Classification confidence below trust threshold",
		Details:   fmt.Sprintf("confidence: %.2f", confidence),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewProviderTimeoutError creates a provider timeout error. The provider
// is excluded from fusion; the request continues.
func NewProviderTimeoutError(providerID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeProviderTimeout,
		Message:   "Retrieval provider timed out",
		Details:   fmt.Sprintf("providerId: %s", providerID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewProviderError creates a provider failure error. Excluded from fusion,
// never aborts the request.
func NewProviderError(providerID string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeProviderError,
		Message:   "Retrieval provider call failed",
		Details:   fmt.Sprintf("providerId: %s, error: %s", providerID, err.Error()),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewAllProvidersFailedError marks the explicit empty-evidence state.
func NewAllProvidersFailedError(category string) *StandardError {
	return &StandardError{
		Code:      ErrCodeAllProvidersFailed,
		Message:   "Every eligible provider failed or timed out",
		Details:   fmt.Sprintf("category: %s", category),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewModelTimeoutError creates a retryable model gateway timeout error.
func NewModelTimeoutError(tier string) *StandardError {
	return &StandardError{
		Code:      ErrCodeModelTimeout,
		Message:   "Model inference timed out",
		Details:   fmt.Sprintf("tier: %s", tier),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewModelUnavailableError marks the only failure that may surface to the
// user, after tier downgrade and retry are exhausted.
func NewModelUnavailableError(tier string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeModelUnavailable,
		Message:   "No model tier is reachable",
		Details:   fmt.Sprintf("lastTier: %s, error: %s", tier, err.Error()),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewValidationFailedError marks a failed validation layer, triggering the
// regenerate-then-hedge policy.
func NewValidationFailedError(layer, reason string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   "Answer validation failed",
		Details:   fmt.Sprintf("layer: %s, reason: %s", layer, reason),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewCacheUnavailableError marks a cache store failure; callers bypass the
// cache silently.
func NewCacheUnavailableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCacheUnavailable,
		Message:   "Cache store unreachable",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDeviceExecuteFailedError creates a device-control backend error.
func NewDeviceExecuteFailedError(entity, action string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDeviceExecuteFailed,
		Message:   "Device control command failed",
		Details:   fmt.Sprintf("entity: %s, action: %s, error: %s", entity, action, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Utility Functions
// ==========================

// UserVisible reports whether a code may surface as a raw error to the
// caller. Everything but model exhaustion degrades to a usable answer.
func UserVisible(code ErrorCode) bool {
	return code == ErrCodeModelUnavailable
}
