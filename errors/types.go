package errors

import (
	"fmt"
	"net/http"
)

// ErrorCode represents different categories of errors
type ErrorCode string

const (
	// ErrCodeValidation indicates invalid input or an unexpected payload
	ErrCodeValidation ErrorCode = "VALIDATION"

	// ErrCodeNetwork indicates transport-level failures
	ErrCodeNetwork ErrorCode = "NETWORK"

	// ErrCodeDatabase indicates validator database failures
	ErrCodeDatabase ErrorCode = "DATABASE"

	// ErrCodeConfig indicates configuration errors
	ErrCodeConfig ErrorCode = "CONFIG"

	// ErrCodeRPC indicates an endpoint answered with an error status
	ErrCodeRPC ErrorCode = "RPC"

	// ErrCodeSubscription indicates a dropped or stale event subscription
	ErrCodeSubscription ErrorCode = "SUBSCRIPTION"

	// ErrCodeTimeout indicates timeout errors
	ErrCodeTimeout ErrorCode = "TIMEOUT"

	// ErrCodeInternal indicates internal system errors
	ErrCodeInternal ErrorCode = "INTERNAL"
)

// Severity represents the severity level of an error
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
	SeverityInfo     Severity = "INFO"
)

// ChainError is an error raised while talking to one chain's endpoints or
// maintaining its local state.
type ChainError struct {
	Code     ErrorCode              `json:"code"`
	Message  string                 `json:"message"`
	Chain    string                 `json:"chain,omitempty"`
	Severity Severity               `json:"severity"`
	Cause    error                  `json:"-"`
	Context  map[string]interface{} `json:"context,omitempty"`
}

// NewChainError creates a new ChainError
func NewChainError(code ErrorCode, chain, message string, cause error) *ChainError {
	return &ChainError{
		Code:     code,
		Message:  message,
		Chain:    chain,
		Severity: determineSeverity(code),
		Cause:    cause,
		Context:  make(map[string]interface{}),
	}
}

// Error implements the error interface
func (e *ChainError) Error() string {
	msg := e.Message
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	if e.Chain != "" {
		return fmt.Sprintf("[%s:%s] %s", e.Chain, e.Code, msg)
	}
	return fmt.Sprintf("[%s] %s", e.Code, msg)
}

// Unwrap returns the underlying cause
func (e *ChainError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *ChainError) WithContext(key string, value interface{}) *ChainError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// IsRetryable returns true if the error is retryable
func (e *ChainError) IsRetryable() bool {
	switch e.Code {
	case ErrCodeNetwork, ErrCodeRPC, ErrCodeTimeout:
		return true
	case ErrCodeDatabase:
		return e.Severity != SeverityCritical
	default:
		return false
	}
}

func determineSeverity(code ErrorCode) Severity {
	switch code {
	case ErrCodeInternal:
		return SeverityCritical
	case ErrCodeDatabase:
		return SeverityHigh
	case ErrCodeNetwork, ErrCodeRPC, ErrCodeTimeout, ErrCodeSubscription:
		return SeverityMedium
	case ErrCodeValidation, ErrCodeConfig:
		return SeverityLow
	default:
		return SeverityInfo
	}
}

// NewValidationError creates a validation error
func NewValidationError(chain, message string, cause error) *ChainError {
	return NewChainError(ErrCodeValidation, chain, message, cause)
}

// NewNetworkError creates a network error
func NewNetworkError(chain, message string, cause error) *ChainError {
	return NewChainError(ErrCodeNetwork, chain, message, cause)
}

// NewDatabaseError creates a database error
func NewDatabaseError(chain, message string, cause error) *ChainError {
	return NewChainError(ErrCodeDatabase, chain, message, cause)
}

// NewConfigError creates a configuration error
func NewConfigError(chain, message string) *ChainError {
	return NewChainError(ErrCodeConfig, chain, message, nil)
}

// NewRPCError creates an RPC error
func NewRPCError(chain, message string, cause error) *ChainError {
	return NewChainError(ErrCodeRPC, chain, message, cause)
}

// NewSubscriptionError creates a subscription error
func NewSubscriptionError(chain, message string, cause error) *ChainError {
	return NewChainError(ErrCodeSubscription, chain, message, cause)
}

// NewTimeoutError creates a timeout error
func NewTimeoutError(chain, message string) *ChainError {
	return NewChainError(ErrCodeTimeout, chain, message, nil)
}

// NewInternalError creates an internal error
func NewInternalError(chain, message string, cause error) *ChainError {
	return NewChainError(ErrCodeInternal, chain, message, cause)
}

// FromHTTPStatus classifies a non-2xx response. Rate limiting and server
// errors are retryable RPC errors; other client errors are not.
func FromHTTPStatus(chain, url string, status int) *ChainError {
	msg := fmt.Sprintf("unexpected status %d from %s", status, url)
	if status == http.StatusTooManyRequests || status >= http.StatusInternalServerError {
		return NewRPCError(chain, msg, nil).WithContext("status", status)
	}
	return NewValidationError(chain, msg, nil).WithContext("status", status)
}
