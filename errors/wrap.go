package errors

import (
	"context"
	"errors"
	"strings"
)

// WrapChainError wraps an error as a ChainError if it isn't already one
func WrapChainError(err error, code ErrorCode, chain, message string) *ChainError {
	if err == nil {
		return nil
	}

	var chainErr *ChainError
	if errors.As(err, &chainErr) {
		chainErr.WithContext("wrapped_message", message)
		if chain != "" && chainErr.Chain == "" {
			chainErr.Chain = chain
		}
		return chainErr
	}

	return NewChainError(code, chain, message, err)
}

// Is checks if an error is of a specific type
func Is(err error, target error) bool {
	return errors.Is(err, target)
}

// As checks if an error can be assigned to a target type
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Join joins errors, dropping nils.
func Join(errs ...error) error {
	return errors.Join(errs...)
}

// IsChainError checks if an error is a ChainError with specific code
func IsChainError(err error, code ErrorCode) bool {
	var chainErr *ChainError
	if errors.As(err, &chainErr) {
		return chainErr.Code == code
	}
	return false
}

var retryablePatterns = []string{
	"connection refused",
	"connection reset",
	"timeout",
	"temporary failure",
	"too many requests",
	"rate limit",
	"eof",
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var chainErr *ChainError
	if errors.As(err, &chainErr) {
		return chainErr.IsRetryable()
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	for _, pattern := range retryablePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}

// GetSeverity returns the severity of an error
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityInfo
	}

	var chainErr *ChainError
	if errors.As(err, &chainErr) {
		return chainErr.Severity
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "panic"), strings.Contains(errStr, "fatal"):
		return SeverityCritical
	case strings.Contains(errStr, "failed"), strings.Contains(errStr, "error"):
		return SeverityHigh
	default:
		return SeverityLow
	}
}
