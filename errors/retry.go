package errors

import (
	"context"
	"math"
	"time"
)

// RetryConfig configures retry behavior. Errors whose code is listed in
// RetryableErrors are retried in addition to those IsRetryable accepts.
type RetryConfig struct {
	MaxAttempts     int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	Multiplier      float64
	RetryableErrors []ErrorCode
}

// DefaultRetryConfig returns the configuration used for endpoint calls.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:     3,
		InitialDelay:    time.Second,
		MaxDelay:        30 * time.Second,
		Multiplier:      2.0,
		RetryableErrors: []ErrorCode{ErrCodeNetwork, ErrCodeRPC, ErrCodeTimeout},
	}
}

// RetryFunc is one attempt of a retried call
type RetryFunc func() error

// RetryWithConfig calls fn until it succeeds, returns a non-retryable error,
// ctx ends or MaxAttempts is reached. The exhausted error keeps the code and
// chain of the last failure and records the attempt count in its context.
func RetryWithConfig(ctx context.Context, fn RetryFunc, config *RetryConfig) error {
	if config == nil {
		config = DefaultRetryConfig()
	}
	attempts := max(config.MaxAttempts, 1)

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !config.retryable(lastErr) {
			return lastErr
		}
		if attempt == attempts {
			break
		}

		timer := time.NewTimer(config.delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	code, chain := ErrCodeInternal, ""
	var last *ChainError
	if As(lastErr, &last) {
		code, chain = last.Code, last.Chain
	}
	return WrapChainError(lastErr, code, chain, "giving up after retries").
		WithContext("attempts", attempts)
}

// delay returns the wait after the given (one-based) failed attempt.
func (c *RetryConfig) delay(attempt int) time.Duration {
	multiplier := c.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}
	d := float64(c.InitialDelay) * math.Pow(multiplier, float64(attempt-1))
	if c.MaxDelay > 0 && d > float64(c.MaxDelay) {
		return c.MaxDelay
	}
	return time.Duration(d)
}

func (c *RetryConfig) retryable(err error) bool {
	var chainErr *ChainError
	if !As(err, &chainErr) {
		return IsRetryable(err)
	}
	for _, code := range c.RetryableErrors {
		if chainErr.Code == code {
			return true
		}
	}
	return chainErr.IsRetryable()
}
