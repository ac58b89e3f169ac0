package common

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	chainerrors "github.com/chainwatch/chainwatch/errors"
)

// RetryConfig holds retry configuration
type RetryConfig struct {
	MaxRetries     int              // Maximum number of retry attempts
	InitialDelay   time.Duration    // Initial delay between retries
	MaxDelay       time.Duration    // Maximum delay between retries
	BackoffFactor  float64          // Exponential backoff factor (e.g., 2.0)
	RetryableError func(error) bool // Function to determine if error is retryable
}

// DefaultRetryConfig retries transient transport failures only.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:     3,
		InitialDelay:   1 * time.Second,
		MaxDelay:       30 * time.Second,
		BackoffFactor:  2.0,
		RetryableError: chainerrors.IsRetryable,
	}
}

// ReconnectConfig is the backoff used between event subscription sessions.
// MaxRetries is unused: a subscription reconnects until its context ends.
func ReconnectConfig() *RetryConfig {
	return &RetryConfig{
		InitialDelay:   2 * time.Second,
		MaxDelay:       2 * time.Minute,
		BackoffFactor:  2.0,
		RetryableError: func(error) bool { return true },
	}
}

// RetryManager handles retry logic with exponential backoff
type RetryManager struct {
	config *RetryConfig
	logger zerolog.Logger
}

// NewRetryManager creates a new retry manager
func NewRetryManager(config *RetryConfig, logger zerolog.Logger) *RetryManager {
	if config == nil {
		config = DefaultRetryConfig()
	}
	if config.RetryableError == nil {
		config.RetryableError = chainerrors.IsRetryable
	}
	return &RetryManager{
		config: config,
		logger: logger.With().Str("component", "retry_manager").Logger(),
	}
}

// ExecuteWithRetry executes a function with retry logic
func (r *RetryManager) ExecuteWithRetry(
	ctx context.Context,
	operation string,
	fn func() error,
) error {
	var lastErr error
	delay := r.config.InitialDelay

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := fn()
		if err == nil {
			if attempt > 0 {
				r.logger.Info().
					Str("operation", operation).
					Int("attempts", attempt+1).
					Msg("operation succeeded after retries")
			}
			return nil
		}

		lastErr = err

		if !r.config.RetryableError(err) {
			r.logger.Debug().
				Err(err).
				Str("operation", operation).
				Msg("non-retryable error encountered")
			return err
		}

		if attempt >= r.config.MaxRetries {
			break
		}

		r.logger.Warn().
			Err(err).
			Str("operation", operation).
			Int("attempt", attempt+1).
			Int("max_attempts", r.config.MaxRetries+1).
			Dur("retry_in", delay).
			Msg("operation failed, retrying")

		select {
		case <-time.After(delay):
			delay = time.Duration(float64(delay) * r.config.BackoffFactor)
			if delay > r.config.MaxDelay {
				delay = r.config.MaxDelay
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return fmt.Errorf("operation %s failed after %d attempts: %w",
		operation, r.config.MaxRetries+1, lastErr)
}

// CalculateBackoff calculates the delay before the given (zero-based) attempt
func (r *RetryManager) CalculateBackoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	delay := float64(r.config.InitialDelay) * math.Pow(r.config.BackoffFactor, float64(attempt))
	if delay > float64(r.config.MaxDelay) {
		return r.config.MaxDelay
	}
	return time.Duration(delay)
}
