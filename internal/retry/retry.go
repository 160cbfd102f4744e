// Package retry retries external I/O with exponential backoff.
package retry

import (
	"context"
	"errors"
	"math"
	"time"

	"go.uber.org/zap"
)

// Config holds the configuration for retry logic
type Config struct {
	MaxRetries      int
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	BackoffMultiple float64
}

// DefaultConfig returns a sensible default retry configuration
func DefaultConfig() Config {
	return Config{
		MaxRetries:      3,
		BaseDelay:       200 * time.Millisecond,
		MaxDelay:        5 * time.Second,
		BackoffMultiple: 2.0,
	}
}

// ErrorChecker reports whether err is transient and worth another attempt
type ErrorChecker func(err error) bool

// Options configures retry behavior
type Options struct {
	Config       Config
	ErrorChecker ErrorChecker
	Logger       *zap.Logger
	Operation    string
}

// calculateDelay computes the delay for the given attempt using exponential backoff
func (c Config) calculateDelay(attempt int) time.Duration {
	delay := time.Duration(float64(c.BaseDelay) * math.Pow(c.BackoffMultiple, float64(attempt)))
	if delay > c.MaxDelay {
		delay = c.MaxDelay
	}
	return delay
}

// Do runs fn until it succeeds, returns a non-retryable error, or the retries are exhausted
func Do[T any](ctx context.Context, opts Options, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var lastErr error
	for attempt := 0; attempt <= opts.Config.MaxRetries; attempt++ {
		// Add delay before retry (but not on first attempt)
		if attempt > 0 {
			delay := opts.Config.calculateDelay(attempt - 1)
			logger.Debug("retrying",
				zap.String("operation", opts.Operation),
				zap.Int("attempt", attempt+1),
				zap.Int("max_attempts", opts.Config.MaxRetries+1),
				zap.Duration("delay", delay),
			)

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return zero, ctx.Err()
			case <-timer.C:
			}
		}

		result, err := fn(ctx)
		if err == nil {
			if attempt > 0 {
				logger.Info("succeeded after retry", zap.String("operation", opts.Operation), zap.Int("attempt", attempt+1))
			}
			return result, nil
		}
		lastErr = err

		if ctx.Err() != nil || opts.ErrorChecker == nil || !opts.ErrorChecker(err) {
			return zero, err
		}
		logger.Warn("transient error",
			zap.String("operation", opts.Operation),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}

	return zero, &ExhaustedError{
		Operation:   opts.Operation,
		MaxAttempts: opts.Config.MaxRetries + 1,
		Err:         lastErr,
	}
}

// ExhaustedError represents an error when all retry attempts have been exhausted
type ExhaustedError struct {
	Operation   string
	MaxAttempts int
	Err         error
}

func (e *ExhaustedError) Error() string {
	return "retry attempts exhausted for " + e.Operation + ": " + e.Err.Error()
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// IsExhausted reports whether err came from running out of attempts
func IsExhausted(err error) bool {
	var exhausted *ExhaustedError
	return errors.As(err, &exhausted)
}
