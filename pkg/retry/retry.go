// Package retry provides retry logic with configurable backoff for
// operations that can fail transiently.
package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/jhulett18/threadsrecon/pkg/errors"
	"github.com/jhulett18/threadsrecon/pkg/logger"
)

// Operation is a retryable function
type Operation func(ctx context.Context) error

// OperationWithResult is a retryable function that produces a value
type OperationWithResult[T any] func(ctx context.Context) (T, error)

// Config controls retry behavior
type Config struct {
	MaxAttempts int
	Backoff     BackoffStrategy
	// RetryIf decides whether an error is worth another attempt.
	// When nil, DefaultRetryIf is used.
	RetryIf func(err error) bool
	// OnRetry is invoked before each retry with the attempt number
	// and the error that triggered it.
	OnRetry func(attempt int, err error)
	Logger  logger.Logger
}

// DefaultConfig returns a retry config with exponential backoff
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		Backoff:     DefaultExponentialBackoff(),
	}
}

// DefaultRetryIf retries transport faults (timeouts, DNS failures,
// refused connections) and leaves structural and account-state faults
// to the caller.
func DefaultRetryIf(err error) bool {
	return errors.IsRetryable(errors.TypeOf(err))
}

// Do runs op with retries according to cfg. The error from the final
// attempt is returned, classified.
func Do(ctx context.Context, cfg Config, op Operation) error {
	_, err := DoWithResult(ctx, cfg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// DoWithResult runs op with retries according to cfg and returns its value.
func DoWithResult[T any](ctx context.Context, cfg Config, op OperationWithResult[T]) (T, error) {
	var zero T
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.Backoff == nil {
		cfg.Backoff = DefaultExponentialBackoff()
	}
	retryIf := cfg.RetryIf
	if retryIf == nil {
		retryIf = DefaultRetryIf
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = errors.Classify(err, "")

		if attempt == cfg.MaxAttempts || !retryIf(lastErr) {
			break
		}

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, lastErr)
		}
		if cfg.Logger != nil {
			cfg.Logger.WithFields(map[string]interface{}{
				"attempt":      attempt,
				"max_attempts": cfg.MaxAttempts,
			}).WithError(lastErr).Warn("Operation failed, retrying")
		}

		delay := cfg.Backoff.NextDelay(attempt)
		if err := Wait(ctx, delay); err != nil {
			return zero, err
		}
	}

	return zero, lastErr
}

// WithTimeout runs op with retries, bounding the whole sequence by timeout.
func WithTimeout(ctx context.Context, timeout time.Duration, cfg Config, op Operation) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := Do(ctx, cfg, op); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("operation timed out after %v: %w", timeout, err)
		}
		return err
	}
	return nil
}
