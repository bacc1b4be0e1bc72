package ollama

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// RetryConfig bounds retry behavior for transient backend failures.
type RetryConfig struct {
	// MaxRetries is the number of attempts after the first failure.
	MaxRetries int

	// InitialInterval is the delay before the first retry.
	InitialInterval time.Duration

	// MaxInterval caps the exponential backoff delay.
	MaxInterval time.Duration
}

// DefaultRetryConfig returns conservative retry settings suited to a
// locally hosted backend: three retries, doubling from 500ms up to 5s.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     5 * time.Second,
	}
}

// withRetry runs fn with bounded exponential backoff. Only unreachable
// backend failures are retried; validation and generation errors are
// permanent and returned immediately. Context cancellation aborts both
// the attempt and any backoff sleep.
func (c *Client) withRetry(ctx context.Context, op string, fn func(context.Context) error) error {
	delay := c.retry.InitialInterval
	var lastErr error

	for attempt := 0; attempt <= c.retry.MaxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Warn("retrying backend call",
				"operation", op,
				"attempt", attempt,
				"delay", delay,
				"error", lastErr)

			select {
			case <-ctx.Done():
				return fmt.Errorf("%s aborted: %w", op, ctx.Err())
			case <-time.After(delay):
			}

			delay *= 2
			if c.retry.MaxInterval > 0 && delay > c.retry.MaxInterval {
				delay = c.retry.MaxInterval
			}
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return err
		}
		lastErr = err
	}

	return lastErr
}

// retryable reports whether an error is worth retrying. Only the
// unreachable-backend case qualifies; a backend that answers with a
// rejection will keep answering the same way.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return errors.Is(err, ErrBackendUnavailable)
}
