// Package retry is the single retry/backoff policy shared by every network
// call site in the launcher: auth hops, metadata fetches and file downloads
// all go through the same Policy instead of scattering their own literals.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrTransient marks an error as retryable. Call sites wrap recoverable
// failures with Transient(); Do retries only those.
var ErrTransient = errors.New("transient network error")

// Transient wraps err so Do will retry the operation.
func Transient(err error) error {
	return fmt.Errorf("%w: %v", ErrTransient, err)
}

// IsTransient reports whether err is marked retryable.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// Policy holds the retry parameters. Backoff is linear: attempt * Delay.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
}

// DefaultPolicy matches the tuning used across the launcher's HTTP clients.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		Delay:       2 * time.Second,
	}
}

// Backoff returns the delay before the given (1-based) retry attempt.
func (p Policy) Backoff(attempt int) time.Duration {
	return time.Duration(attempt) * p.Delay
}

// Do runs op, retrying transient failures with linear backoff until the
// attempt budget is exhausted or the context is cancelled. Non-transient
// errors are returned immediately.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(p.Backoff(attempt)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !IsTransient(err) {
			return err
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	return fmt.Errorf("failed after %d attempts: %w", attempts, lastErr)
}
