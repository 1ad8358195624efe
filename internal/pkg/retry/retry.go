// Package retry provides a reusable retry policy with exponential backoff.
//
// A Policy bundles the attempt budget, the backoff curve and the error
// classification. Business logic never loops on its own; it hands the
// operation to Do together with the policy that applies to it:
//
//	hash, err := retry.Do(ctx, policy, onRetry, func(ctx context.Context) (common.Hash, error) {
//	    return submit(ctx)
//	})
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// Policy describes how an operation is retried.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first one.
	// Values below 1 are treated as 1 (no retries).
	MaxAttempts int

	// InitialBackoff is the wait before the second attempt.
	InitialBackoff time.Duration

	// MaxBackoff caps exponential growth.
	MaxBackoff time.Duration

	// BackoffFactor multiplies the backoff after every retry (default 2.0).
	BackoffFactor float64

	// Jitter adds rand(0, backoff) to every wait.
	Jitter bool

	// Retryable classifies errors. Nil means every error is retryable unless
	// it was wrapped with NonRetryable or is a context error.
	Retryable func(error) bool
}

// DefaultPolicy returns the policy used for remote calls when none is configured.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    4,
		InitialBackoff: 10 * time.Millisecond,
		MaxBackoff:     100 * time.Millisecond,
		BackoffFactor:  2.0,
		Jitter:         true,
	}
}

// OnRetryFunc is called before each retry attempt (optional, for logging/metrics).
// attempt is 1-indexed (first retry is attempt 1).
type OnRetryFunc func(attempt int, err error, backoff time.Duration)

// ExhaustedError is returned when every attempt failed with a retryable error.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("operation failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// nonRetryableError marks an error that must not be retried.
type nonRetryableError struct {
	err error
}

func (e *nonRetryableError) Error() string {
	return e.err.Error()
}

func (e *nonRetryableError) Unwrap() error {
	return e.err
}

// NonRetryable wraps err so that every Policy stops on it.
func NonRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &nonRetryableError{err: err}
}

// IsNonRetryable reports whether err (or anything it wraps) was marked with NonRetryable.
func IsNonRetryable(err error) bool {
	var target *nonRetryableError
	return errors.As(err, &target)
}

func (p Policy) withDefaults() Policy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.BackoffFactor <= 0 {
		p.BackoffFactor = 2.0
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = 10 * time.Millisecond
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = 100 * time.Millisecond
	}
	if p.MaxBackoff < p.InitialBackoff {
		p.MaxBackoff = p.InitialBackoff
	}
	return p
}

func (p Policy) shouldRetry(err error) bool {
	if IsNonRetryable(err) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if p.Retryable == nil {
		return true
	}
	return p.Retryable(err)
}

// Do executes fn under the policy and returns its result or the last error.
//
// fn is called at least once. Non-retryable errors are returned unchanged so
// callers can still match them with errors.Is/As; exhausting the budget
// returns an *ExhaustedError wrapping the last error.
func Do[T any](ctx context.Context, p Policy, onRetry OnRetryFunc, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	p = p.withDefaults()
	backoff := p.InitialBackoff

	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if attempt > 0 {
			wait := backoff
			if p.Jitter {
				wait += time.Duration(rand.Int63n(int64(backoff)))
			}

			if onRetry != nil {
				onRetry(attempt, lastErr, wait)
			}

			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return zero, fmt.Errorf("context cancelled while retrying: %w", ctx.Err())
			case <-timer.C:
			}

			backoff = time.Duration(float64(backoff) * p.BackoffFactor)
			if backoff > p.MaxBackoff {
				backoff = p.MaxBackoff
			}
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}

		lastErr = err
		if !p.shouldRetry(err) {
			return zero, err
		}
	}

	if p.MaxAttempts == 1 {
		return zero, lastErr
	}
	return zero, &ExhaustedError{Attempts: p.MaxAttempts, Err: lastErr}
}

// DoVoid is like Do but for functions that don't return a value.
func DoVoid(ctx context.Context, p Policy, onRetry OnRetryFunc, fn func(context.Context) error) error {
	_, err := Do(ctx, p, onRetry, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}
