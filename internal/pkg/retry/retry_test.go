package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

var errTransient = errors.New("transient error")
var errPermanent = errors.New("permanent error")

func transientOnly(err error) bool {
	return errors.Is(err, errTransient)
}

func fastPolicy(attempts int) Policy {
	return Policy{
		MaxAttempts:    attempts,
		InitialBackoff: 1 * time.Millisecond,
		MaxBackoff:     10 * time.Millisecond,
		BackoffFactor:  2.0,
		Retryable:      transientOnly,
	}
}

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	result, err := Do(context.Background(), DefaultPolicy(), nil, func(context.Context) (int, error) {
		calls++
		return 42, nil
	})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != 42 {
		t.Errorf("expected result 42, got %d", result)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDo_RetriesOnTransientError(t *testing.T) {
	calls := 0
	result, err := Do(context.Background(), fastPolicy(4), nil, func(context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, errTransient
		}
		return 42, nil
	})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != 42 {
		t.Errorf("expected result 42, got %d", result)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDo_FailsImmediatelyOnPermanentError(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fastPolicy(4), nil, func(context.Context) (int, error) {
		calls++
		return 0, errPermanent
	})

	if !errors.Is(err, errPermanent) {
		t.Errorf("expected permanent error, got: %v", err)
	}
	var exhausted *ExhaustedError
	if errors.As(err, &exhausted) {
		t.Errorf("permanent error should be returned unwrapped, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call (no retries for permanent error), got %d", calls)
	}
}

func TestDo_StopsOnNonRetryableWrapper(t *testing.T) {
	calls := 0
	policy := fastPolicy(5)
	policy.Retryable = nil

	_, err := Do(context.Background(), policy, nil, func(context.Context) (int, error) {
		calls++
		return 0, fmt.Errorf("submitting: %w", NonRetryable(errTransient))
	})

	if !IsNonRetryable(err) {
		t.Errorf("expected non-retryable error, got %v", err)
	}
	if !errors.Is(err, errTransient) {
		t.Errorf("expected wrapped cause to be preserved, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fastPolicy(3), nil, func(context.Context) (int, error) {
		calls++
		return 0, errTransient
	})

	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected ExhaustedError, got %v", err)
	}
	if exhausted.Attempts != 3 {
		t.Errorf("expected Attempts=3, got %d", exhausted.Attempts)
	}
	if !errors.Is(err, errTransient) {
		t.Errorf("expected transient error wrapped, got: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDo_SingleAttemptReturnsRawError(t *testing.T) {
	_, err := Do(context.Background(), fastPolicy(1), nil, func(context.Context) (int, error) {
		return 0, errTransient
	})
	if err != errTransient {
		t.Errorf("expected raw error with a single attempt, got %v", err)
	}
}

func TestDo_RespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	policy := Policy{
		MaxAttempts:    10,
		InitialBackoff: 100 * time.Millisecond,
		Retryable:      transientOnly,
	}

	onRetry := func(attempt int, err error, backoff time.Duration) {
		cancel()
	}

	_, err := Do(ctx, policy, onRetry, func(context.Context) (int, error) {
		calls++
		return 0, errTransient
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled error, got: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call before cancellation, got %d", calls)
	}
}

func TestDo_DoesNotRetryContextErrors(t *testing.T) {
	calls := 0
	policy := fastPolicy(5)
	policy.Retryable = func(error) bool { return true }

	_, err := Do(context.Background(), policy, nil, func(context.Context) (int, error) {
		calls++
		return 0, context.DeadlineExceeded
	})

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDo_ExponentialBackoff(t *testing.T) {
	policy := Policy{
		MaxAttempts:    4,
		InitialBackoff: 10 * time.Millisecond,
		MaxBackoff:     100 * time.Millisecond,
		BackoffFactor:  2.0,
		Retryable:      transientOnly,
	}

	var backoffs []time.Duration
	onRetry := func(attempt int, err error, backoff time.Duration) {
		backoffs = append(backoffs, backoff)
	}

	_, _ = Do(context.Background(), policy, onRetry, func(context.Context) (int, error) {
		return 0, errTransient
	})

	expected := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 40 * time.Millisecond}
	if len(backoffs) != len(expected) {
		t.Fatalf("expected %d backoffs, got %v", len(expected), backoffs)
	}
	for i, exp := range expected {
		if backoffs[i] != exp {
			t.Errorf("backoff[%d]: expected %v, got %v", i, exp, backoffs[i])
		}
	}
}

func TestDo_CapsBackoffAtMax(t *testing.T) {
	policy := Policy{
		MaxAttempts:    6,
		InitialBackoff: 5 * time.Millisecond,
		MaxBackoff:     10 * time.Millisecond,
		BackoffFactor:  3.0,
		Retryable:      transientOnly,
	}

	var backoffs []time.Duration
	onRetry := func(attempt int, err error, backoff time.Duration) {
		backoffs = append(backoffs, backoff)
	}

	_, _ = Do(context.Background(), policy, onRetry, func(context.Context) (int, error) {
		return 0, errTransient
	})

	for i, b := range backoffs {
		if b > policy.MaxBackoff {
			t.Errorf("backoff[%d] = %v exceeds max %v", i, b, policy.MaxBackoff)
		}
	}
}

func TestDoVoid_RetriesAndSucceeds(t *testing.T) {
	calls := 0
	err := DoVoid(context.Background(), fastPolicy(3), nil, func(context.Context) error {
		calls++
		if calls < 2 {
			return errTransient
		}
		return nil
	})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
}

func TestNonRetryable_Nil(t *testing.T) {
	if NonRetryable(nil) != nil {
		t.Error("NonRetryable(nil) should be nil")
	}
}
