package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
)

func retryOnlyConfig(maxAttempts int) Config {
	return Config{
		Retry: RetryPolicy{
			MaxAttempts:    maxAttempts,
			InitialBackoff: time.Millisecond,
			MaxBackoff:     2 * time.Millisecond,
			Multiplier:     2,
		},
		Breaker: BreakerPolicy{Enabled: false},
	}
}

func alwaysRetry(err error) ErrorClassification {
	return ErrorClassification{Retryable: true, RecordFailure: true}
}

func neverRetry(err error) ErrorClassification {
	return ErrorClassification{Retryable: false, RecordFailure: true}
}

func TestExecuteRetriesUntilSuccess(t *testing.T) {
	exec := NewExecutor(retryOnlyConfig(3))

	attempts := 0
	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	}, alwaysRetry)
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestExecuteGivesUpAfterMaxAttempts(t *testing.T) {
	exec := NewExecutor(retryOnlyConfig(2))

	attempts := 0
	errTransient := errors.New("transient")
	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		attempts++
		return errTransient
	}, alwaysRetry)
	if !errors.Is(err, errTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
	if attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts)
	}
}

func TestExecuteNonRetryableFailsOnFirstAttempt(t *testing.T) {
	exec := NewExecutor(retryOnlyConfig(3))

	attempts := 0
	errPermanent := errors.New("permanent")
	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		attempts++
		return errPermanent
	}, neverRetry)
	if !errors.Is(err, errPermanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
}

func TestExecuteStopsRetryingWhenContextCancelled(t *testing.T) {
	exec := NewExecutor(retryOnlyConfig(5))

	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	errTransient := errors.New("transient")
	err := exec.Execute(ctx, "op", func(context.Context) error {
		attempts++
		cancel()
		return errTransient
	}, alwaysRetry)
	if !errors.Is(err, errTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt before cancellation, got %d", attempts)
	}
}

func TestExecuteOpensCircuitAfterFailures(t *testing.T) {
	exec := NewExecutor(Config{
		Retry: RetryPolicy{
			MaxAttempts:    1,
			InitialBackoff: time.Millisecond,
			MaxBackoff:     time.Millisecond,
			Multiplier:     2,
		},
		Breaker: BreakerPolicy{
			Enabled:          true,
			MinRequests:      2,
			FailureRatio:     0.5,
			OpenTimeout:      50 * time.Millisecond,
			HalfOpenMaxCalls: 1,
		},
	})

	errDown := errors.New("down")
	for i := 0; i < 2; i++ {
		err := exec.Execute(context.Background(), "op", func(context.Context) error {
			return errDown
		}, neverRetry)
		if !errors.Is(err, errDown) {
			t.Fatalf("iteration %d: expected down error, got %v", i, err)
		}
	}

	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		t.Fatal("open circuit must not invoke the operation")
		return nil
	}, neverRetry)
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected open state error, got %v", err)
	}
	if !IsCircuitOpen(err) {
		t.Fatalf("IsCircuitOpen(%v) = false, want true", err)
	}
}

func TestBreakerIsPerOperation(t *testing.T) {
	exec := NewExecutor(Config{
		Retry: RetryPolicy{
			MaxAttempts:    1,
			InitialBackoff: time.Millisecond,
			MaxBackoff:     time.Millisecond,
			Multiplier:     2,
		},
		Breaker: BreakerPolicy{
			Enabled:          true,
			MinRequests:      2,
			FailureRatio:     0.5,
			OpenTimeout:      50 * time.Millisecond,
			HalfOpenMaxCalls: 1,
		},
	})

	errDown := errors.New("down")
	for i := 0; i < 3; i++ {
		_ = exec.Execute(context.Background(), "failing", func(context.Context) error {
			return errDown
		}, neverRetry)
	}

	err := exec.Execute(context.Background(), "healthy", func(context.Context) error {
		return nil
	}, neverRetry)
	if err != nil {
		t.Fatalf("healthy operation must not share the tripped breaker, got %v", err)
	}
}
