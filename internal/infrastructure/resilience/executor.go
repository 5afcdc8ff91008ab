// Package resilience runs outbound calls under a bounded retry loop and
// one circuit breaker per operation name. Failure semantics live with the
// caller: every Execute passes a classifier that decides whether an error
// may be retried and whether the breaker counts it.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

type ErrorClassification struct {
	Retryable     bool
	RecordFailure bool
}

// ErrorClassifier maps one failure to its treatment. Classifiers must be
// non-nil; the executor never guesses on the caller's behalf.
type ErrorClassifier func(err error) ErrorClassification

type Executor struct {
	retry   RetryPolicy
	breaker BreakerPolicy

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[any]
}

func NewExecutor(cfg Config) *Executor {
	return &Executor{
		retry:    cfg.Retry.withDefaults(),
		breaker:  cfg.Breaker.withDefaults(),
		breakers: make(map[string]*gobreaker.CircuitBreaker[any]),
	}
}

func (e *Executor) Execute(
	ctx context.Context,
	operation string,
	fn func(context.Context) error,
	classify ErrorClassifier,
) error {
	if !e.breaker.Enabled {
		return e.attempt(ctx, operation, fn, classify)
	}
	_, err := e.breakerFor(operation, classify).Execute(func() (any, error) {
		return nil, e.attempt(ctx, operation, fn, classify)
	})
	return err
}

func (e *Executor) attempt(
	ctx context.Context,
	operation string,
	fn func(context.Context) error,
	classify ErrorClassifier,
) error {
	backoff := e.retry.InitialBackoff
	for attempt := 1; ; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !classify(err).Retryable || attempt == e.retry.MaxAttempts {
			return err
		}

		slog.Warn("retrying operation",
			"operation", operation,
			"attempt", attempt,
			"backoff", backoff,
			"error", err)

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
		backoff = e.retry.nextBackoff(backoff)
	}
}

func (e *Executor) breakerFor(operation string, classify ErrorClassifier) *gobreaker.CircuitBreaker[any] {
	e.mu.Lock()
	defer e.mu.Unlock()

	if br, ok := e.breakers[operation]; ok {
		return br
	}

	br := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        operation,
		MaxRequests: e.breaker.HalfOpenMaxCalls,
		Timeout:     e.breaker.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= e.breaker.MinRequests &&
				float64(counts.TotalFailures)/float64(counts.Requests) >= e.breaker.FailureRatio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !classify(err).RecordFailure
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit state changed",
				"operation", name,
				"from", from.String(),
				"to", to.String())
		},
	})
	e.breakers[operation] = br
	return br
}

// IsCircuitOpen reports whether err came from an open or saturated
// half-open breaker rather than from the operation itself.
func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
