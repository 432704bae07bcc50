// Package retry runs an operation until it succeeds or a bounded number of
// attempts is used up.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"apphost/pkg/backoff"
)

// ErrTimeout matches every *TimeoutError.
var ErrTimeout = errors.New("retry timeout")

// TimeoutError is returned when all attempts asked for another try.
type TimeoutError struct {
	Attempts int
	Last     error
}

func (e *TimeoutError) Error() string {
	if e.Last == nil {
		return fmt.Sprintf("retry timeout after %d attempts", e.Attempts)
	}
	return fmt.Sprintf("retry timeout after %d attempts: %v", e.Attempts, e.Last)
}

func (e *TimeoutError) Unwrap() error { return e.Last }

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

type againError struct{ cause error }

func (e *againError) Error() string {
	if e.cause == nil {
		return "retry requested"
	}
	return e.cause.Error()
}

func (e *againError) Unwrap() error { return e.cause }

// Again wraps cause so that Do makes another attempt instead of returning.
// cause may be nil.
func Again(cause error) error {
	return &againError{cause: cause}
}

// Options controls the attempt budget.
type Options struct {
	Times   int
	Delay   time.Duration
	Backoff bool

	// Sleep waits between attempts. Nil uses a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultOptions: five attempts, 50ms then doubling.
func DefaultOptions() Options {
	return Options{Times: 5, Delay: 50 * time.Millisecond, Backoff: true}
}

// Do invokes op up to opts.Times times. An op that returns an error built
// with Again is retried after the current delay; any other error, or
// success, ends the loop immediately. A budget below one attempt times out
// without calling op.
func Do[T any](ctx context.Context, opts Options, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	if opts.Times < 1 {
		return zero, &TimeoutError{Attempts: 0}
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	next := func() time.Duration { return 0 }
	if opts.Delay > 0 {
		delays := backoff.Constant(opts.Delay)
		if opts.Backoff {
			delays = backoff.New(opts.Delay, opts.Delay<<uint(opts.Times))
		}
		next = delays.Next
	}

	var last error
	for attempt := 1; attempt <= opts.Times; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}

		var again *againError
		if !errors.As(err, &again) {
			return zero, err
		}
		last = again.cause

		if attempt == opts.Times {
			break
		}
		if err := sleep(ctx, next()); err != nil {
			return zero, err
		}
	}

	return zero, &TimeoutError{Attempts: opts.Times, Last: last}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
