// Package resilience provides the exponential backoff loop wrapped around provider calls.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrAttemptsExhausted is returned by Retry when every attempt failed with a retryable error.
var ErrAttemptsExhausted = errors.New("retry: attempts exhausted")

// Backoff holds configuration for the exponential backoff retry logic.
type Backoff struct {
	MaxAttempts  int           // Total number of attempts, including the first
	InitialDelay time.Duration // Delay before the second attempt
	Multiplier   float64       // Growth factor applied per attempt
}

// DefaultBackoff returns the backoff used when nothing is configured.
func DefaultBackoff() Backoff {
	return Backoff{
		MaxAttempts:  3,
		InitialDelay: time.Second,
		Multiplier:   2,
	}
}

// Validate checks the invariants the retry loop relies on.
func (b Backoff) Validate() error {
	switch {
	case b.MaxAttempts < 1:
		return fmt.Errorf("retry: max attempts must be >= 1, got %d", b.MaxAttempts)
	case b.InitialDelay <= 0:
		return fmt.Errorf("retry: initial delay must be > 0, got %s", b.InitialDelay)
	case b.Multiplier <= 1:
		return fmt.Errorf("retry: multiplier must be > 1, got %g", b.Multiplier)
	}
	return nil
}

// Delay returns the wait after the given zero-based failed attempt:
// initialDelay * multiplier^attempt.
func (b Backoff) Delay(attempt int) time.Duration {
	d := float64(b.InitialDelay) * math.Pow(b.Multiplier, float64(attempt))
	if d >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}

// Sleeper waits for d or until ctx is done, whichever comes first.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the default Sleeper. Only the calling goroutine is suspended.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Attempt is one call inside the retry loop. attempt is zero-based.
type Attempt func(ctx context.Context, attempt int) error

// Options tune a single Retry invocation.
type Options struct {
	// Retryable decides whether an error may be retried. Nil retries nothing.
	Retryable func(error) bool
	// Sleep replaces the default timer-based wait.
	Sleep Sleeper
	// OnBackoff is called before each wait.
	OnBackoff func(attempt int, delay time.Duration, err error)
}

// Retry executes fn until it succeeds, fails with a non-retryable error, or
// b.MaxAttempts attempts have been made. No wait follows the final attempt.
// Context cancellation before an attempt or during a wait aborts the loop
// and returns the context error.
func Retry(ctx context.Context, b Backoff, opts Options, fn Attempt) error {
	if err := b.Validate(); err != nil {
		return err
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = Sleep
	}

	var lastErr error
	for attempt := 0; attempt < b.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("retry: context done before attempt %d: %w", attempt+1, err)
		}

		lastErr = fn(ctx, attempt)
		if lastErr == nil {
			return nil
		}
		if opts.Retryable == nil || !opts.Retryable(lastErr) {
			return lastErr
		}

		// Don't sleep after the last attempt
		if attempt == b.MaxAttempts-1 {
			break
		}

		delay := b.Delay(attempt)
		if opts.OnBackoff != nil {
			opts.OnBackoff(attempt, delay, lastErr)
		}
		if err := sleep(ctx, delay); err != nil {
			return fmt.Errorf("retry: context done during backoff: %w", err)
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrAttemptsExhausted, b.MaxAttempts, lastErr)
}
