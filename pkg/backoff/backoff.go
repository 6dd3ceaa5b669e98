// Package backoff is the retry policy shared by inference, retrieval and
// notification re-delivery.
package backoff

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"
)

type Policy struct {
	Attempts int           `split_words:"true" default:"3"`
	Base     time.Duration `split_words:"true" default:"200ms"`
	Max      time.Duration `split_words:"true" default:"2s"`
	Jitter   time.Duration `split_words:"true" default:"50ms"`
}

func (p Policy) normalized() Policy {
	if p.Attempts <= 0 {
		p.Attempts = 1
	}
	if p.Attempts > 20 {
		p.Attempts = 20
	}
	if p.Base <= 0 {
		p.Base = 100 * time.Millisecond
	}
	if p.Max < p.Base {
		p.Max = p.Base
	}
	return p
}

// Backoff builds a fresh go-retry backoff. Backoffs are stateful, so callers
// need one per operation.
func (p Policy) Backoff() retry.Backoff {
	p = p.normalized()
	b := retry.NewExponential(p.Base)
	b = retry.WithCappedDuration(p.Max, b)
	if p.Jitter > 0 {
		b = retry.WithJitter(p.Jitter, b)
	}
	// Attempts counts the first call too.
	return retry.WithMaxRetries(uint64(p.Attempts-1), b) // #nosec G115 -- bounded by normalized
}

// Do runs fn until it succeeds, returns a non-retryable error, the policy is
// exhausted or ctx is done. A nil retryable treats every error as transient.
// onRetry, when set, sees each failed attempt before the wait.
func Do[T any](
	ctx context.Context,
	p Policy,
	fn func(ctx context.Context) (T, error),
	retryable func(error) bool,
	onRetry func(attempt int, err error),
) (T, error) {
	var (
		out     T
		attempt int
	)
	err := retry.Do(ctx, p.Backoff(), func(ctx context.Context) error {
		attempt++
		v, callErr := fn(ctx)
		if callErr == nil {
			out = v
			return nil
		}
		if onRetry != nil {
			onRetry(attempt, callErr)
		}
		if retryable != nil && !retryable(callErr) {
			return callErr
		}
		if ctx.Err() != nil {
			return callErr
		}
		return retry.RetryableError(callErr)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// Transient is the default classifier: caller cancellation is final,
// everything else is worth another try.
func Transient(err error) bool {
	return !errors.Is(err, context.Canceled)
}
