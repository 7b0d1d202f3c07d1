package task

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
)

// RetryPolicy runs a function until it succeeds or the policy gives up.
type RetryPolicy interface {
	// Do calls fn at least once. It returns nil on the first success, the
	// context error if ctx ends first, and otherwise an error wrapping
	// ErrRetriesExhausted and the last fault.
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

// BackoffRetryPolicy retries with capped exponential backoff and jitter.
type BackoffRetryPolicy struct {
	// MaxAttempts counts the first call. Values below 1 mean 1.
	MaxAttempts int

	// BaseDelay is the wait before the second attempt; it doubles after that.
	BaseDelay time.Duration

	// MaxDelay caps a single wait. Zero means 30 times BaseDelay.
	MaxDelay time.Duration

	// JitterPercent randomizes each wait by up to this percentage.
	JitterPercent uint64
}

var _ RetryPolicy = (*BackoffRetryPolicy)(nil)

// NewBackoffRetryPolicy returns a policy making at most maxAttempts calls
// with 10% jitter.
func NewBackoffRetryPolicy(maxAttempts int, baseDelay time.Duration) *BackoffRetryPolicy {
	return &BackoffRetryPolicy{
		MaxAttempts:   maxAttempts,
		BaseDelay:     baseDelay,
		JitterPercent: 10,
	}
}

func (p *BackoffRetryPolicy) backoff() retry.Backoff {
	base := p.BaseDelay
	if base <= 0 {
		base = time.Millisecond
	}
	maxDelay := p.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 30 * base
	}
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	b := retry.NewExponential(base)
	b = retry.WithCappedDuration(maxDelay, b)
	if p.JitterPercent > 0 {
		b = retry.WithJitterPercent(p.JitterPercent, b)
	}
	return retry.WithMaxRetries(uint64(attempts-1), b)
}

// Do implements RetryPolicy.
func (p *BackoffRetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := 0
	err := retry.Do(ctx, p.backoff(), func(ctx context.Context) error {
		attempts++
		if err := fn(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("retry stopped after %d attempts: %w", attempts, ctxErr)
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempts, err)
}
