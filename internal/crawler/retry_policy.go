package crawler

import (
	"context"
	"fmt"
	"math"
	"time"
)

// RetryPolicy decides how many attempts a page fetch gets and how long to wait
// between them.
type RetryPolicy interface {
	MaxAttempts() int
	Backoff(retries int) time.Duration
}

// ExponentialRetryPolicy waits base * 2^retries after each failed attempt.
// Growth is unbounded: with the default base of one second and three attempts
// the final wait is eight seconds.
type ExponentialRetryPolicy struct {
	maxAttempts int
	baseDelay   time.Duration
}

// NewExponentialRetryPolicy builds a policy with one-second base delay.
func NewExponentialRetryPolicy(maxAttempts int) *ExponentialRetryPolicy {
	return NewExponentialRetryPolicyWithBase(maxAttempts, time.Second)
}

// NewExponentialRetryPolicyWithBase allows tests to shrink the delay unit.
func NewExponentialRetryPolicyWithBase(maxAttempts int, base time.Duration) *ExponentialRetryPolicy {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	if base < 0 {
		base = 0
	}
	return &ExponentialRetryPolicy{
		maxAttempts: maxAttempts,
		baseDelay:   base,
	}
}

// MaxAttempts returns the total number of GET attempts allowed.
func (p *ExponentialRetryPolicy) MaxAttempts() int {
	return p.maxAttempts
}

// Backoff returns the wait after the retries-th failure (retries starts at 1).
func (p *ExponentialRetryPolicy) Backoff(retries int) time.Duration {
	return time.Duration(float64(p.baseDelay) * math.Pow(2, float64(retries)))
}

// sleepContext waits for d or until ctx ends, whichever comes first.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("backoff interrupted: %w", ctx.Err())
	}
}
