package shipx

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"
)

const (
	DefaultRetryAttempts  = 3
	DefaultRetryBaseDelay = time.Second
)

// RetryPolicy bounds WithRetry. Delay before retry n is BaseDelay*n.
type RetryPolicy struct {
	Attempts  int
	BaseDelay time.Duration
	OnRetry   func(attempt int, err error, delay time.Duration)
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.Attempts <= 0 {
		p.Attempts = DefaultRetryAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultRetryBaseDelay
	}
	return p
}

// WithRetry runs fn until it succeeds, fails with a non-retryable error, or the
// attempt cap is reached. The last error is returned unwrapped.
func WithRetry[T any](ctx context.Context, policy RetryPolicy, fn func(ctx context.Context) (T, error)) (T, error) {
	policy = policy.normalized()

	var (
		result  T
		attempt int
		lastErr error
	)
	backoff := retry.BackoffFunc(func() (time.Duration, bool) {
		attempt++
		if attempt >= policy.Attempts {
			return 0, true
		}
		delay := policy.BaseDelay * time.Duration(attempt)
		if policy.OnRetry != nil {
			policy.OnRetry(attempt, lastErr, delay)
		}
		return delay, false
	})

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		value, err := fn(ctx)
		if err != nil {
			lastErr = err
			if IsRetryable(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		result = value
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}
