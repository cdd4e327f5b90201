package generic

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy bounds transparent retries of retryable errors.
type RetryPolicy struct {
	MaxAttempts     uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy makes three attempts in total with exponential backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     3,
		InitialInterval: 10 * time.Millisecond,
		MaxInterval:     200 * time.Millisecond,
	}
}

// RetryOnConflict runs op until it succeeds, fails with a non-retryable
// error, or the policy is exhausted. onRetry, if set, is called before each
// retry. A zero MaxAttempts runs op once.
func RetryOnConflict(ctx context.Context, p RetryPolicy, op func() error, onRetry func(error)) error {
	retries := uint64(0)
	if p.MaxAttempts > 1 {
		retries = p.MaxAttempts - 1
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.InitialInterval
	eb.MaxInterval = p.MaxInterval
	eb.MaxElapsedTime = 0

	b := backoff.WithContext(backoff.WithMaxRetries(eb, retries), ctx)

	notify := func(err error, _ time.Duration) {
		if onRetry != nil {
			onRetry(err)
		}
	}

	return backoff.RetryNotify(func() error {
		err := op()
		if err == nil || IsRetryable(err) {
			return err
		}
		return backoff.Permanent(err)
	}, b, notify)
}
