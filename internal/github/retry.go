package github

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy bounds retries of transient request failures. Only transport
// errors and 5xx responses qualify; 4xx responses, auth failures and rate
// limiting are permanent and surface immediately.
//
// The policy is plain data so tests can substitute an aggressive one and
// callers can disable retries entirely with MaxAttempts 1.
type RetryPolicy struct {
	MaxAttempts int           // total tries including the first
	BaseDelay   time.Duration // initial backoff delay, doubled per attempt
	MaxDelay    time.Duration // backoff ceiling
}

// DefaultRetryPolicy matches GitHub's guidance for transient failures.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 4,
		BaseDelay:   time.Second,
		MaxDelay:    15 * time.Second,
	}
}

// retry runs op under the policy. op must return a *backoff.PermanentError
// (via backoff.Permanent) for failures that should not be retried.
func (p RetryPolicy) retry(ctx context.Context, op func() error) error {
	// BackOff implementations are stateful; always build a fresh instance.
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.BaseDelay
	bo.MaxInterval = p.MaxDelay
	attempts := uint64(p.MaxAttempts)
	if attempts == 0 {
		attempts = 1
	}
	return backoff.Retry(op, backoff.WithContext(
		backoff.WithMaxRetries(bo, attempts-1), ctx))
}
