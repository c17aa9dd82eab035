/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package retry repeats operations against the durable store with backoff.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// IsRetryable tells if the error is transient. A nil IsRetryable treats every error as transient.
type IsRetryable func(error) bool

// RetryableFunc is function that does some work and can be potentially retried.
type RetryableFunc func(ctx context.Context) error

// Policy creates a fresh backoff for every DoWithRetry call.
type Policy interface {
	NewBackOff() backoff.BackOff
}

// PolicyFunc is an adapter to allow the use of ordinary functions as Policy.
type PolicyFunc func() backoff.BackOff

func (f PolicyFunc) NewBackOff() backoff.BackOff {
	return f()
}

// NoRetryPolicy runs the operation once.
var NoRetryPolicy Policy = PolicyFunc(func() backoff.BackOff { return &backoff.StopBackOff{} })

// ExponentialBackoffPolicy retries up to MaxRetryAttempts times with delays growing 1.5x
// from InitialInterval (with jitter). Zero MaxRetryAttempts means no retries.
type ExponentialBackoffPolicy struct {
	InitialInterval  time.Duration
	MaxRetryAttempts int
}

// NewExponentialBackoffPolicy returns an exponential backoff policy.
func NewExponentialBackoffPolicy(initialInterval time.Duration, maxRetryAttempts int) ExponentialBackoffPolicy {
	return ExponentialBackoffPolicy{InitialInterval: initialInterval, MaxRetryAttempts: maxRetryAttempts}
}

func (p ExponentialBackoffPolicy) NewBackOff() backoff.BackOff {
	if p.MaxRetryAttempts <= 0 {
		return NoRetryPolicy.NewBackOff()
	}
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.InitialInterval
	eb.MaxElapsedTime = 0 // bounded by the attempts and the context
	bo := backoff.WithMaxRetries(eb, uint64(p.MaxRetryAttempts))
	bo.Reset()
	return bo
}

// DoWithRetry calls fn until it succeeds, returns a non-retryable error, the policy gives up or ctx is done.
// notify (may be nil) is called before every retry with the error and the delay.
func DoWithRetry(ctx context.Context, p Policy, isRetryable IsRetryable, notify backoff.Notify, fn RetryableFunc) error {
	bo := backoff.WithContext(p.NewBackOff(), ctx)
	return backoff.RetryNotify(func() error {
		err := fn(ctx)
		if err != nil && isRetryable != nil && !isRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, bo, notify)
}
