package lms

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/inpyohongb/kurlyro/internal/domain"
)

// RetryPolicy bounds the attempts for one page fetch. It is a plain value
// injected into the client so the backoff shape is independent of the
// transport.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     5 * time.Second,
	}
}

// Do runs op under the policy. op errors are retried with exponential
// backoff unless retryable reports them permanent; auth failures are
// always permanent (the caller decides whether to retry the whole cycle).
// A zero-value policy degenerates to a single attempt, never an unbounded
// budget.
func (p RetryPolicy) Do(ctx context.Context, op func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	bo := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		bo.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		bo.MaxInterval = p.MaxInterval
	}

	wrapped := func() error {
		err := op()
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	return backoff.Retry(wrapped, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(attempts-1)), ctx))
}

// retryable reports whether an error is worth another attempt: server-side
// 5xx responses and connection-level failures are; auth failures, 4xx
// responses and undecodable bodies are not.
func retryable(err error) bool {
	if errors.Is(err, domain.ErrAuth) || errors.Is(err, errBadPayload) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code >= 500
	}
	// Transport-level failure (connection refused, timeout, ...).
	return true
}
