package services

import (
	"context"
	"time"

	"github.com/custodia-labs/parley-cli/internal/core/domain"
	"github.com/custodia-labs/parley-cli/internal/logger"
)

// Default retry policy for transient provider failures.
const (
	DefaultRetryAttempts = 3
	DefaultRetryBase     = 500 * time.Millisecond
)

// RetryPolicy bounds retries of transient provider errors.
// Permanent errors are never retried.
type RetryPolicy struct {
	// Attempts is the total number of tries, including the first.
	Attempts int

	// Base is the first backoff delay; it doubles per retry.
	Base time.Duration
}

// withDefaults fills zero fields.
func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.Attempts <= 0 {
		p.Attempts = DefaultRetryAttempts
	}
	if p.Base <= 0 {
		p.Base = DefaultRetryBase
	}
	return p
}

// retry runs fn, retrying transient provider errors with exponential
// backoff. It stops early on context cancellation and on any
// non-transient error.
func retry(ctx context.Context, policy RetryPolicy, op string, fn func(context.Context) error) error {
	policy = policy.withDefaults()

	var err error
	delay := policy.Base
	for attempt := 1; ; attempt++ {
		err = fn(ctx)
		if err == nil || !domain.IsTransient(err) {
			return err
		}
		if attempt >= policy.Attempts {
			logger.Warn("%s: giving up after %d attempts: %v", op, attempt, err)
			return err
		}

		logger.Debug("%s: transient failure (attempt %d/%d), retrying in %s: %v",
			op, attempt, policy.Attempts, delay, err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
}
