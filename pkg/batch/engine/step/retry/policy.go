// Package retry re-runs operations that fail with retryable errors, such as storage uploads.
package retry

import (
	"context"
	"time"

	config "github.com/tigerroll/stationcast/pkg/batch/core/config"
	"github.com/tigerroll/stationcast/pkg/batch/support/util/exception"
	"github.com/tigerroll/stationcast/pkg/batch/support/util/logger"
)

// RetryPolicy decides whether a failed attempt is retried and how long to wait before it.
type RetryPolicy interface {
	// ShouldRetry determines if a given error is retryable.
	ShouldRetry(err error) bool
	// GetBackoffInterval returns the wait before the attempt following attempt (starting from 1).
	GetBackoffInterval(attempt int) time.Duration
	// GetMaxAttempts returns the total number of attempts, the first one included.
	GetMaxAttempts() int
}

// NewPolicy creates a RetryPolicy with exponential backoff starting at initialInterval.
// Besides BatchErrors flagged retryable, errors matching retryableExceptions
// (see exception.IsErrorOfType) are retried.
func NewPolicy(maxAttempts int, initialInterval time.Duration, retryableExceptions ...string) RetryPolicy {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &defaultRetryPolicy{
		maxAttempts:         maxAttempts,
		initialInterval:     initialInterval,
		retryableExceptions: retryableExceptions,
	}
}

// NewPolicyFromConfig creates the RetryPolicy described by stationcast.retry.
func NewPolicyFromConfig(cfg *config.Config) RetryPolicy {
	rc := cfg.Stationcast.Retry
	return NewPolicy(rc.MaxAttempts, time.Duration(rc.InitialIntervalMillis)*time.Millisecond, rc.RetryableExceptions...)
}

// NoRetry makes exactly one attempt.
func NoRetry() RetryPolicy {
	return NewPolicy(1, 0)
}

type defaultRetryPolicy struct {
	maxAttempts         int
	initialInterval     time.Duration
	retryableExceptions []string
}

func (p *defaultRetryPolicy) GetMaxAttempts() int {
	return p.maxAttempts
}

func (p *defaultRetryPolicy) ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if exception.IsTemporary(err) {
		return true
	}
	for _, typeName := range p.retryableExceptions {
		if exception.IsErrorOfType(err, typeName) {
			return true
		}
	}
	return false
}

// GetBackoffInterval doubles the initial interval for every further attempt.
func (p *defaultRetryPolicy) GetBackoffInterval(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 16 {
		attempt = 16
	}
	return p.initialInterval << (attempt - 1)
}

// Do calls fn until it succeeds, returns a non-retryable error, or the attempts run out.
// The last error is returned. Waiting between attempts stops early when ctx is done.
func Do(ctx context.Context, policy RetryPolicy, operation string, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if attempt >= policy.GetMaxAttempts() || !policy.ShouldRetry(err) {
			return err
		}
		wait := policy.GetBackoffInterval(attempt)
		logger.Warnf("%s failed (attempt %d/%d), retrying in %s: %v", operation, attempt, policy.GetMaxAttempts(), wait, err)
		select {
		case <-ctx.Done():
			return err
		case <-time.After(wait):
		}
	}
}

var _ RetryPolicy = (*defaultRetryPolicy)(nil)
