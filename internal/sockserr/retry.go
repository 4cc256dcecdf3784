package sockserr

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// RetryPolicy defines how retry attempts should be executed. The session
// state machine never retries (spec.md §4.3: "there is no retry logic");
// nothing in this module calls RetryWithPolicy, which is available to
// opt-in callers outside the protocol core.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Jitter       float64

	// RetryableCategories lists categories whose errors are retried in
	// addition to errors marked Retryable (which are always retried). If
	// nil, only errors marked Retryable are retried.
	RetryableCategories map[Category]bool
}

// DefaultRetryPolicy returns a sensible default retry policy.
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		Jitter:       0.1,
		RetryableCategories: map[Category]bool{
			CategoryIo:      true,
			CategoryTimeout: true,
		},
	}
}

// RetryableFunc is a function that can be retried.
type RetryableFunc func() error

// RetryWithPolicy executes fn with retry logic based on policy, returning
// the last error if all attempts fail.
func RetryWithPolicy(ctx context.Context, policy *RetryPolicy, fn RetryableFunc) error {
	if policy == nil {
		policy = DefaultRetryPolicy()
	}

	var lastErr error
	for attempt := 0; attempt <= policy.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		default:
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !policy.shouldRetry(err) {
			return err
		}
		if attempt >= policy.MaxAttempts {
			return fmt.Errorf("max retry attempts (%d) exceeded: %w", policy.MaxAttempts, err)
		}

		delay := policy.calculateDelay(attempt)
		select {
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled during backoff: %w", ctx.Err())
		case <-time.After(delay):
		}
	}
	return lastErr
}

func (p *RetryPolicy) shouldRetry(err error) bool {
	if IsRetryable(err) {
		return true
	}
	if p.RetryableCategories != nil {
		return p.RetryableCategories[GetCategory(err)]
	}
	return false
}

func (p *RetryPolicy) calculateDelay(attempt int) time.Duration {
	delay := float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(attempt))
	if delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}
	if p.Jitter > 0 {
		jitterAmount := delay * p.Jitter
		delay += (rand.Float64()*2 - 1) * jitterAmount
		if delay < 0 {
			delay = 0
		}
	}
	return time.Duration(delay)
}
