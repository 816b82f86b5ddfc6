package pipeline

import (
	"context"
	"math/rand"
	"time"
)

const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = 250 * time.Millisecond
	defaultMaxDelay    = 10 * time.Second
)

// RetryPolicy retries transient failures with exponential backoff and jitter.
// It is shared by the media fetch and every enrichment service call so the
// retry contract lives in exactly one place.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration

	// jitterFn returns a random delay in [0, n). Overridable in tests.
	jitterFn func(n int64) int64
}

// NewRetryPolicy builds a policy with the given attempt cap and base delay,
// falling back to defaults for non-positive values.
func NewRetryPolicy(maxAttempts int, baseDelay time.Duration) RetryPolicy {
	p := RetryPolicy{
		MaxAttempts: maxAttempts,
		BaseDelay:   baseDelay,
		MaxDelay:    defaultMaxDelay,
	}
	return p.normalized()
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaultMaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = defaultBaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = defaultMaxDelay
	}
	if p.jitterFn == nil {
		p.jitterFn = rand.Int63n
	}
	return p
}

// Do invokes op up to MaxAttempts times, backing off between attempts.
// Permanent errors and context cancellation stop retries immediately. The
// returned error is the last one observed.
func (p RetryPolicy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	p = p.normalized()

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if IsPermanent(lastErr) || isAbandoned(ctx) {
			return lastErr
		}
		if attempt == p.MaxAttempts {
			break
		}

		if err := p.sleep(ctx, p.delayFor(attempt)); err != nil {
			return err
		}
	}
	return lastErr
}

// delayFor computes the backoff before the next attempt: base * 2^(attempt-1),
// capped at MaxDelay, plus up to 50% jitter.
func (p RetryPolicy) delayFor(attempt int) time.Duration {
	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= p.MaxDelay {
			delay = p.MaxDelay
			break
		}
	}
	if half := int64(delay / 2); half > 0 {
		delay += time.Duration(p.jitterFn(half))
	}
	return delay
}

func (p RetryPolicy) sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
