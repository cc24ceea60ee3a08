// Package retry runs provider calls again when they fail transiently.
package retry

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/domain"
)

// Policy bounds how often and how slowly a call is retried.
type Policy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// OnRetry, when set, is called before sleeping for the next attempt.
	OnRetry func(attempt int, wait time.Duration, err error)

	// Sleep replaces SleepWithContext, mostly for tests.
	Sleep func(ctx context.Context, d time.Duration) bool
}

// Do calls fn until it succeeds, fails with a non-retryable error or runs out
// of attempts. attempt starts at 0. The last error is returned as is.
func Do(ctx context.Context, p Policy, fn func(attempt int) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = SleepWithContext
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if err = fn(attempt); err == nil {
			return nil
		}
		if !domain.IsRetryable(err) || attempt == attempts-1 {
			return err
		}
		wait := WithJitter(ExpBackoff(attempt, p.InitialBackoff, p.MaxBackoff))
		if p.OnRetry != nil {
			p.OnRetry(attempt+1, wait, err)
		}
		if !sleep(ctx, wait) {
			return domain.NewError(domain.KindClientCancelled, "request cancelled while waiting to retry", ctx.Err())
		}
	}
	return err
}

func SleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// ExpBackoff doubles initial per attempt, capped at max.
func ExpBackoff(attempt int, initial, max time.Duration) time.Duration {
	d := initial
	for i := 0; i < attempt; i++ {
		if max > 0 && d >= max {
			return max
		}
		d *= 2
	}
	if max > 0 && d > max {
		return max
	}
	return d
}

// WithJitter spreads d by +/-20%.
func WithJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	j := 0.8 + rand.Float64()*0.4
	return time.Duration(float64(d) * j)
}
