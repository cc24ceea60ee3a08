package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/domain"
	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/retry"
)

func noSleep(context.Context, time.Duration) bool { return true }

func TestDoRetriesUnavailableUntilSuccess(t *testing.T) {
	t.Parallel()
	calls := 0
	err := retry.Do(context.Background(), retry.Policy{MaxAttempts: 3, Sleep: noSleep}, func(int) error {
		calls++
		if calls < 3 {
			return domain.Errorf(domain.KindProviderUnavailable, "upstream 503")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestDoStopsOnRejected(t *testing.T) {
	t.Parallel()
	calls := 0
	err := retry.Do(context.Background(), retry.Policy{MaxAttempts: 5, Sleep: noSleep}, func(int) error {
		calls++
		return domain.Errorf(domain.KindProviderRejected, "bad request")
	})
	if !domain.IsKind(err, domain.KindProviderRejected) {
		t.Fatalf("expected rejected, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("rejected errors must not be retried, got %d calls", calls)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	t.Parallel()
	calls := 0
	var retries []int
	p := retry.Policy{
		MaxAttempts: 3,
		Sleep:       noSleep,
		OnRetry:     func(attempt int, _ time.Duration, _ error) { retries = append(retries, attempt) },
	}
	err := retry.Do(context.Background(), p, func(int) error {
		calls++
		return domain.Errorf(domain.KindProviderUnavailable, "timeout")
	})
	if !domain.IsRetryable(err) {
		t.Fatalf("expected last unavailable error, got %v", err)
	}
	if calls != 3 || len(retries) != 2 {
		t.Fatalf("calls=%d retries=%v", calls, retries)
	}
}

func TestDoHonoursCancellation(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := retry.Do(ctx, retry.Policy{MaxAttempts: 3, InitialBackoff: time.Second}, func(int) error {
		return domain.Errorf(domain.KindProviderUnavailable, "down")
	})
	if !domain.IsKind(err, domain.KindClientCancelled) {
		t.Fatalf("expected client_cancelled, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("cause should be context.Canceled, got %v", err)
	}
}

func TestExpBackoff(t *testing.T) {
	t.Parallel()
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 300 * time.Millisecond},
		{1, 600 * time.Millisecond},
		{2, 1200 * time.Millisecond},
		{3, 2400 * time.Millisecond},
		{4, 3 * time.Second},
		{70, 3 * time.Second},
	}
	for _, tc := range cases {
		if got := retry.ExpBackoff(tc.attempt, 300*time.Millisecond, 3*time.Second); got != tc.want {
			t.Fatalf("attempt %d: got %s want %s", tc.attempt, got, tc.want)
		}
	}
}

func TestWithJitterBounds(t *testing.T) {
	t.Parallel()
	base := time.Second
	for i := 0; i < 100; i++ {
		got := retry.WithJitter(base)
		if got < 800*time.Millisecond || got > 1200*time.Millisecond {
			t.Fatalf("jitter out of range: %s", got)
		}
	}
}
