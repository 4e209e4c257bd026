package playback

import (
	"context"
	"errors"
	"testing"
	"time"
)

// TestRetryBackoffLinear tests the linear backoff schedule.
func TestRetryBackoffLinear(t *testing.T) {
	p := retryPolicy{maxAttempts: 3, delay: time.Second}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 3 * time.Second},
	}

	for _, tt := range tests {
		if got := p.backoff(tt.attempt); got != tt.want {
			t.Errorf("backoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

// TestRetryStopsAtBudget tests the attempt budget is honored exactly.
func TestRetryStopsAtBudget(t *testing.T) {
	p := retryPolicy{maxAttempts: 3, delay: time.Millisecond}

	calls := 0
	failure := errors.New("flaky")
	err := p.run(context.Background(), func() error {
		calls++
		return failure
	})

	if calls != 3 {
		t.Errorf("attempts = %d, want 3", calls)
	}
	if !errors.Is(err, failure) {
		t.Errorf("err = %v, want the last attempt error", err)
	}
}

// TestRetrySucceedsMidway tests that success halts retrying.
func TestRetrySucceedsMidway(t *testing.T) {
	p := retryPolicy{maxAttempts: 3, delay: time.Millisecond}

	calls := 0
	err := p.run(context.Background(), func() error {
		calls++
		if calls < 2 {
			return ErrFetchFailed
		}
		return nil
	})

	if err != nil {
		t.Fatalf("run() = %v, want nil", err)
	}
	if calls != 2 {
		t.Errorf("attempts = %d, want 2", calls)
	}
}

// TestRetryPermanentFailsFast tests that a permanent failure skips the
// remaining budget.
func TestRetryPermanentFailsFast(t *testing.T) {
	p := retryPolicy{maxAttempts: 3, delay: time.Millisecond}

	calls := 0
	err := p.run(context.Background(), func() error {
		calls++
		return ErrDecodeFailed
	})

	if calls != 1 {
		t.Errorf("attempts = %d, want 1", calls)
	}
	if !errors.Is(err, ErrDecodeFailed) {
		t.Errorf("err = %v, want ErrDecodeFailed", err)
	}
}

// TestRetryHonorsContext tests that cancellation interrupts the backoff
// wait.
func TestRetryHonorsContext(t *testing.T) {
	p := retryPolicy{maxAttempts: 3, delay: time.Hour}

	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := p.run(ctx, func() error {
		calls++
		return ErrFetchFailed
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("attempts = %d, want 1", calls)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("run blocked %v waiting out the backoff", elapsed)
	}
}
