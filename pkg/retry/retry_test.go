package retry

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/jhulett18/threadsrecon/pkg/errors"
)

func TestDoSucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Config{MaxAttempts: 3, Backoff: &ConstantBackoff{}}, func(ctx context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDoRetriesTransportFaults(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Config{MaxAttempts: 3, Backoff: &ConstantBackoff{Delay: time.Millisecond}}, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return stderrors.New("page load failed: net::ERR_CONNECTION_TIMED_OUT")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDoStopsOnNonRetryableFault(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Config{MaxAttempts: 5, Backoff: &ConstantBackoff{}}, func(ctx context.Context) error {
		calls++
		return errors.New(errors.ErrorTypeCheckpoint, "", "checkpoint required")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
	if errors.TypeOf(err) != errors.ErrorTypeCheckpoint {
		t.Errorf("expected checkpoint error, got %v", errors.TypeOf(err))
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Config{MaxAttempts: 3, Backoff: &ConstantBackoff{Delay: time.Millisecond}}, func(ctx context.Context) error {
		calls++
		return stderrors.New("net::ERR_NAME_NOT_RESOLVED")
	})
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
	if errors.TypeOf(err) != errors.ErrorTypeDNS {
		t.Errorf("expected final error to be classified, got %v", errors.TypeOf(err))
	}
}

func TestDoWithResultReturnsValue(t *testing.T) {
	calls := 0
	got, err := DoWithResult(context.Background(), Config{MaxAttempts: 3, Backoff: &ConstantBackoff{Delay: time.Millisecond}}, func(ctx context.Context) (string, error) {
		calls++
		if calls < 2 {
			return "", stderrors.New("net::ERR_CONNECTION_REFUSED")
		}
		return "profile", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "profile" {
		t.Errorf("expected %q, got %q", "profile", got)
	}
}

func TestDoHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	errCh := make(chan error, 1)
	go func() {
		errCh <- Do(ctx, Config{MaxAttempts: 10, Backoff: &ConstantBackoff{Delay: time.Hour}}, func(ctx context.Context) error {
			calls++
			return stderrors.New("net::ERR_CONNECTION_TIMED_OUT")
		})
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-errCh:
		if !stderrors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Do did not return after cancellation")
	}
	if calls != 1 {
		t.Errorf("expected 1 call before cancellation, got %d", calls)
	}
}

func TestOnRetryCallback(t *testing.T) {
	var attempts []int
	cfg := Config{
		MaxAttempts: 3,
		Backoff:     &ConstantBackoff{Delay: time.Millisecond},
		OnRetry: func(attempt int, err error) {
			attempts = append(attempts, attempt)
		},
	}
	_ = Do(context.Background(), cfg, func(ctx context.Context) error {
		return stderrors.New("net::ERR_CONNECTION_TIMED_OUT")
	})
	if len(attempts) != 2 {
		t.Fatalf("expected 2 retry callbacks, got %d", len(attempts))
	}
	if attempts[0] != 1 || attempts[1] != 2 {
		t.Errorf("unexpected attempt numbers: %v", attempts)
	}
}

func TestExponentialBackoffDelays(t *testing.T) {
	b := &ExponentialBackoff{
		BaseDelay:  time.Second,
		MaxDelay:   10 * time.Second,
		Multiplier: 2.0,
	}
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 10 * time.Second}, // capped
		{6, 10 * time.Second},
	}
	for _, tt := range tests {
		if got := b.NextDelay(tt.attempt); got != tt.want {
			t.Errorf("NextDelay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestExponentialBackoffJitterBounds(t *testing.T) {
	b := &ExponentialBackoff{
		BaseDelay:    time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.1,
	}
	for i := 0; i < 100; i++ {
		d := b.NextDelay(2)
		if d < 1800*time.Millisecond || d > 2200*time.Millisecond {
			t.Fatalf("jittered delay %v outside expected bounds", d)
		}
	}
}
