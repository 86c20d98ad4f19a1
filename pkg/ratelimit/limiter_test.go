package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestTokenBucketAllow(t *testing.T) {
	tb := NewTokenBucket(3, time.Minute)

	for i := 0; i < 3; i++ {
		if !tb.Allow() {
			t.Fatalf("expected request %d to be allowed", i+1)
		}
	}
	if tb.Allow() {
		t.Error("expected request beyond capacity to be denied")
	}
}

func TestTokenBucketRefill(t *testing.T) {
	tb := NewTokenBucket(1, 20*time.Millisecond)

	if !tb.Allow() {
		t.Fatal("expected first request to be allowed")
	}
	if tb.Allow() {
		t.Fatal("expected bucket to be empty")
	}

	time.Sleep(30 * time.Millisecond)
	if !tb.Allow() {
		t.Error("expected bucket to refill after the period elapsed")
	}
}

func TestTokenBucketReset(t *testing.T) {
	tb := NewTokenBucket(1, time.Minute)
	tb.Allow()
	tb.Reset()
	if !tb.Allow() {
		t.Error("expected request to be allowed after reset")
	}
}

func TestPacerBounds(t *testing.T) {
	p := NewPacer(5*time.Millisecond, 20*time.Millisecond)

	for i := 0; i < 10; i++ {
		d := p.next()
		if d < 5*time.Millisecond || d > 20*time.Millisecond {
			t.Errorf("pause duration %v outside [5ms, 20ms]", d)
		}
	}
}

func TestPacerPauseRespectsContext(t *testing.T) {
	p := NewPacer(time.Minute, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := p.Pause(ctx)
	if err == nil {
		t.Error("expected context error from canceled pause")
	}
	if time.Since(start) > time.Second {
		t.Error("Pause did not return promptly on cancellation")
	}
}

func TestPacerClampedMax(t *testing.T) {
	p := NewPacer(10*time.Millisecond, time.Millisecond)
	if d := p.next(); d != 10*time.Millisecond {
		t.Errorf("expected clamped pause of 10ms, got %v", d)
	}
}
