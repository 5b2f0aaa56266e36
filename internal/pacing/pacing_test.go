package pacing

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDelay_NextWithinRange(t *testing.T) {
	d := Delay{Min: 10 * time.Millisecond, Max: 20 * time.Millisecond}
	for i := 0; i < 200; i++ {
		got := d.Next()
		if got < d.Min || got > d.Max {
			t.Fatalf("Next() = %v outside [%v, %v]", got, d.Min, d.Max)
		}
	}
	if got := (Delay{Min: time.Second, Max: time.Second}).Next(); got != time.Second {
		t.Errorf("collapsed range: expected 1s, got %v", got)
	}
	if got := (Delay{Min: 2 * time.Second, Max: time.Second}).Next(); got != 2*time.Second {
		t.Errorf("inverted range: expected min, got %v", got)
	}
}

func TestSleep_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	if err := Sleep(ctx, time.Minute); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("cancelled sleep should return immediately")
	}
}

func noSleep(_ context.Context, _ time.Duration) error { return nil }

func TestRetry_SucceedsOnRetry(t *testing.T) {
	var calls int
	r := &Retry{MaxRetries: 1, BaseDelay: time.Second, Sleep: noSleep}
	err := r.Do(context.Background(), "fetch", func(context.Context) error {
		calls++
		if calls == 1 {
			return errors.New("timeout")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
}

func TestRetry_GivesUp(t *testing.T) {
	var calls int
	var delays []time.Duration
	boom := errors.New("boom")
	r := &Retry{
		MaxRetries: 2,
		BaseDelay:  100 * time.Millisecond,
		Sleep: func(_ context.Context, d time.Duration) error {
			delays = append(delays, d)
			return nil
		},
	}
	err := r.Do(context.Background(), "fetch", func(context.Context) error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped boom, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
	if len(delays) != 2 || delays[0] != 100*time.Millisecond || delays[1] != 200*time.Millisecond {
		t.Errorf("expected doubling backoff, got %v", delays)
	}
}

func TestRetry_NotRetryable(t *testing.T) {
	permanent := errors.New("permanent")
	var calls int
	r := &Retry{
		MaxRetries: 3,
		Sleep:      noSleep,
		Retryable:  func(err error) bool { return !errors.Is(err, permanent) },
	}
	err := r.Do(context.Background(), "fetch", func(context.Context) error {
		calls++
		return permanent
	})
	if !errors.Is(err, permanent) || calls != 1 {
		t.Errorf("expected single call returning permanent error, got %d calls, err=%v", calls, err)
	}
}
