package pacing

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"
)

// Delay is a uniform random pause range used between page fetches of one source.
type Delay struct {
	Min time.Duration
	Max time.Duration
}

// Next draws a duration uniformly from [Min, Max]. A collapsed or inverted range returns Min.
func (d Delay) Next() time.Duration {
	if d.Max <= d.Min {
		return d.Min
	}
	return d.Min + time.Duration(rand.Int63n(int64(d.Max-d.Min+1)))
}

// Sleeper pauses for a duration or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the default Sleeper.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Wait sleeps for a random delay drawn from d.
func (d Delay) Wait(ctx context.Context, sleep Sleeper) error {
	if sleep == nil {
		sleep = Sleep
	}
	return sleep(ctx, d.Next())
}

// Retry re-runs an operation with exponential backoff.
type Retry struct {
	MaxRetries int
	BaseDelay  time.Duration
	Sleep      Sleeper
	Logger     logrus.FieldLogger
	// Retryable decides whether an error is worth another attempt. Nil retries everything.
	Retryable func(error) bool
}

// Do runs fn once plus at most MaxRetries retries.
func (r *Retry) Do(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	sleep := r.Sleep
	if sleep == nil {
		sleep = Sleep
	}
	delay := r.BaseDelay
	attempts := r.MaxRetries + 1

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil || (r.Retryable != nil && !r.Retryable(lastErr)) {
			return lastErr
		}
		if attempt == attempts {
			break
		}
		if r.Logger != nil {
			r.Logger.WithFields(logrus.Fields{
				"operation": operation,
				"attempt":   attempt,
				"max":       attempts,
				"backoff":   delay,
			}).Warnf("attempt failed: %v", lastErr)
		}
		if err := sleep(ctx, delay); err != nil {
			return errors.Join(lastErr, err)
		}
		delay *= 2
	}
	return fmt.Errorf("%s failed after %d attempts: %w", operation, attempts, lastErr)
}
