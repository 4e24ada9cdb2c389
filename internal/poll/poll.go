// Package poll implements a bounded retry-with-backoff primitive for
// eventually-consistent ledger reads. The clock is injectable so callers can
// test polling behavior without real delays.
package poll

import (
	"context"
	"errors"
	"time"
)

// ErrExhausted is returned when every attempt completed without the
// condition becoming true.
var ErrExhausted = errors.New("poll attempts exhausted")

// Clock abstracts waiting so polls can run against a fake clock in tests.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RealClock returns a Clock backed by the system timer.
func RealClock() Clock { return realClock{} }

// Config bounds a poll: at most Attempts tries, waiting Delay between tries,
// with the delay multiplied by Backoff after each attempt. Backoff <= 1
// means a fixed delay.
type Config struct {
	Attempts int
	Delay    time.Duration
	Backoff  float64
}

// Do invokes fn up to cfg.Attempts times until it reports done. A non-nil
// error from fn stops the poll immediately; running out of attempts returns
// ErrExhausted.
func Do[T any](ctx context.Context, clock Clock, cfg Config, fn func(ctx context.Context) (T, bool, error)) (T, error) {
	var zero T
	delay := cfg.Delay
	for attempt := 0; attempt < cfg.Attempts; attempt++ {
		if attempt > 0 {
			if err := clock.Sleep(ctx, delay); err != nil {
				return zero, err
			}
			if cfg.Backoff > 1 {
				delay = time.Duration(float64(delay) * cfg.Backoff)
			}
		}
		v, done, err := fn(ctx)
		if err != nil {
			return zero, err
		}
		if done {
			return v, nil
		}
	}
	return zero, ErrExhausted
}
