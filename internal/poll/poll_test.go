package poll

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	sleeps []time.Duration
}

func (f *fakeClock) Now() time.Time { return time.Unix(0, 0) }

func (f *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	f.sleeps = append(f.sleeps, d)
	return ctx.Err()
}

func TestDoSucceedsAfterRetries(t *testing.T) {
	clock := &fakeClock{}
	calls := 0

	v, err := Do(context.Background(), clock, Config{Attempts: 5, Delay: time.Second}, func(ctx context.Context) (string, bool, error) {
		calls++
		return "found", calls == 3, nil
	})

	require.NoError(t, err)
	assert.Equal(t, "found", v)
	assert.Equal(t, 3, calls)
	// No sleep before the first attempt.
	assert.Equal(t, []time.Duration{time.Second, time.Second}, clock.sleeps)
}

func TestDoExhaustsAttempts(t *testing.T) {
	clock := &fakeClock{}

	_, err := Do(context.Background(), clock, Config{Attempts: 3, Delay: time.Second}, func(ctx context.Context) (int, bool, error) {
		return 0, false, nil
	})

	assert.ErrorIs(t, err, ErrExhausted)
	assert.Len(t, clock.sleeps, 2)
}

func TestDoStopsOnError(t *testing.T) {
	clock := &fakeClock{}
	boom := errors.New("boom")
	calls := 0

	_, err := Do(context.Background(), clock, Config{Attempts: 5, Delay: time.Second}, func(ctx context.Context) (int, bool, error) {
		calls++
		return 0, false, boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestDoBackoffMultiplier(t *testing.T) {
	clock := &fakeClock{}

	_, err := Do(context.Background(), clock, Config{Attempts: 4, Delay: time.Second, Backoff: 2}, func(ctx context.Context) (int, bool, error) {
		return 0, false, nil
	})

	assert.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, clock.sleeps)
}

func TestDoRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	clock := &fakeClock{}

	_, err := Do(ctx, clock, Config{Attempts: 3, Delay: time.Second}, func(ctx context.Context) (int, bool, error) {
		return 0, false, nil
	})

	assert.ErrorIs(t, err, context.Canceled)
}
