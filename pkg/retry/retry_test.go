package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fixerrors "github.com/c360/semstreams-fix/errors"
)

func fast(attempts int) Config {
	return Config{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fast(3), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient error")
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestDoAllAttemptsFail(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fast(3), func() error {
		attempts++
		return errors.New("persistent error")
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed after 3 attempts")
	assert.Equal(t, 3, attempts)
}

func TestDoStopsOnNonRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"marked", NonRetryable(errors.New("bad credentials"))},
		{"fatal", fixerrors.WrapFatal(errors.New("boom"), "natsclient", "Connect", "authenticate")},
		{"invalid", fixerrors.WrapInvalid(fixerrors.ErrInvalidConfig, "config", "Load", "validate")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attempts := 0
			err := Do(context.Background(), fast(5), func() error {
				attempts++
				return tt.err
			})
			assert.Equal(t, 1, attempts)
			assert.Equal(t, tt.err, err)
		})
	}
}

func TestDoContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := fast(5)
	cfg.InitialDelay = time.Second
	cfg.MaxDelay = time.Second

	cfg.OnRetry = func(int, time.Duration, error) { cancel() }

	err := Do(ctx, cfg, func() error { return errors.New("fail") })
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDoOnRetryHook(t *testing.T) {
	var seen []int
	cfg := fast(3)
	cfg.OnRetry = func(attempt int, delay time.Duration, err error) {
		seen = append(seen, attempt)
		assert.Positive(t, delay)
		assert.EqualError(t, err, "nope")
	}

	_ = Do(context.Background(), cfg, func() error { return errors.New("nope") })
	assert.Equal(t, []int{1, 2}, seen)
}

func TestDoInvalidConfig(t *testing.T) {
	noop := func() error { return nil }

	assert.Error(t, Do(context.Background(), Config{InitialDelay: -1}, noop))
	assert.Error(t, Do(context.Background(), Config{MaxDelay: -1}, noop))
	assert.Error(t, Do(context.Background(), Config{Multiplier: -1}, noop))
	assert.Error(t, Do(context.Background(), Config{InitialDelay: time.Second, MaxDelay: time.Millisecond}, noop))
}

func TestNextDelayCapped(t *testing.T) {
	cfg, err := fast(3).normalize()
	require.NoError(t, err)

	assert.Equal(t, 2*time.Millisecond, cfg.next(time.Millisecond))
	assert.Equal(t, 5*time.Millisecond, cfg.next(4*time.Millisecond))
}

func TestDoWithResult(t *testing.T) {
	attempts := 0
	got, err := DoWithResult(context.Background(), fast(3), func() (string, error) {
		attempts++
		if attempts == 1 {
			return "", errors.New("once")
		}
		return "connected", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "connected", got)
}
