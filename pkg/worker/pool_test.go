package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fixerrors "github.com/c360/semstreams-fix/errors"
	"github.com/c360/semstreams-fix/metric"
)

func TestNewPoolDefaults(t *testing.T) {
	noop := func(context.Context, int) error { return nil }

	p := NewPool(3, 10, noop)
	assert.Equal(t, 3, p.workers)
	assert.Equal(t, 10, p.queueSize)

	p = NewPool(0, 0, noop)
	assert.Equal(t, 1, p.workers)
	assert.Equal(t, 1000, p.queueSize)

	assert.PanicsWithValue(t, ErrNilProcessor, func() { NewPool[int](1, 1, nil) })
}

func TestPoolProcessesAll(t *testing.T) {
	var sum atomic.Int64
	p := NewPool(4, 100, func(_ context.Context, n int) error {
		sum.Add(int64(n))
		return nil
	})
	require.NoError(t, p.Start(context.Background()))

	for i := 1; i <= 50; i++ {
		require.NoError(t, p.Submit(i))
	}
	require.NoError(t, p.Stop(5*time.Second))

	assert.Equal(t, int64(1275), sum.Load())
	stats := p.Stats()
	assert.Equal(t, int64(50), stats.Submitted)
	assert.Equal(t, int64(50), stats.Processed)
	assert.Equal(t, int64(0), stats.Dropped)
}

func TestPoolLifecycleErrors(t *testing.T) {
	p := NewPool(1, 1, func(context.Context, int) error { return nil })

	assert.ErrorIs(t, p.Submit(1), ErrPoolNotStarted)
	require.NoError(t, p.Start(context.Background()))
	assert.ErrorIs(t, p.Start(context.Background()), ErrPoolAlreadyStarted)

	require.NoError(t, p.Stop(time.Second))
	assert.ErrorIs(t, p.Submit(1), ErrPoolStopped)
	assert.NoError(t, p.Stop(time.Second))
}

func TestPoolQueueFull(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	p := NewPool(1, 1, func(context.Context, int) error {
		started <- struct{}{}
		<-release
		return nil
	})
	require.NoError(t, p.Start(context.Background()))

	require.NoError(t, p.Submit(1))
	<-started
	require.NoError(t, p.Submit(2))
	err := p.Submit(3)
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.True(t, fixerrors.IsTransient(err))
	assert.Equal(t, int64(1), p.Stats().Dropped)

	close(release)
	require.NoError(t, p.Stop(5*time.Second))
}

func TestPoolCountsFailures(t *testing.T) {
	p := NewPool(2, 10, func(_ context.Context, n int) error {
		if n%2 == 0 {
			return errors.New("even")
		}
		return nil
	})
	require.NoError(t, p.Start(context.Background()))
	for i := 0; i < 10; i++ {
		require.NoError(t, p.Submit(i))
	}
	require.NoError(t, p.Stop(5*time.Second))
	assert.Equal(t, int64(5), p.Stats().Failed)
}

func TestPoolStopTimeout(t *testing.T) {
	block := make(chan struct{})
	defer close(block)

	p := NewPool(1, 1, func(context.Context, int) error {
		<-block
		return nil
	})
	require.NoError(t, p.Start(context.Background()))
	require.NoError(t, p.Submit(1))

	assert.ErrorIs(t, p.Stop(20*time.Millisecond), ErrStopTimeout)
	assert.ErrorIs(t, p.Submit(2), ErrPoolStopped)
}

func TestPoolContextCancellationStopsWorkers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := NewPool(2, 10, func(context.Context, int) error { return nil })
	require.NoError(t, p.Start(ctx))
	cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("workers did not exit on cancellation")
	}
}

func TestPoolConcurrentSubmit(t *testing.T) {
	var processed atomic.Int64
	p := NewPool(4, 1000, func(context.Context, int) error {
		processed.Add(1)
		return nil
	})
	require.NoError(t, p.Start(context.Background()))

	var wg sync.WaitGroup
	for g := 0; g < 10; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				_ = p.Submit(i)
			}
		}()
	}
	wg.Wait()
	require.NoError(t, p.Stop(5*time.Second))

	stats := p.Stats()
	assert.Equal(t, stats.Submitted, processed.Load())
	assert.Equal(t, int64(500), stats.Submitted+stats.Dropped)
}

func TestPoolMetrics(t *testing.T) {
	registry := metric.NewMetricsRegistry()
	p := NewPool(1, 10, func(context.Context, int) error { return nil },
		WithMetricsRegistry[int](registry, "echo"))
	require.NotNil(t, p.metrics)

	require.NoError(t, p.Start(context.Background()))
	for i := 0; i < 3; i++ {
		require.NoError(t, p.Submit(i))
	}
	require.NoError(t, p.Stop(5*time.Second))

	assert.Equal(t, float64(3), testutil.ToFloat64(p.metrics.submitted))
	assert.Equal(t, float64(3), testutil.ToFloat64(p.metrics.processed))
}
