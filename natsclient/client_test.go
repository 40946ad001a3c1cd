package natsclient

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/semstreams-fix/errors"
	"github.com/c360/semstreams-fix/metric"
)

func TestNewClient(t *testing.T) {
	client, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	assert.Equal(t, "nats://localhost:4222", client.URL())
	assert.Equal(t, StatusDisconnected, client.Status())
	assert.False(t, client.IsHealthy())
	assert.Nil(t, client.Conn())
}

func TestNewClientMultipleURLs(t *testing.T) {
	client, err := NewClient(" nats://a:4222, nats://b:4222 ,")
	require.NoError(t, err)
	assert.Equal(t, "nats://a:4222,nats://b:4222", client.URL())
}

func TestNewClientEmptyURL(t *testing.T) {
	_, err := NewClient(" , ")
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestCircuitBreakerOpensAfterFailures(t *testing.T) {
	client, err := NewClient("nats://invalid:4222")
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		client.recordFailure()
	}
	assert.NotEqual(t, StatusCircuitOpen, client.Status())

	client.recordFailure()
	assert.Equal(t, StatusCircuitOpen, client.Status())
	assert.Equal(t, int32(5), client.Failures())

	err = client.Connect(context.Background())
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestCircuitBreakerThresholdOption(t *testing.T) {
	client, err := NewClient("nats://invalid:4222", WithCircuitBreakerThreshold(2))
	require.NoError(t, err)

	client.recordFailure()
	client.recordFailure()
	assert.Equal(t, StatusCircuitOpen, client.Status())
}

func TestCircuitBreakerReset(t *testing.T) {
	client, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		client.recordFailure()
	}
	require.Equal(t, StatusCircuitOpen, client.Status())

	client.resetCircuit()
	assert.Equal(t, int32(0), client.Failures())
	assert.Equal(t, StatusDisconnected, client.Status())
	assert.Equal(t, time.Second, client.Backoff())
}

func TestCircuitBreakerHalfOpen(t *testing.T) {
	client, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		client.recordFailure()
	}
	client.testCircuit()
	assert.Equal(t, StatusDisconnected, client.Status())
}

func TestCircuitBreakerExponentialBackoff(t *testing.T) {
	client, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)
	assert.Equal(t, time.Second, client.Backoff())

	for i := 0; i < 5; i++ {
		client.recordFailure()
	}
	assert.Equal(t, 2*time.Second, client.Backoff())

	for i := 0; i < 5; i++ {
		client.recordFailure()
	}
	assert.Equal(t, 4*time.Second, client.Backoff())

	for i := 0; i < 100; i++ {
		client.recordFailure()
	}
	assert.Equal(t, time.Minute, client.Backoff())
}

func TestIsHealthy(t *testing.T) {
	tests := []struct {
		status   ConnectionStatus
		expected bool
	}{
		{StatusConnected, true},
		{StatusDisconnected, false},
		{StatusConnecting, false},
		{StatusReconnecting, false},
		{StatusCircuitOpen, false},
	}

	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			client, err := NewClient("nats://localhost:4222")
			require.NoError(t, err)
			client.setStatus(tt.status)
			assert.Equal(t, tt.expected, client.IsHealthy())
		})
	}
}

func TestConnectionStatusString(t *testing.T) {
	assert.Equal(t, "circuit_open", StatusCircuitOpen.String())
	assert.Equal(t, "unknown", ConnectionStatus(42).String())
}

func TestConcurrentSafety(t *testing.T) {
	client, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for _, fn := range []func(){
		func() { client.setStatus(StatusConnecting) },
		func() { client.setStatus(StatusConnected) },
		func() { _ = client.Status() },
		func() { client.recordFailure() },
		func() { client.resetCircuit() },
	} {
		wg.Add(1)
		go func(fn func()) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				fn()
			}
		}(fn)
	}
	wg.Wait()

	assert.Contains(t, []ConnectionStatus{
		StatusDisconnected, StatusConnecting, StatusConnected, StatusReconnecting, StatusCircuitOpen,
	}, client.Status())
}

func TestOperationsRequireConnection(t *testing.T) {
	client, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)
	ctx := context.Background()
	noop := func(context.Context, *Msg) {}

	_, err = client.Subscribe(ctx, "fix.client.send", "", noop)
	assert.ErrorIs(t, err, ErrNotConnected)

	assert.ErrorIs(t, client.Publish(ctx, "x", []byte("y")), ErrNotConnected)

	_, err = client.ConsumeStream(ctx, "FIX", "fix.client.send", "", noop)
	assert.ErrorIs(t, err, ErrNotConnected)

	_, err = client.RTT()
	assert.ErrorIs(t, err, ErrNotConnected)

	_, err = client.JetStream()
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestConnectFailureRecorded(t *testing.T) {
	client, err := NewClient("nats://127.0.0.1:1", WithTimeout(200*time.Millisecond))
	require.NoError(t, err)

	err = client.Connect(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsTransient(err))
	assert.Equal(t, int32(1), client.Failures())
	assert.Equal(t, StatusDisconnected, client.Status())
}

func TestCloseIdempotent(t *testing.T) {
	client, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	assert.NoError(t, client.Close(context.Background()))
	assert.NoError(t, client.Close(context.Background()))
	assert.ErrorIs(t, client.Connect(context.Background()), ErrClosed)
	assert.ErrorIs(t, client.Publish(context.Background(), "x", nil), ErrClosed)
}

func TestConnectionOptions(t *testing.T) {
	client, err := NewClient("nats://localhost:4222",
		WithCredentials("user", "pass"),
		WithToken("tok"),
		WithName("semstreams-fix"),
	)
	require.NoError(t, err)

	// base options plus user info, token and name
	assert.Len(t, client.connectionOptions(), 12)
}

func TestWithMetricsRecordsStatus(t *testing.T) {
	registry := metric.NewMetricsRegistry()
	client, err := NewClient("nats://localhost:4222", WithMetrics(registry))
	require.NoError(t, err)
	require.NotNil(t, client.jsMetrics)

	client.setStatus(StatusConnected)
	assert.Equal(t, float64(1), testutil.ToFloat64(registry.CoreMetrics().NATSConnected))
	client.setStatus(StatusReconnecting)
	assert.Equal(t, float64(0), testutil.ToFloat64(registry.CoreMetrics().NATSConnected))

	client.jsMetrics.recordError("create_stream")
	assert.Equal(t, float64(1), testutil.ToFloat64(client.jsMetrics.errors.WithLabelValues("create_stream")))
}

func TestSubscriptionUnsubscribeIdempotent(t *testing.T) {
	s := &Subscription{name: "empty"}
	assert.NoError(t, s.Unsubscribe())
	assert.NoError(t, s.Unsubscribe())
	assert.Equal(t, "empty", s.Name())
}

func TestClientOptionsFromConfig(t *testing.T) {
	client, err := NewClient("nats://localhost:4222",
		WithTimeout(time.Second),
		WithPingInterval(5*time.Second),
		WithDrainTimeout(3*time.Second),
		WithHandlerTimeout(2*time.Second),
		WithMaxBackoff(10*time.Second),
		WithHealthInterval(0),
	)
	require.NoError(t, err)

	assert.Equal(t, time.Second, client.timeout)
	assert.Equal(t, 5*time.Second, client.pingInterval)
	assert.Equal(t, 3*time.Second, client.drainTimeout)
	assert.Equal(t, 2*time.Second, client.handlerTimeout)
	assert.Equal(t, 10*time.Second, client.maxBackoff)
	assert.Zero(t, client.healthInterval)

	// Zero durations keep the defaults.
	client, err = NewClient("nats://localhost:4222",
		WithPingInterval(0), WithDrainTimeout(0), WithHandlerTimeout(0), WithMaxBackoff(0))
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, client.pingInterval)
	assert.Equal(t, 30*time.Second, client.drainTimeout)
	assert.Equal(t, 30*time.Second, client.handlerTimeout)
	assert.Equal(t, time.Minute, client.maxBackoff)
}

func TestDisconnectCallback(t *testing.T) {
	causes := make(chan error, 1)
	health := make(chan bool, 1)
	client, err := NewClient("nats://localhost:4222",
		WithDisconnectCallback(func(err error) { causes <- err }),
		WithHealthChangeCallback(func(healthy bool) { health <- healthy }),
	)
	require.NoError(t, err)

	cause := errors.ErrConnectionLost
	client.handleDisconnect(nil, cause)

	select {
	case got := <-causes:
		assert.ErrorIs(t, got, cause)
	case <-time.After(time.Second):
		t.Fatal("disconnect callback not called")
	}
	select {
	case healthy := <-health:
		assert.False(t, healthy)
	case <-time.After(time.Second):
		t.Fatal("health callback not called")
	}
	assert.Equal(t, StatusReconnecting, client.Status())
}
