//go:build integration

package natsclient

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/semstreams-fix/metric"
)

func TestIntegrationConnect(t *testing.T) {
	tc := NewTestClient(t, WithFastStartup())

	assert.True(t, tc.Client.IsHealthy())
	assert.Equal(t, StatusConnected, tc.Client.Status())

	rtt, err := tc.Client.RTT()
	require.NoError(t, err)
	assert.Positive(t, rtt)
}

func TestIntegrationPublishSubscribeWithHeaders(t *testing.T) {
	tc := NewTestClient(t)
	ctx := context.Background()

	received := make(chan *Msg, 1)
	sub, err := tc.Client.Subscribe(ctx, "fix.client.raw.>", "", func(_ context.Context, msg *Msg) {
		received <- msg
	})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	header := nats.Header{}
	header.Set("Content-Type", "application/json")
	require.NoError(t, tc.Client.PublishMsg(ctx, "fix.client.raw.first", []byte(`{"groups":[]}`), header))

	select {
	case msg := <-received:
		assert.Equal(t, "fix.client.raw.first", msg.Subject)
		assert.Equal(t, `{"groups":[]}`, string(msg.Data))
		assert.Equal(t, "application/json", msg.Header.Get("Content-Type"))
	case <-time.After(5 * time.Second):
		t.Fatal("message not received")
	}
}

func TestIntegrationQueueGroup(t *testing.T) {
	tc := NewTestClient(t)
	ctx := context.Background()

	var mu sync.Mutex
	count := 0
	var wg sync.WaitGroup
	wg.Add(10)
	handler := func(context.Context, *Msg) {
		mu.Lock()
		count++
		mu.Unlock()
		wg.Done()
	}

	for i := 0; i < 2; i++ {
		_, err := tc.Client.Subscribe(ctx, "fix.client.send", "bridge", handler)
		require.NoError(t, err)
	}
	for i := 0; i < 10; i++ {
		require.NoError(t, tc.Client.Publish(ctx, "fix.client.send", []byte("x")))
	}

	wg.Wait()
	time.Sleep(100 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 10, count, "each message delivered once across the queue group")
}

func TestIntegrationConsumeStream(t *testing.T) {
	tc := NewTestClient(t, WithJetStream())
	ctx := context.Background()

	_, err := tc.Client.EnsureStream(ctx, jetstream.StreamConfig{
		Name:     "FIX_SEND",
		Subjects: []string{"fix.client.send"},
	})
	require.NoError(t, err)

	received := make(chan string, 3)
	sub, err := tc.Client.ConsumeStream(ctx, "FIX_SEND", "fix.client.send", "bridge", func(_ context.Context, msg *Msg) {
		received <- string(msg.Data)
	})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	js, err := tc.Client.JetStream()
	require.NoError(t, err)
	for _, body := range []string{"a", "b", "c"} {
		_, err := js.Publish(ctx, "fix.client.send", []byte(body))
		require.NoError(t, err)
	}

	var got []string
	for len(got) < 3 {
		select {
		case body := <-received:
			got = append(got, body)
		case <-time.After(5 * time.Second):
			t.Fatalf("received %v", got)
		}
	}
	assert.Equal(t, []string{"a", "b", "c"}, got)

	consumer, err := js.Consumer(ctx, "FIX_SEND", "bridge")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		info, err := consumer.Info(ctx)
		return err == nil && info.AckFloor.Stream == 3
	}, 5*time.Second, 50*time.Millisecond)
}

func TestIntegrationJetStreamMetrics(t *testing.T) {
	tc := NewTestClient(t, WithJetStream())
	ctx := context.Background()

	registry := metric.NewMetricsRegistry()
	client, err := NewClient(tc.URL, WithMetrics(registry), WithHealthInterval(0))
	require.NoError(t, err)
	require.NoError(t, client.Connect(ctx))
	defer client.Close(ctx)

	_, err = client.EnsureStream(ctx, jetstream.StreamConfig{Name: "METRICS", Subjects: []string{"metrics.>"}})
	require.NoError(t, err)
	require.NoError(t, client.Publish(ctx, "metrics.one", []byte("1")))
	time.Sleep(100 * time.Millisecond)

	client.jsMetrics.updateStats(ctx)

	families, err := registry.PrometheusRegistry().Gather()
	require.NoError(t, err)
	found := false
	for _, mf := range families {
		if mf.GetName() == "semstreams_fix_jetstream_stream_messages" {
			found = true
		}
	}
	assert.True(t, found)
}
