package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/c360/semstreams-fix/natsclient"
)

// Published is one message recorded by MockNATSClient.
type Published struct {
	Subject string
	Data    []byte
	Header  nats.Header
}

// MockNATSClient is an in-memory stand-in for natsclient.Client's publish
// side. Subscribers registered with Subscribe receive every message on the
// exact subject synchronously. Safe for concurrent use.
type MockNATSClient struct {
	mu            sync.RWMutex
	messages      map[string][]Published
	subscriptions map[string][]natsclient.Handler
	publishErr    error
	closed        bool
}

// NewMockNATSClient creates a new mock NATS client.
func NewMockNATSClient() *MockNATSClient {
	return &MockNATSClient{
		messages:      make(map[string][]Published),
		subscriptions: make(map[string][]natsclient.Handler),
	}
}

// FailPublish makes subsequent publishes return err; nil restores success.
func (c *MockNATSClient) FailPublish(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.publishErr = err
}

// Publish records data on subject.
func (c *MockNATSClient) Publish(ctx context.Context, subject string, data []byte) error {
	return c.PublishMsg(ctx, subject, data, nil)
}

// PublishMsg records data with headers on subject and delivers it to
// subscribers.
func (c *MockNATSClient) PublishMsg(ctx context.Context, subject string, data []byte, header nats.Header) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return natsclient.ErrClosed
	}
	if c.publishErr != nil {
		err := c.publishErr
		c.mu.Unlock()
		return err
	}

	c.messages[subject] = append(c.messages[subject], Published{Subject: subject, Data: data, Header: header})
	handlers := append([]natsclient.Handler(nil), c.subscriptions[subject]...)
	c.mu.Unlock()

	for _, handler := range handlers {
		handler(ctx, &natsclient.Msg{Subject: subject, Data: data, Header: header})
	}
	return nil
}

// Subscribe registers handler for subject.
func (c *MockNATSClient) Subscribe(subject string, handler natsclient.Handler) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("client is closed")
	}
	c.subscriptions[subject] = append(c.subscriptions[subject], handler)
	return nil
}

// GetPublished returns a copy of everything published on subject.
func (c *MockNATSClient) GetPublished(subject string) []Published {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Published(nil), c.messages[subject]...)
}

// GetMessages returns the payloads published on subject.
func (c *MockNATSClient) GetMessages(subject string) [][]byte {
	c.mu.RLock()
	defer c.mu.RUnlock()

	msgs := c.messages[subject]
	if msgs == nil {
		return nil
	}
	result := make([][]byte, len(msgs))
	for i, m := range msgs {
		result[i] = m.Data
	}
	return result
}

// GetMessageCount returns the number of messages on a subject.
func (c *MockNATSClient) GetMessageCount(subject string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.messages[subject])
}

// Close closes the mock client.
func (c *MockNATSClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// WaitForMessageCount waits for count messages on subject.
func WaitForMessageCount(t *testing.T, client *MockNATSClient, subject string, count int, timeout time.Duration) [][]byte {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for {
		if msgs := client.GetMessages(subject); len(msgs) >= count {
			return msgs
		}
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for %d messages on subject %s (got %d)",
				count, subject, client.GetMessageCount(subject))
			return nil
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// AssertNoMessages checks that no messages were published on subject.
func AssertNoMessages(t *testing.T, client *MockNATSClient, subject string) {
	t.Helper()

	if n := client.GetMessageCount(subject); n > 0 {
		t.Fatalf("expected no messages on subject %s, got %d", subject, n)
	}
}
