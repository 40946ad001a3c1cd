// Package testutil provides in-memory fakes for the bridge's collaborators.
//
// MockNATSClient records publishes (with headers) per subject and feeds
// registered handlers, so echo, event and inbound paths can be tested
// without a NATS server. FakeEngine implements engine.Engine, recording
// every open, close, parse and send, with injectable failures.
package testutil
