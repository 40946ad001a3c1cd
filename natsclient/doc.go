// Package natsclient wraps nats.go with a circuit breaker, slog logging,
// JetStream consumption and Prometheus metrics.
//
// The bridge uses one Client for everything that touches NATS: the inbound
// batch subscription (core or JetStream), the echo of FIX traffic, reporting
// events, and the control micro service (through Conn).
//
//	client, err := natsclient.NewClient("nats://localhost:4222",
//	    natsclient.WithName("semstreams-fix"),
//	    natsclient.WithLogger(logger),
//	    natsclient.WithMetrics(registry),
//	)
//	if err := client.Connect(ctx); err != nil { ... }
//	defer client.Close(ctx)
//
//	sub, err := client.Subscribe(ctx, "fix.client.send", "bridge",
//	    func(ctx context.Context, msg *natsclient.Msg) { ... })
//	defer sub.Unsubscribe()
//
// # Circuit breaker
//
// Consecutive failures are counted. After the threshold (default 5) the
// circuit opens and Connect, Subscribe, Publish and the JetStream helpers
// fail fast with ErrCircuitOpen. After the backoff elapses the circuit
// half-opens and the next call may try again. Backoff doubles for every
// round up to the maximum (default one minute). A successful operation
// resets it.
//
// # JetStream
//
// EnsureStream creates or updates a stream. ConsumeStream attaches a
// consumer, optionally durable, filtered to one subject, and acknowledges
// each message after the handler returns. The stream and consumer are
// tracked for the jetstream metrics when WithMetrics is set.
//
// # Testing
//
// NewTestClient and NewSharedTestClient start a NATS server container with
// testcontainers-go. Tests that use them are behind the integration build
// tag:
//
//	go test -tags integration ./natsclient/...
package natsclient
