// Package semstreamsfix bridges NATS and FIX.
//
// Business messages arrive as batches on a NATS subject, optionally through
// a durable JetStream consumer. Each message names a session alias; the
// bridge resolves it to a FIX session run by QuickFIX/Go, parses the raw
// text with that session's dictionary and sends it. Every FIX message that
// crosses a session in either direction is echoed back onto NATS with a
// per-session, per-direction sequence, and failures are published as
// events under a root event.
//
// # Packages
//
//   - config: settings, engine configuration rendering, dictionary archives
//   - session: session identities, aliases and sequence counters
//   - engine: the FIX engine boundary and its QuickFIX/Go implementation
//   - bridge: routing of inbound batches to sessions
//   - lifecycle: start and stop of all sessions, with an optional auto-stop
//   - control: the NATS micro service exposing start and stop
//   - ledger: ordered release of everything acquired at startup
//   - message, event: wire models for batches and reporting events
//   - natsclient, metric, health, errors: shared infrastructure
//   - pkg/worker, pkg/retry, pkg/clock: small generic utilities
//
// The binary lives in cmd/semstreams-fix.
package semstreamsfix
