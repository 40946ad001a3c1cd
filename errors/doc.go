// Package errors provides standardized error handling for the FIX bridge.
//
// Errors fall into three classes: Transient (temporary, retryable), Invalid
// (bad input or configuration, do not retry), and Fatal (stop the process).
// The classification is used at startup to pick exit behaviour and by the
// retry helper to decide whether a NATS connect attempt is worth repeating.
//
// All wrapping follows the format:
//
//	"component.method: action failed: %w"
//
// Example:
//
//	if err := client.Connect(ctx); err != nil {
//	    return errors.WrapTransient(err, "natsclient", "Connect", "dial")
//	}
//
// Chain flattens a wrapped error into its message list. Failure events use it
// to record the cause chain of a message group that could not be sent.
package errors
