// Package retry wraps an operation in exponential backoff with jitter.
//
// The bridge uses it for the NATS connection at boot:
//
//	cfg := retry.Persistent()
//	cfg.OnRetry = func(attempt int, delay time.Duration, err error) {
//	    logger.Warn("NATS connect failed, retrying", "attempt", attempt, "delay", delay, "error", err)
//	}
//	nc, err := retry.DoWithResult(ctx, cfg, connect)
//
// Errors wrapped with NonRetryable, and errors the errors package classifies
// as fatal or invalid, end the loop immediately. Cancellation of ctx is
// honoured both between attempts and during backoff.
package retry
