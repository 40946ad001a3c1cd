// Package worker provides a generic bounded worker pool.
//
// Work is submitted without blocking: when the queue is full Submit returns
// ErrQueueFull and the item is counted as dropped. The FIX bridge uses a
// pool to publish echoed FIX traffic so that engine callbacks never wait on
// NATS:
//
//	pool := worker.NewPool(1, capacity, publish,
//	    worker.WithMetricsRegistry[Echo](registry, "echo"))
//	if err := pool.Start(ctx); err != nil { ... }
//	defer pool.Stop(5 * time.Second)
//
//	if err := pool.Submit(echo); errors.Is(err, worker.ErrQueueFull) { ... }
package worker
