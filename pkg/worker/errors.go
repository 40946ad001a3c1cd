package worker

import (
	stderrors "errors"
	"fmt"

	"github.com/c360/semstreams-fix/errors"
)

var (
	ErrPoolNotStarted     = stderrors.New("worker pool not started")
	ErrPoolStopped        = stderrors.New("worker pool stopped")
	ErrPoolAlreadyStarted = stderrors.New("worker pool already started")
	ErrNilProcessor       = stderrors.New("processor function cannot be nil")
	ErrStopTimeout        = stderrors.New("timeout waiting for workers to stop")

	// ErrQueueFull is returned by Submit when every slot is taken. It
	// matches errors.ErrQueueFull, so callers see it as transient.
	ErrQueueFull = fmt.Errorf("worker pool: %w", errors.ErrQueueFull)
)
