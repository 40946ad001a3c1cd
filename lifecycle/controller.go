package lifecycle

import (
	"context"
	stderrors "errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/c360/semstreams-fix/errors"
	"github.com/c360/semstreams-fix/health"
	"github.com/c360/semstreams-fix/metric"
	"github.com/c360/semstreams-fix/pkg/clock"
)

var (
	// ErrAlreadyRunning is returned by Start while sessions are running.
	ErrAlreadyRunning = stderrors.New("already running")
	// ErrAlreadyStopped is returned by Stop while sessions are stopped.
	ErrAlreadyStopped = stderrors.New("already stopped")
)

// HealthName is the health monitor entry the controller maintains.
const HealthName = "sessions"

// Sessions opens and closes every FIX session at once.
type Sessions interface {
	OpenAll(ctx context.Context) error
	CloseAll(ctx context.Context) error
}

// Controller moves the FIX sessions between STOPPED and RUNNING. It starts
// STOPPED. Transitions are serialized; IsRunning never blocks.
type Controller struct {
	sessions Sessions
	clock    clock.Clock
	logger   *slog.Logger
	metrics  *metric.Metrics
	health   *health.Monitor

	mu         sync.Mutex
	running    atomic.Bool
	generation uint64
	timer      *clock.Timer
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock schedules auto-stop on c.
func WithClock(c clock.Clock) Option {
	return func(ctl *Controller) { ctl.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(ctl *Controller) { ctl.logger = l }
}

// WithMetrics publishes the running state to m.
func WithMetrics(m *metric.Metrics) Option {
	return func(ctl *Controller) { ctl.metrics = m }
}

// WithHealth publishes the running state to m.
func WithHealth(m *health.Monitor) Option {
	return func(ctl *Controller) { ctl.health = m }
}

// New creates a stopped controller for sessions.
func New(sessions Sessions, opts ...Option) *Controller {
	c := &Controller{
		sessions: sessions,
		clock:    clock.Real(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.publish(false)
	return c
}

// IsRunning reports whether sessions are running.
func (c *Controller) IsRunning() bool {
	return c.running.Load()
}

// Start opens every session. When stopAfter is positive a stop is scheduled
// that many seconds later; it only applies to this run.
func (c *Controller) Start(ctx context.Context, stopAfter int) error {
	if stopAfter < 0 {
		return errors.WrapInvalid(errors.ErrInvalidData, "Controller", "Start", "negative stop delay")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running.Load() {
		return ErrAlreadyRunning
	}
	if err := c.sessions.OpenAll(ctx); err != nil {
		c.logger.Error("Failed to start sessions", "error", err)
		return errors.Wrap(err, "Controller", "Start", "open sessions")
	}

	c.generation++
	c.running.Store(true)
	c.publish(true)

	if stopAfter > 0 {
		gen := c.generation
		c.timer = c.clock.AfterFunc(time.Duration(stopAfter)*time.Second, func() {
			c.autoStop(gen)
		})
		c.logger.Info("Sessions started", "stop_after_seconds", stopAfter)
	} else {
		c.logger.Info("Sessions started")
	}
	return nil
}

// Stop closes every session and cancels a pending auto-stop.
func (c *Controller) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running.Load() {
		return ErrAlreadyStopped
	}
	return c.stopLocked(ctx)
}

// Close stops the sessions if they are running.
func (c *Controller) Close() error {
	err := c.Stop(context.Background())
	if stderrors.Is(err, ErrAlreadyStopped) {
		return nil
	}
	return err
}

func (c *Controller) stopLocked(ctx context.Context) error {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}

	err := c.sessions.CloseAll(ctx)
	c.running.Store(false)
	c.publish(false)
	if err != nil {
		c.logger.Error("Failed to stop sessions cleanly", "error", err)
		return errors.Wrap(err, "Controller", "Stop", "close sessions")
	}
	c.logger.Info("Sessions stopped")
	return nil
}

func (c *Controller) autoStop(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running.Load() || gen != c.generation {
		c.logger.Debug("Ignoring stale auto-stop", "generation", gen)
		return
	}
	c.timer = nil
	c.logger.Info("Auto-stop timer fired")
	_ = c.stopLocked(context.Background())
}

func (c *Controller) publish(running bool) {
	if c.metrics != nil {
		c.metrics.RecordRunning(running)
	}
	if c.health == nil {
		return
	}
	if running {
		c.health.UpdateHealthy(HealthName, "running")
	} else {
		c.health.UpdateDegraded(HealthName, "stopped")
	}
}
