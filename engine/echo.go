package engine

import (
	"context"
	stderrors "errors"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/c360/semstreams-fix/errors"
	"github.com/c360/semstreams-fix/message"
	"github.com/c360/semstreams-fix/metric"
	"github.com/c360/semstreams-fix/pkg/worker"
	"github.com/c360/semstreams-fix/session"
)

// MsgPublisher publishes a payload with headers.
type MsgPublisher interface {
	PublishMsg(ctx context.Context, subject string, data []byte, header nats.Header) error
}

// Echo is one FIX message waiting to be published back to NATS.
type Echo struct {
	Tag       session.ConnectionTag
	Body      []byte
	Timestamp time.Time
}

// EchoConfig controls echo publishing.
type EchoConfig struct {
	// Subject is the prefix; the direction is appended as ".first" or ".second".
	Subject     string
	ContentType string
	Workers     int
	// Capacity bounds queued echoes. Zero uses the worker pool default.
	Capacity int
}

// Echoer publishes echoes from a bounded queue so engine callbacks never
// block on NATS.
type Echoer struct {
	pub     MsgPublisher
	cfg     EchoConfig
	pool    *worker.Pool[Echo]
	metrics *metric.Metrics
	logger  *slog.Logger
}

// NewEchoer creates an Echoer. registrar and metrics may be nil.
func NewEchoer(pub MsgPublisher, cfg EchoConfig, registrar metric.MetricsRegistrar,
	metrics *metric.Metrics, logger *slog.Logger) *Echoer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ContentType == "" {
		cfg.ContentType = message.ContentTypeJSON
	}

	e := &Echoer{pub: pub, cfg: cfg, metrics: metrics, logger: logger}

	var opts []worker.Option[Echo]
	if registrar != nil {
		opts = append(opts, worker.WithMetricsRegistry[Echo](registrar, "echo"))
	}
	e.pool = worker.NewPool(cfg.Workers, cfg.Capacity, e.publish, opts...)
	return e
}

// Subject returns the subject echoes in dir are published to.
func (e *Echoer) Subject(dir message.Direction) string {
	return e.cfg.Subject + "." + dir.Subject()
}

// Start launches the publishing workers.
func (e *Echoer) Start(ctx context.Context) error {
	return e.pool.Start(ctx)
}

// Stop drains queued echoes for up to timeout.
func (e *Echoer) Stop(timeout time.Duration) error {
	return e.pool.Stop(timeout)
}

// Submit queues an echo. A full queue drops it with a warning.
func (e *Echoer) Submit(echo Echo) {
	err := e.pool.Submit(echo)
	switch {
	case err == nil:
	case stderrors.Is(err, worker.ErrQueueFull):
		if e.metrics != nil {
			e.metrics.RecordEchoDropped()
		}
		e.logger.Warn("Echo queue full, dropping message",
			"alias", echo.Tag.Alias, "direction", echo.Tag.Direction, "sequence", echo.Tag.Sequence)
	default:
		e.logger.Debug("Echo not queued", "alias", echo.Tag.Alias, "error", err)
	}
}

func (e *Echoer) publish(ctx context.Context, echo Echo) error {
	batch := message.ToBatch(echo.Body, echo.Tag.ConnectionID(), echo.Tag.Direction, echo.Tag.Sequence, echo.Timestamp)
	data, err := message.Encode(batch, e.cfg.ContentType)
	if err != nil {
		e.logger.Error("Failed to encode echo", "alias", echo.Tag.Alias, "error", err)
		return err
	}

	header := nats.Header{}
	header.Set(message.HeaderContentType, e.cfg.ContentType)

	if err := e.pub.PublishMsg(ctx, e.Subject(echo.Tag.Direction), data, header); err != nil {
		e.logger.Error("Failed to publish echo", "alias", echo.Tag.Alias, "error", err)
		return errors.Wrap(err, "Echoer", "publish", "publish echo")
	}
	if e.metrics != nil {
		e.metrics.RecordEcho(echo.Tag.Direction.Subject())
	}
	return nil
}
