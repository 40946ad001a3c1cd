package bridge

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/c360/semstreams-fix/engine"
	"github.com/c360/semstreams-fix/errors"
	"github.com/c360/semstreams-fix/lifecycle"
	"github.com/c360/semstreams-fix/message"
	"github.com/c360/semstreams-fix/metric"
	"github.com/c360/semstreams-fix/natsclient"
	"github.com/c360/semstreams-fix/session"
)

var (
	// ErrNotRunning is reported for groups that arrive while sessions are stopped.
	ErrNotRunning = stderrors.New("sessions are not running")
	// ErrGroupSize is logged for groups that do not hold exactly one message.
	ErrGroupSize = stderrors.New("group must contain exactly one message")
	// ErrNotRaw is logged for messages without a raw payload.
	ErrNotRaw = stderrors.New("message has no raw payload")
)

// Controller is the part of lifecycle.Controller the bridge needs.
type Controller interface {
	IsRunning() bool
	Start(ctx context.Context, stopAfter int) error
}

// FailureReporter records a group that could not be handled.
type FailureReporter interface {
	ReportFailure(ctx context.Context, group message.Group, cause error)
}

// Config controls traffic-driven start.
type Config struct {
	// StartOnTraffic starts the sessions when a batch arrives while stopped.
	StartOnTraffic bool
	// AutoStopAfter is the stop delay in seconds for traffic-driven starts.
	AutoStopAfter int
}

// Bridge routes inbound batches to FIX sessions.
type Bridge struct {
	cfg        Config
	registry   *session.Registry
	engine     engine.Engine
	controller Controller
	reporter   FailureReporter
	metrics    *metric.Metrics
	logger     *slog.Logger
}

// New creates a Bridge. reporter and metrics may be nil.
func New(cfg Config, registry *session.Registry, eng engine.Engine, controller Controller,
	reporter FailureReporter, metrics *metric.Metrics, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		cfg:        cfg,
		registry:   registry,
		engine:     eng,
		controller: controller,
		reporter:   reporter,
		metrics:    metrics,
		logger:     logger.With("component", "bridge"),
	}
}

// Receive decodes a NATS message using its Content-Type header and handles
// the batch.
func (b *Bridge) Receive(ctx context.Context, msg *natsclient.Msg) {
	contentType := ""
	if msg.Header != nil {
		contentType = msg.Header.Get(message.HeaderContentType)
	}
	b.Handle(ctx, msg.Data, contentType)
}

// Handle decodes data and handles the batch. Undecodable payloads are
// logged and reported.
func (b *Bridge) Handle(ctx context.Context, data []byte, contentType string) {
	batch, err := message.Decode(data, contentType)
	if err != nil {
		b.logger.Error("Failed to decode batch", "content_type", contentType, "error", err)
		b.fail(ctx, message.Group{}, err)
		return
	}
	b.OnBatch(ctx, batch)
}

// OnBatch handles every group of batch in order. A failing group never
// affects the others.
func (b *Bridge) OnBatch(ctx context.Context, batch message.Batch) {
	if b.cfg.StartOnTraffic && !b.controller.IsRunning() {
		err := b.controller.Start(ctx, b.cfg.AutoStopAfter)
		if err != nil && !stderrors.Is(err, lifecycle.ErrAlreadyRunning) {
			b.logger.Error("Failed to start sessions on traffic", "error", err)
		}
	}

	for i, group := range batch.Groups {
		b.handleGroup(ctx, i, group)
	}
}

func (b *Bridge) handleGroup(ctx context.Context, index int, group message.Group) {
	if len(group.Messages) != 1 {
		b.logger.Error("Skipping group", "group", index, "messages", len(group.Messages), "error", ErrGroupSize)
		b.record(metric.GroupSkipped)
		return
	}
	raw := group.Messages[0].Raw
	if raw == nil {
		b.logger.Error("Skipping group", "group", index, "error", ErrNotRaw)
		b.record(metric.GroupSkipped)
		return
	}

	if err := b.send(ctx, raw); err != nil {
		b.logger.Error("Failed to handle message group",
			"group", index, "message_id", raw.Metadata.ID.String(), "error", err)
		b.fail(ctx, group, err)
		return
	}
	b.record(metric.GroupSent)
}

// send resolves, parses and sends one raw message. Panics from the engine
// are returned as errors.
func (b *Bridge) send(ctx context.Context, raw *message.RawMessage) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while sending: %v", r)
		}
	}()

	alias := session.Alias(raw.Metadata.ID.ConnectionID.SessionAlias)
	id, err := b.registry.Resolve(alias)
	if err != nil {
		return err
	}
	if !b.controller.IsRunning() {
		return ErrNotRunning
	}
	if !utf8.Valid(raw.Body) {
		return errors.WrapInvalid(errors.ErrInvalidData, "Bridge", "send", "decode body as UTF-8")
	}

	start := time.Now()
	msg, err := b.engine.Parse(id, string(raw.Body))
	if err != nil {
		return err
	}
	if err := b.engine.Send(id, msg); err != nil {
		return err
	}
	if b.metrics != nil {
		b.metrics.RecordSend(time.Since(start))
	}
	b.logger.Debug("Sent FIX message", "alias", alias, "message_id", raw.Metadata.ID.String())
	return nil
}

func (b *Bridge) fail(ctx context.Context, group message.Group, cause error) {
	b.record(metric.GroupFailed)
	if b.reporter != nil {
		b.reporter.ReportFailure(ctx, group, cause)
	}
}

func (b *Bridge) record(status string) {
	if b.metrics != nil {
		b.metrics.RecordGroup(status)
	}
}
