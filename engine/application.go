package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/quickfixgo/quickfix"

	"github.com/c360/semstreams-fix/event"
	"github.com/c360/semstreams-fix/health"
	"github.com/c360/semstreams-fix/message"
	"github.com/c360/semstreams-fix/metric"
	"github.com/c360/semstreams-fix/session"
)

// Application receives QuickFIX callbacks. It echoes every admin and
// application message crossing a session and tracks session state in
// health, metrics and events.
type Application struct {
	registry *session.Registry
	seq      *session.Sequencer
	echo     *Echoer
	health   *health.Monitor
	metrics  *metric.Metrics
	reporter *event.Reporter
	logger   *slog.Logger
	now      func() time.Time

	mu      sync.RWMutex
	created map[session.Identity]bool
}

// ApplicationOption configures an Application.
type ApplicationOption func(*Application)

// WithEchoer echoes traffic through e.
func WithEchoer(e *Echoer) ApplicationOption {
	return func(a *Application) { a.echo = e }
}

// WithHealth reports session state to m.
func WithHealth(m *health.Monitor) ApplicationOption {
	return func(a *Application) { a.health = m }
}

// WithMetrics records logon state in m.
func WithMetrics(m *metric.Metrics) ApplicationOption {
	return func(a *Application) { a.metrics = m }
}

// WithReporter stores session lifecycle events through r.
func WithReporter(r *event.Reporter) ApplicationOption {
	return func(a *Application) { a.reporter = r }
}

// WithClock overrides time.Now for echo timestamps and sequence seeds.
func WithClock(now func() time.Time) ApplicationOption {
	return func(a *Application) { a.now = now }
}

// NewApplication creates the callback handler for the sessions in registry.
func NewApplication(registry *session.Registry, logger *slog.Logger, opts ...ApplicationOption) *Application {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Application{
		registry: registry,
		logger:   logger,
		now:      time.Now,
		created:  make(map[session.Identity]bool),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.seq = session.NewSequencer(a.now)
	return a
}

// Created reports whether the engine created a session for id.
func (a *Application) Created(id session.Identity) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.created[id]
}

func (a *Application) forgetAll() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.created = make(map[session.Identity]bool)
}

func (a *Application) alias(sid quickfix.SessionID) (session.Alias, bool) {
	alias, err := a.registry.AliasOf(session.FromSessionID(sid))
	if err != nil {
		a.logger.Warn("Callback for unregistered session", "session", sid.String())
		return "", false
	}
	return alias, true
}

func (a *Application) healthName(alias session.Alias) string {
	return "session " + string(alias)
}

func (a *Application) report(name string, sid quickfix.SessionID) {
	if a.reporter != nil {
		a.reporter.ReportInfo(context.Background(), name, "FIX session "+sid.String())
	}
}

// OnCreate records the session as live.
func (a *Application) OnCreate(sid quickfix.SessionID) {
	a.mu.Lock()
	a.created[session.FromSessionID(sid)] = true
	a.mu.Unlock()

	alias, ok := a.alias(sid)
	if !ok {
		return
	}
	a.logger.Info("FIX session created", "alias", alias, "session", sid.String())
	if a.health != nil {
		a.health.UpdateDegraded(a.healthName(alias), "created, not logged on")
	}
	if a.metrics != nil {
		a.metrics.RecordLogon(string(alias), false)
	}
}

// OnLogon marks the session logged on.
func (a *Application) OnLogon(sid quickfix.SessionID) {
	alias, ok := a.alias(sid)
	if !ok {
		return
	}
	a.logger.Info("FIX session logged on", "alias", alias)
	if a.health != nil {
		a.health.UpdateHealthy(a.healthName(alias), "logged on")
	}
	if a.metrics != nil {
		a.metrics.RecordLogon(string(alias), true)
	}
	a.report("Session "+string(alias)+" logged on", sid)
}

// OnLogout marks the session logged out.
func (a *Application) OnLogout(sid quickfix.SessionID) {
	alias, ok := a.alias(sid)
	if !ok {
		return
	}
	a.logger.Info("FIX session logged out", "alias", alias)
	if a.health != nil {
		a.health.UpdateDegraded(a.healthName(alias), "logged out")
	}
	if a.metrics != nil {
		a.metrics.RecordLogon(string(alias), false)
	}
	a.report("Session "+string(alias)+" logged out", sid)
}

// ToAdmin echoes outgoing admin messages.
func (a *Application) ToAdmin(msg *quickfix.Message, sid quickfix.SessionID) {
	a.forward(msg, sid, message.DirectionSecond)
}

// ToApp echoes outgoing application messages.
func (a *Application) ToApp(msg *quickfix.Message, sid quickfix.SessionID) error {
	a.forward(msg, sid, message.DirectionSecond)
	return nil
}

// FromAdmin echoes incoming admin messages.
func (a *Application) FromAdmin(msg *quickfix.Message, sid quickfix.SessionID) quickfix.MessageRejectError {
	a.forward(msg, sid, message.DirectionFirst)
	return nil
}

// FromApp echoes incoming application messages.
func (a *Application) FromApp(msg *quickfix.Message, sid quickfix.SessionID) quickfix.MessageRejectError {
	a.forward(msg, sid, message.DirectionFirst)
	return nil
}

func (a *Application) forward(msg *quickfix.Message, sid quickfix.SessionID, dir message.Direction) {
	if a.echo == nil {
		return
	}
	alias, ok := a.alias(sid)
	if !ok {
		return
	}
	a.Echo(alias, dir, []byte(msg.String()))
}

// Echo tags body with the next sequence for alias and dir and queues it.
func (a *Application) Echo(alias session.Alias, dir message.Direction, body []byte) {
	if a.echo == nil {
		return
	}
	a.echo.Submit(Echo{
		Tag:       a.seq.Next(alias, dir),
		Body:      body,
		Timestamp: a.now(),
	})
}
