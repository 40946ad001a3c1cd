package engine

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/quickfixgo/quickfix"
	"github.com/quickfixgo/quickfix/datadictionary"

	"github.com/c360/semstreams-fix/config"
	"github.com/c360/semstreams-fix/errors"
	"github.com/c360/semstreams-fix/session"
)

// Engine is the protocol engine the bridge and the lifecycle controller
// drive.
type Engine interface {
	// OpenAll creates every configured session and starts connecting.
	OpenAll(ctx context.Context) error
	// CloseAll logs out and disposes every session.
	CloseAll(ctx context.Context) error
	// Lookup reports whether the engine currently holds a session for id.
	Lookup(id session.Identity) error
	// Parse turns raw FIX text into a message using the session dictionary.
	Parse(id session.Identity, raw string) (*quickfix.Message, error)
	// Send hands msg to the session for id.
	Send(id session.Identity, msg *quickfix.Message) error
}

var (
	// ErrAlreadyOpen is returned by OpenAll while sessions are open.
	ErrAlreadyOpen = stderrors.New("sessions already open")
	// ErrSessionNotFound is returned when the engine holds no session for an identity.
	ErrSessionNotFound = stderrors.New("session not found")
)

// QuickFIX runs the sessions of an Assembly on a QuickFIX/Go initiator.
type QuickFIX struct {
	assembly   *config.Assembly
	app        *Application
	logFactory quickfix.LogFactory
	logger     *slog.Logger

	mu        sync.Mutex
	initiator *quickfix.Initiator

	ddMu         sync.Mutex
	dictionaries map[string]*datadictionary.DataDictionary
}

// NewQuickFIX creates an engine for assembly. Sessions are not created until
// OpenAll.
func NewQuickFIX(assembly *config.Assembly, app *Application, logger *slog.Logger) *QuickFIX {
	if logger == nil {
		logger = slog.Default()
	}
	return &QuickFIX{
		assembly:     assembly,
		app:          app,
		logFactory:   NewLogFactory(logger),
		logger:       logger,
		dictionaries: make(map[string]*datadictionary.DataDictionary),
	}
}

// OpenAll reads the generated configuration and starts a fresh initiator.
func (q *QuickFIX) OpenAll(_ context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.initiator != nil {
		return ErrAlreadyOpen
	}

	f, err := os.Open(q.assembly.ConfigPath)
	if err != nil {
		return errors.WrapFatal(err, "QuickFIX", "OpenAll", "open engine config")
	}
	defer f.Close()

	settings, err := quickfix.ParseSettings(f)
	if err != nil {
		return errors.WrapInvalid(err, "QuickFIX", "OpenAll", "parse engine config")
	}

	initiator, err := quickfix.NewInitiator(q.app, quickfix.NewMemoryStoreFactory(), settings, q.logFactory)
	if err != nil {
		q.release()
		return errors.WrapInvalid(err, "QuickFIX", "OpenAll", "create initiator")
	}
	if err := initiator.Start(); err != nil {
		initiator.Stop()
		q.release()
		return errors.WrapTransient(err, "QuickFIX", "OpenAll", "start initiator")
	}

	q.initiator = initiator
	q.logger.Info("FIX sessions opened", "sessions", q.assembly.Registry.Len())
	return nil
}

// CloseAll stops the initiator. Closing when nothing is open is a no-op.
func (q *QuickFIX) CloseAll(_ context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.initiator == nil {
		return nil
	}
	q.initiator.Stop()
	q.initiator = nil
	q.release()
	q.logger.Info("FIX sessions closed")
	return nil
}

// release drops every configured session from QuickFIX's process-wide
// session table. The table outlives the initiator, and a session left in
// it makes the next NewInitiator fail with a duplicate SessionID.
func (q *QuickFIX) release() {
	for _, e := range q.assembly.Registry.Entries() {
		// Sessions created before a failed NewInitiator are the only ones
		// registered, so unknown sessions are expected here.
		_ = quickfix.UnregisterSession(e.Identity.SessionID())
	}
	q.app.forgetAll()
}

// Lookup reports whether id has a live session.
func (q *QuickFIX) Lookup(id session.Identity) error {
	if !q.app.Created(id) {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return nil
}

func (q *QuickFIX) dictionary(beginString string) (*datadictionary.DataDictionary, error) {
	q.ddMu.Lock()
	defer q.ddMu.Unlock()

	if dd, ok := q.dictionaries[beginString]; ok {
		return dd, nil
	}
	path, ok := q.assembly.Dictionaries[beginString]
	if !ok {
		return nil, nil
	}
	dd, err := datadictionary.Parse(path)
	if err != nil {
		return nil, errors.WrapInvalid(err, "QuickFIX", "Parse", "load dictionary "+beginString)
	}
	q.dictionaries[beginString] = dd
	return dd, nil
}

// Parse parses raw with the dictionary for id's BeginString. Sessions
// without a dictionary get a structural parse only.
func (q *QuickFIX) Parse(id session.Identity, raw string) (*quickfix.Message, error) {
	if err := q.Lookup(id); err != nil {
		return nil, err
	}

	dd, err := q.dictionary(id.BeginString)
	if err != nil {
		return nil, err
	}

	msg := quickfix.NewMessage()
	buf := bytes.NewBufferString(raw)
	if dd != nil {
		err = quickfix.ParseMessageWithDataDictionary(msg, buf, dd, dd)
	} else {
		err = quickfix.ParseMessage(msg, buf)
	}
	if err != nil {
		return nil, errors.WrapInvalid(err, "QuickFIX", "Parse", "parse FIX message")
	}
	return msg, nil
}

// Send sends msg on the session for id.
func (q *QuickFIX) Send(id session.Identity, msg *quickfix.Message) error {
	if err := q.Lookup(id); err != nil {
		return err
	}
	if err := quickfix.SendToTarget(msg, id.SessionID()); err != nil {
		return errors.WrapTransient(err, "QuickFIX", "Send", "send to "+id.String())
	}
	return nil
}
