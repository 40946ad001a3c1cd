package testutil

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"sync"

	"github.com/quickfixgo/quickfix"

	"github.com/c360/semstreams-fix/session"
)

// ErrFakeSessionNotFound is returned by FakeEngine for identities it does not
// hold, or for every identity while closed.
var ErrFakeSessionNotFound = stderrors.New("fake session not found")

// SentMessage is one message handed to FakeEngine.Send.
type SentMessage struct {
	Identity session.Identity
	Raw      string
}

// FakeEngine is an in-memory FIX engine. Sessions exist only between OpenAll
// and CloseAll. Parse does a structural parse with QuickFIX/Go, so malformed
// FIX text fails the way it would on the real engine.
type FakeEngine struct {
	mu         sync.Mutex
	identities map[session.Identity]bool
	open       bool
	opens      int
	closes     int
	sent       []SentMessage

	openErr error
	sendErr error
}

// NewFakeEngine creates an engine holding sessions for ids once opened.
func NewFakeEngine(ids ...session.Identity) *FakeEngine {
	e := &FakeEngine{identities: make(map[session.Identity]bool, len(ids))}
	for _, id := range ids {
		e.identities[id] = true
	}
	return e
}

// FailOpen makes OpenAll return err; nil restores success.
func (e *FakeEngine) FailOpen(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.openErr = err
}

// FailSend makes Send return err; nil restores success.
func (e *FakeEngine) FailSend(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sendErr = err
}

// OpenAll opens every session.
func (e *FakeEngine) OpenAll(_ context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.openErr != nil {
		return e.openErr
	}
	e.open = true
	e.opens++
	return nil
}

// CloseAll closes every session.
func (e *FakeEngine) CloseAll(_ context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.open {
		e.open = false
		e.closes++
	}
	return nil
}

// Lookup fails unless the engine is open and holds id.
func (e *FakeEngine) Lookup(id session.Identity) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lookup(id)
}

func (e *FakeEngine) lookup(id session.Identity) error {
	if !e.open || !e.identities[id] {
		return fmt.Errorf("%w: %s", ErrFakeSessionNotFound, id)
	}
	return nil
}

// Parse parses raw without a dictionary.
func (e *FakeEngine) Parse(id session.Identity, raw string) (*quickfix.Message, error) {
	if err := e.Lookup(id); err != nil {
		return nil, err
	}
	msg := quickfix.NewMessage()
	if err := quickfix.ParseMessage(msg, bytes.NewBufferString(raw)); err != nil {
		return nil, err
	}
	return msg, nil
}

// Send records msg.
func (e *FakeEngine) Send(id session.Identity, msg *quickfix.Message) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.lookup(id); err != nil {
		return err
	}
	if e.sendErr != nil {
		return e.sendErr
	}
	e.sent = append(e.sent, SentMessage{Identity: id, Raw: msg.String()})
	return nil
}

// IsOpen reports whether sessions are open.
func (e *FakeEngine) IsOpen() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.open
}

// Opens returns how many times OpenAll succeeded.
func (e *FakeEngine) Opens() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.opens
}

// Closes returns how many times CloseAll closed open sessions.
func (e *FakeEngine) Closes() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closes
}

// Sent returns a copy of every sent message.
func (e *FakeEngine) Sent() []SentMessage {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]SentMessage(nil), e.sent...)
}

// FIXMessage builds raw FIX text with a correct body length and checksum.
func FIXMessage(beginString, msgType, sender, target string, fields map[int]string) string {
	msg := quickfix.NewMessage()
	msg.Header.SetString(quickfix.Tag(8), beginString)
	msg.Header.SetString(quickfix.Tag(35), msgType)
	msg.Header.SetString(quickfix.Tag(49), sender)
	msg.Header.SetString(quickfix.Tag(56), target)
	for tag, value := range fields {
		msg.Body.SetString(quickfix.Tag(tag), value)
	}
	return msg.String()
}
