package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/c360/semstreams-fix/errors"
	"github.com/c360/semstreams-fix/message"
	"github.com/c360/semstreams-fix/session"
)

// Publisher is the transport events are stored through.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// Reporter stores events on a NATS subject and keeps the root event every
// other bridge event hangs under.
type Reporter struct {
	pub     Publisher
	subject string
	logger  *slog.Logger
	now     func() time.Time

	mu     sync.RWMutex
	rootID string
}

// NewReporter creates a reporter publishing to subject.
func NewReporter(pub Publisher, subject string, logger *slog.Logger) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reporter{pub: pub, subject: subject, logger: logger, now: time.Now}
}

// RootID returns the id of the stored root event, empty before StoreRoot.
func (r *Reporter) RootID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rootID
}

// Store publishes e.
func (r *Reporter) Store(ctx context.Context, e *Event) error {
	data, err := e.Marshal()
	if err != nil {
		return err
	}
	if err := r.pub.Publish(ctx, r.subject, data); err != nil {
		return errors.Wrap(err, "Reporter", "Store", "publish event "+e.ID)
	}
	return nil
}

// RootName returns the root event name for a set of aliases.
func RootName(aliases []session.Alias, t time.Time) string {
	parts := make([]string, len(aliases))
	for i, a := range aliases {
		parts[i] = string(a)
	}
	return fmt.Sprintf("FIX client %s %s", strings.Join(parts, ":"), t.UTC().Format(time.RFC3339))
}

// StoreRoot creates and stores the root event named after aliases.
func (r *Reporter) StoreRoot(ctx context.Context, aliases []session.Alias) (*Event, error) {
	now := r.now()
	root := New(RootName(aliases, now), TypeMicroservice, now)
	if err := r.Store(ctx, root); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.rootID = root.ID
	r.mu.Unlock()
	return root, nil
}

// GroupFailure builds the failure event for a group that could not be
// handled.
func GroupFailure(group message.Group, cause error, now time.Time) *Event {
	body, err := json.Marshal(group)
	if err != nil {
		body = []byte(fmt.Sprintf("%+v", group))
	}

	e := New("Failed to handle message group: "+string(body), TypeError, now).WithException(cause)
	for _, m := range group.Messages {
		if m.Raw != nil {
			e.WithMessageID(m.Raw.Metadata.ID)
		} else if m.Parsed != nil {
			e.WithMessageID(m.Parsed.Metadata.ID)
		}
	}
	return e
}

// ReportFailure stores a failure event for group under the root event.
// Store errors are logged, not returned.
func (r *Reporter) ReportFailure(ctx context.Context, group message.Group, cause error) {
	e := GroupFailure(group, cause, r.now()).WithParent(r.RootID())
	if err := r.Store(ctx, e); err != nil {
		r.logger.Error("Failed to store failure event", "event_id", e.ID, "error", err)
	}
}

// ReportInfo stores a passed info event under the root event. Each detail
// becomes a message body item.
func (r *Reporter) ReportInfo(ctx context.Context, name string, details ...string) {
	e := New(name, TypeInfo, r.now()).WithParent(r.RootID())
	for _, d := range details {
		e.WithMessage(d)
	}
	if err := r.Store(ctx, e); err != nil {
		r.logger.Error("Failed to store event", "name", name, "error", err)
	}
}
