package event

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/c360/semstreams-fix/errors"
	"github.com/c360/semstreams-fix/message"
)

// Status is the outcome an event reports.
type Status string

// Event outcomes.
const (
	StatusPassed Status = "PASSED"
	StatusFailed Status = "FAILED"
)

// Event types used by the bridge.
const (
	TypeMicroservice = "Microservice"
	TypeError        = "Error"
	TypeInfo         = "Info"
)

// BodyItem is one entry of an event body.
type BodyItem struct {
	Type string `json:"type"`
	Data string `json:"data"`
}

// Event is a reporting record. Events form a tree through ParentID.
type Event struct {
	ID                 string     `json:"id"`
	ParentID           string     `json:"parent_id,omitempty"`
	Name               string     `json:"name"`
	Type               string     `json:"type"`
	Status             Status     `json:"status"`
	Body               []BodyItem `json:"body,omitempty"`
	AttachedMessageIDs []string   `json:"attached_message_ids,omitempty"`
	StartTimestamp     time.Time  `json:"start_timestamp"`
	EndTimestamp       time.Time  `json:"end_timestamp"`
}

// New creates a passed event started and ended at now.
func New(name, typ string, now time.Time) *Event {
	return &Event{
		ID:             uuid.NewString(),
		Name:           name,
		Type:           typ,
		Status:         StatusPassed,
		StartTimestamp: now.UTC(),
		EndTimestamp:   now.UTC(),
	}
}

// WithParent attaches the event under parentID.
func (e *Event) WithParent(parentID string) *Event {
	e.ParentID = parentID
	return e
}

// WithMessage appends a text body item.
func (e *Event) WithMessage(text string) *Event {
	e.Body = append(e.Body, BodyItem{Type: "message", Data: text})
	return e
}

// WithException marks the event failed and records every error in err's
// chain, outermost first. A nil err leaves the event untouched.
func (e *Event) WithException(err error) *Event {
	if err == nil {
		return e
	}
	e.Status = StatusFailed
	for _, msg := range errors.Chain(err) {
		e.Body = append(e.Body, BodyItem{Type: "exception", Data: msg})
	}
	return e
}

// WithMessageID attaches a message id.
func (e *Event) WithMessageID(id message.ID) *Event {
	e.AttachedMessageIDs = append(e.AttachedMessageIDs, id.String())
	return e
}

// Marshal returns the JSON encoding of e.
func (e *Event) Marshal() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Event", "Marshal", "encode event")
	}
	return data, nil
}
