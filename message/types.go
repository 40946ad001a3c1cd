package message

import (
	"fmt"
	"time"
)

// Direction tells which side of a FIX session produced a message.
type Direction string

const (
	// DirectionFirst marks messages received from the counterparty.
	DirectionFirst Direction = "FIRST"
	// DirectionSecond marks messages sent to the counterparty.
	DirectionSecond Direction = "SECOND"
)

// Valid reports whether d is a known direction.
func (d Direction) Valid() bool {
	return d == DirectionFirst || d == DirectionSecond
}

// Subject returns the lowercase token used when publishing per direction.
func (d Direction) Subject() string {
	switch d {
	case DirectionFirst:
		return "first"
	case DirectionSecond:
		return "second"
	default:
		return "unknown"
	}
}

// ConnectionID names the session a message belongs to.
type ConnectionID struct {
	SessionAlias string `json:"session_alias"`
	SessionGroup string `json:"session_group,omitempty"`
}

// ID identifies a single message within a connection and direction.
type ID struct {
	ConnectionID ConnectionID `json:"connection_id"`
	Direction    Direction    `json:"direction,omitempty"`
	Sequence     int64        `json:"sequence,omitempty"`
	Subsequence  []int        `json:"subsequence,omitempty"`
}

// String renders the id as alias:direction:sequence.
func (id ID) String() string {
	return fmt.Sprintf("%s:%s:%d", id.ConnectionID.SessionAlias, id.Direction, id.Sequence)
}

// Metadata accompanies every message.
type Metadata struct {
	ID         ID                `json:"id"`
	Timestamp  time.Time         `json:"timestamp,omitempty"`
	Protocol   string            `json:"protocol,omitempty"`
	Properties map[string]string `json:"properties,omitempty"`
}

// RawMessage carries the untouched bytes of a protocol message.
type RawMessage struct {
	Metadata Metadata `json:"metadata"`
	Body     []byte   `json:"body"`
}

// ParsedMessage carries a message already decoded into fields. The bridge
// only sends raw messages; parsed ones are rejected per group.
type ParsedMessage struct {
	Metadata    Metadata       `json:"metadata"`
	MessageType string         `json:"message_type,omitempty"`
	Fields      map[string]any `json:"fields,omitempty"`
}

// AnyMessage holds exactly one of Raw or Parsed.
type AnyMessage struct {
	Raw    *RawMessage    `json:"raw_message,omitempty"`
	Parsed *ParsedMessage `json:"message,omitempty"`
}

// IsRaw reports whether the message carries a raw payload.
func (m AnyMessage) IsRaw() bool { return m.Raw != nil }

// Group is an ordered set of messages handled as one unit.
type Group struct {
	Messages []AnyMessage `json:"messages"`
}

// Batch is the unit delivered by the inbound queue.
type Batch struct {
	Groups []Group `json:"groups"`
}

// ToBatch wraps body as a one-message, one-group batch tagged with the given
// connection, direction, and sequence.
func ToBatch(body []byte, conn ConnectionID, dir Direction, sequence int64, ts time.Time) Batch {
	return Batch{Groups: []Group{{Messages: []AnyMessage{{Raw: &RawMessage{
		Metadata: Metadata{
			ID: ID{
				ConnectionID: conn,
				Direction:    dir,
				Sequence:     sequence,
			},
			Timestamp: ts.UTC(),
			Protocol:  "FIX",
		},
		Body: body,
	}}}}}}
}
