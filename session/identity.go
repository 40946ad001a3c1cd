// Package session maps operator-chosen session aliases to FIX session
// identities and stamps outgoing and incoming traffic with per-direction
// sequence numbers.
package session

import (
	"strings"

	"github.com/quickfixgo/quickfix"
)

// Identity is the composite key that names a FIX session. Two identities are
// equal when every field is equal.
type Identity struct {
	BeginString      string
	SenderCompID     string
	SenderSubID      string
	SenderLocationID string
	TargetCompID     string
	TargetSubID      string
	TargetLocationID string
	Qualifier        string
}

// Alias is the short name upstream producers use to address a session.
type Alias string

// String renders the identity the way the FIX engine does in its logs.
func (id Identity) String() string {
	var b strings.Builder
	b.WriteString(id.BeginString)
	b.WriteByte(':')
	writeComp(&b, id.SenderCompID, id.SenderSubID, id.SenderLocationID)
	b.WriteString("->")
	writeComp(&b, id.TargetCompID, id.TargetSubID, id.TargetLocationID)
	if id.Qualifier != "" {
		b.WriteByte(':')
		b.WriteString(id.Qualifier)
	}
	return b.String()
}

func writeComp(b *strings.Builder, comp, sub, loc string) {
	b.WriteString(comp)
	if sub != "" {
		b.WriteByte('/')
		b.WriteString(sub)
	}
	if loc != "" {
		b.WriteByte('/')
		b.WriteString(loc)
	}
}

// SessionID converts the identity to the engine's session key.
func (id Identity) SessionID() quickfix.SessionID {
	return quickfix.SessionID{
		BeginString:      id.BeginString,
		SenderCompID:     id.SenderCompID,
		SenderSubID:      id.SenderSubID,
		SenderLocationID: id.SenderLocationID,
		TargetCompID:     id.TargetCompID,
		TargetSubID:      id.TargetSubID,
		TargetLocationID: id.TargetLocationID,
		Qualifier:        id.Qualifier,
	}
}

// FromSessionID converts an engine session key back to an Identity.
func FromSessionID(sid quickfix.SessionID) Identity {
	return Identity{
		BeginString:      sid.BeginString,
		SenderCompID:     sid.SenderCompID,
		SenderSubID:      sid.SenderSubID,
		SenderLocationID: sid.SenderLocationID,
		TargetCompID:     sid.TargetCompID,
		TargetSubID:      sid.TargetSubID,
		TargetLocationID: sid.TargetLocationID,
		Qualifier:        sid.Qualifier,
	}
}
