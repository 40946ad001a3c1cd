package session

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/c360/semstreams-fix/message"
)

// ConnectionTag labels one message crossing a session.
type ConnectionTag struct {
	Alias     Alias
	Direction message.Direction
	Sequence  int64
}

// ConnectionID returns the wire connection id for the tag.
func (t ConnectionTag) ConnectionID() message.ConnectionID {
	return message.ConnectionID{SessionAlias: string(t.Alias)}
}

type counters struct {
	first  atomic.Int64
	second atomic.Int64
}

// Sequencer hands out strictly increasing sequence numbers per alias and
// direction. Counters start at the wall clock in nanoseconds, so numbers
// keep growing across process restarts.
type Sequencer struct {
	mu    sync.Mutex
	byKey map[Alias]*counters
	now   func() time.Time
}

// NewSequencer creates a Sequencer seeded from now. A nil now uses time.Now.
func NewSequencer(now func() time.Time) *Sequencer {
	if now == nil {
		now = time.Now
	}
	return &Sequencer{byKey: make(map[Alias]*counters), now: now}
}

// Next returns a tag carrying the next sequence for alias and dir.
func (s *Sequencer) Next(alias Alias, dir message.Direction) ConnectionTag {
	s.mu.Lock()
	c, ok := s.byKey[alias]
	if !ok {
		c = &counters{}
		seed := s.now().UnixNano()
		c.first.Store(seed)
		c.second.Store(seed)
		s.byKey[alias] = c
	}
	s.mu.Unlock()

	var seq int64
	if dir == message.DirectionFirst {
		seq = c.first.Add(1)
	} else {
		seq = c.second.Add(1)
	}
	return ConnectionTag{Alias: alias, Direction: dir, Sequence: seq}
}
