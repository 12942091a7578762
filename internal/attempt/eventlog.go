// Package attempt implements the lifecycle of a single read-aloud attempt:
// the session controller state machine, the append-only word event log, and
// the stall watchdog.
//
// Each attempt is an independent unit of state. The [Controller] serialises
// recognized-token arrivals and watchdog callbacks through one mutex, so the
// aligner cursor and the last-progress timestamp are always observed and
// updated atomically. No state is shared across attempts.
package attempt

import (
	"errors"
	"fmt"
	"sync"

	"github.com/lukereed/readalong/pkg/types"
)

// ErrAttemptFinalized is returned by [EventLog.Append] once the attempt has
// reached a terminal state. Appending to a frozen log is a programming-contract
// violation, never silently dropped.
var ErrAttemptFinalized = errors.New("attempt: event log is finalized")

// EventLog is the append-only ledger of word events for one attempt, ordered
// by emission time. It is the durable source of truth for scoring: replaying
// the log through the score calculator is deterministic, with no hidden state.
//
// Events are never mutated or removed; a correction is a new event. Safe for
// concurrent use — the aligner and the watchdog may both append.
type EventLog struct {
	mu     sync.Mutex
	events []types.WordEvent
	frozen bool
}

// NewEventLog creates an empty event log.
func NewEventLog() *EventLog {
	return &EventLog{}
}

// Append records one event. It fails only when the event carries an unknown
// type or the log has been frozen by attempt finalization.
func (l *EventLog) Append(ev types.WordEvent) error {
	if !ev.Type.IsValid() {
		return fmt.Errorf("attempt: append event: unknown type %q", ev.Type)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.frozen {
		return ErrAttemptFinalized
	}
	l.events = append(l.events, ev)
	return nil
}

// Freeze marks the log terminal. All subsequent Append calls return
// [ErrAttemptFinalized]. Freezing twice is a no-op.
func (l *EventLog) Freeze() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.frozen = true
}

// Frozen reports whether the log has been frozen.
func (l *EventLog) Frozen() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.frozen
}

// Events returns a copy of the full ordered event sequence.
func (l *EventLog) Events() []types.WordEvent {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]types.WordEvent, len(l.events))
	copy(out, l.events)
	return out
}

// Len returns the number of recorded events.
func (l *EventLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}
