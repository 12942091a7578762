// Package notify defines the outbound notification channel through which the
// session controller publishes live feedback: alignment deltas after every
// processed token, a completion message when the attempt finishes, and a
// degraded-mode signal when the transcription provider drops out.
//
// Transport and framing are out of scope — implementations may fan messages
// out to a websocket bridge, a message bus, or anything else. The engine only
// depends on the [Notifier] interface and must never block on a slow
// consumer.
package notify

import (
	"sync"

	"github.com/lukereed/readalong/pkg/types"
)

// AlignmentDelta is the per-tick feedback message: the word events produced
// by the latest recognized token plus the new cursor position.
type AlignmentDelta struct {
	// AttemptID identifies the attempt.
	AttemptID string

	// Events are the word events just appended to the log, in order.
	Events []types.WordEvent

	// CurrentIndex is the cursor position after this tick.
	CurrentIndex int

	// TotalWords is the story's expected-word count.
	TotalWords int

	// Problems is the subset of Events classified mismatch, skip, or stall.
	Problems []types.WordEvent
}

// Completion announces that an attempt reached a terminal state.
type Completion struct {
	// AttemptID identifies the attempt.
	AttemptID string

	// Score is the computed final score.
	Score types.Score

	// Message is a short learner-facing completion line.
	Message string
}

// Notifier receives structured outbound messages from a session controller.
//
// Implementations must not block: the controller calls these methods while
// holding per-attempt state, so a slow consumer must buffer or drop.
type Notifier interface {
	// AlignmentDelta publishes per-tick alignment feedback.
	AlignmentDelta(d AlignmentDelta)

	// Completed publishes the final score for a finished attempt.
	Completed(c Completion)

	// Degraded signals that live alignment feedback is unavailable and the
	// attempt continues in read-without-scoring mode.
	Degraded(attemptID, reason string)
}

// Kind discriminates the variants carried by a [Message].
type Kind string

const (
	KindAlignment  Kind = "alignment"
	KindCompletion Kind = "complete"
	KindDegraded   Kind = "degraded"
)

// Message is the tagged union delivered by a [Channel]. Exactly one of the
// payload fields corresponding to Kind is set.
type Message struct {
	Kind       Kind
	Alignment  *AlignmentDelta
	Completion *Completion
	AttemptID  string
	Reason     string
}

// Channel is a buffered, non-blocking [Notifier]. When the buffer is full the
// oldest pending message is dropped in favour of the new one — live feedback
// is only useful fresh.
//
// A Channel has a single consumer. The producer side calls [Channel.Close]
// when no more messages will follow, which ends the consumer's range loop.
type Channel struct {
	mu     sync.Mutex
	out    chan Message
	closed bool
}

// Compile-time interface check.
var _ Notifier = (*Channel)(nil)

// NewChannel creates a channel notifier with the given buffer size.
func NewChannel(buffer int) *Channel {
	if buffer < 1 {
		buffer = 1
	}
	return &Channel{out: make(chan Message, buffer)}
}

// Out returns the receive side of the notifier. The channel is closed once
// [Channel.Close] is called.
func (c *Channel) Out() <-chan Message { return c.out }

// Close ends the stream: the consumer's range over [Channel.Out] terminates
// once buffered messages are drained. Messages sent after Close are dropped.
// Close is idempotent.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.out)
}

// AlignmentDelta implements [Notifier].
func (c *Channel) AlignmentDelta(d AlignmentDelta) {
	c.send(Message{Kind: KindAlignment, Alignment: &d, AttemptID: d.AttemptID})
}

// Completed implements [Notifier].
func (c *Channel) Completed(comp Completion) {
	c.send(Message{Kind: KindCompletion, Completion: &comp, AttemptID: comp.AttemptID})
}

// Degraded implements [Notifier].
func (c *Channel) Degraded(attemptID, reason string) {
	c.send(Message{Kind: KindDegraded, AttemptID: attemptID, Reason: reason})
}

// send enqueues without ever blocking the caller.
func (c *Channel) send(m Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	for {
		select {
		case c.out <- m:
			return
		default:
		}
		// Buffer full: evict the oldest message and retry.
		select {
		case <-c.out:
		default:
		}
	}
}
