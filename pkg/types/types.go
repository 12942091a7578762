// Package types defines the shared types used across all readalong packages.
//
// These types form the lingua franca between the alignment engine, the session
// controller, the scoring and progression logic, and the persistence layer.
// They are intentionally minimal — each package defines its own domain types,
// but cross-cutting data structures live here to avoid circular imports.
package types

import "time"

// Story is an immutable piece of expected text a learner reads aloud.
// Words is the ordered expected-word sequence; a word's position in the slice
// is its stable zero-based word index. Stories are never mutated during an
// attempt.
type Story struct {
	// ID uniquely identifies the story.
	ID string

	// Title is the story's display title.
	Title string

	// Level is the difficulty tier the story was written for.
	Level int

	// Words is the ordered sequence of expected words. Indexing into Words
	// with a WordEvent's WordIndex is always valid for events produced
	// against this story.
	Words []string
}

// RecognizedToken is a single best-effort word hypothesis delivered by the
// transcription provider. Tokens are not guaranteed to align one-to-one with
// the expected text — the aligner absorbs lag and mis-segmentation.
type RecognizedToken struct {
	// Text is the raw recognized word as produced by the provider.
	Text string

	// Confidence is the provider's confidence in this token (0.0–1.0).
	// Zero when the provider does not report confidence.
	Confidence float64

	// Timestamp marks when the token was recognized, relative to session start.
	Timestamp time.Duration

	// Epoch tags the pause/resume generation the token was captured under.
	// Tokens carrying a stale epoch are discarded by the session controller
	// instead of being scored.
	Epoch uint64
}

// EventType classifies a single word event. It is a closed set; consumers
// switch exhaustively over these values.
type EventType string

const (
	// EventCorrect: the recognized token exactly matched the expected word.
	EventCorrect EventType = "correct"

	// EventFuzzy: the recognized token was close enough to the expected word
	// (bounded edit distance or a known phonetic confusion) to earn credit.
	EventFuzzy EventType = "fuzzy"

	// EventMismatch: the learner repeatedly produced tokens that match
	// nothing in the lookahead window at this cursor position.
	EventMismatch EventType = "mismatch"

	// EventSkip: an expected word was jumped over when a later word matched.
	EventSkip EventType = "skip"

	// EventStall: no cursor progress for the configured stall interval.
	EventStall EventType = "stall"

	// EventHint: the learner asked for an on-demand pronunciation.
	EventHint EventType = "hint"
)

// IsValid reports whether t is a recognised event type.
func (t EventType) IsValid() bool {
	switch t {
	case EventCorrect, EventFuzzy, EventMismatch, EventSkip, EventStall, EventHint:
		return true
	}
	return false
}

// IsProblem reports whether t marks a problem word (mismatch, skip, or stall).
func (t EventType) IsProblem() bool {
	return t == EventMismatch || t == EventSkip || t == EventStall
}

// WordEvent is an immutable fact recorded during an attempt. The ordered
// sequence of word events for an attempt is the durable source of truth for
// scoring: re-scoring is a pure replay of the log with no hidden state.
type WordEvent struct {
	// AttemptID identifies the attempt this event belongs to.
	AttemptID string

	// WordIndex is the zero-based index into the story's expected words.
	WordIndex int

	// Expected is the story word at WordIndex, as written.
	Expected string

	// Recognized is the raw recognized token that produced this event.
	// Empty for events with no associated token (skip, stall, hint).
	Recognized string

	// Type classifies the event.
	Type EventType

	// Severity grades the event's impact (1 = mild). Skip events scale
	// severity with the distance jumped so that "jumped one word" and
	// "jumped a paragraph" are distinguishable in the log.
	Severity int

	// Timestamp marks when the event was emitted, relative to session start.
	// Monotonic per attempt.
	Timestamp time.Duration
}

// AttemptState is the lifecycle state of a reading attempt.
type AttemptState string

const (
	AttemptIdle      AttemptState = "idle"
	AttemptRecording AttemptState = "recording"
	AttemptPaused    AttemptState = "paused"
	AttemptComplete  AttemptState = "complete"
	AttemptError     AttemptState = "error"
)

// Terminal reports whether s is a terminal state. An attempt has at most one
// terminal transition; once terminal, its event log is frozen.
func (s AttemptState) Terminal() bool {
	return s == AttemptComplete || s == AttemptError
}

// Timing summarises the observable timing of a finished attempt. It is an
// input to the score calculator alongside the event log.
type Timing struct {
	// Duration is the wall-clock length of the attempt.
	Duration time.Duration

	// Paused is the total time spent in the paused state. Paused time does
	// not count towards reading pace.
	Paused time.Duration

	// WordsReached is the number of expected words the cursor passed.
	WordsReached int

	// TotalWords is the story's expected-word count.
	TotalWords int
}

// Active returns the attempt duration with paused time subtracted, floored
// at zero.
func (t Timing) Active() time.Duration {
	active := t.Duration - t.Paused
	if active < 0 {
		return 0
	}
	return active
}

// Score is the derived result of a finished attempt. Computed once from the
// frozen event log; never hand-edited — a correction is a recomputation.
type Score struct {
	// Accuracy is the 0–60 sub-score for matching the expected words.
	Accuracy float64

	// Fluency is the 0–25 sub-score for reading pace and stall-free flow.
	Fluency float64

	// Independence is the 0–15 sub-score for reading without help.
	Independence float64

	// Total is the sum of the sub-scores, clamped to [0, 100].
	Total float64

	// WPM is the observed words-per-minute over active (unpaused) time.
	WPM float64

	// WordsReached is the number of expected words the cursor passed.
	WordsReached int

	// Summary is a short encouragement line for the learner.
	Summary string
}

// LevelState is the per-learner difficulty state. It is updated only by the
// progression engine, or by an explicit manual override from outside the
// engine.
type LevelState struct {
	// LearnerID identifies the learner.
	LearnerID string

	// CurrentLevel is the learner's active difficulty tier.
	CurrentLevel int

	// Confidence is the engine's confidence in the current placement (0.0–1.0).
	Confidence float64

	// LastDecisionReason is the auditable rationale of the most recent
	// progression decision or override.
	LastDecisionReason string

	// OverriddenAt is the time of the most recent manual override, zero when
	// the level has never been overridden. The progression engine ignores
	// attempts finished before this instant so it never fights an explicit
	// override.
	OverriddenAt time.Time
}

// AttemptSummary is a compact record of one finished attempt, used as
// progression-engine input. Histories are ordered oldest first.
type AttemptSummary struct {
	// AttemptID identifies the attempt.
	AttemptID string

	// StoryLevel is the difficulty tier of the story that was read.
	StoryLevel int

	// Total is the attempt's total score (0–100).
	Total float64

	// Accuracy is the attempt's accuracy sub-score (0–60).
	Accuracy float64

	// FinishedAt is when the attempt reached its terminal state.
	FinishedAt time.Time
}
