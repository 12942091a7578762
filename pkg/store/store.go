// Package store defines the persistence interfaces for attempts, word event
// logs, scores, per-learner level state, and problem-word aggregates.
//
// The session engine never queries a relational schema directly — it hands
// completed attempts, event logs, and scores to a Store implementation keyed
// by attempt and learner ID. The production implementation is
// [github.com/lukereed/readalong/pkg/store/postgres]; an in-memory
// implementation for tests and single-machine development lives in
// [github.com/lukereed/readalong/pkg/store/mock].
//
// Implementations must be safe for concurrent use.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/lukereed/readalong/pkg/types"
)

// ErrNotFound is returned when the requested attempt or learner record does
// not exist.
var ErrNotFound = errors.New("store: not found")

// Attempt is the persistent record of one reading session for one
// (learner, story) pair. It becomes read-only once State is terminal.
type Attempt struct {
	// ID uniquely identifies the attempt.
	ID string

	// LearnerID identifies the learner.
	LearnerID string

	// StoryID identifies the story that was read.
	StoryID string

	// StoryLevel is the story's difficulty tier at attempt time.
	StoryLevel int

	// State is the attempt's lifecycle state.
	State types.AttemptState

	// StartedAt and EndedAt bound the attempt. EndedAt is zero until the
	// attempt reaches a terminal state.
	StartedAt time.Time
	EndedAt   time.Time

	// CurrentIndex is the final cursor position (words reached).
	CurrentIndex int

	// Hints, Skips, and Interventions are accumulated assist counts.
	Hints         int
	Skips         int
	Interventions int
}

// ProblemWord aggregates one learner's trouble with one word across attempts:
// on-demand pronunciation lookups and mismatch/skip/stall occurrences. Future
// stories weave these words back in for practice.
type ProblemWord struct {
	Word           string
	Lookups        int
	Misses         int
	Mastery        float64
	LevelFirstSeen int
	LastSeenAt     time.Time
}

// AttemptStore persists attempts, their event logs, and their scores.
type AttemptStore interface {
	// CreateAttempt records a new attempt in its initial state.
	CreateAttempt(ctx context.Context, a Attempt) error

	// AppendEvents persists a batch of word events for an attempt, in order.
	AppendEvents(ctx context.Context, attemptID string, events []types.WordEvent) error

	// FinishAttempt atomically stores the attempt's terminal state, any word
	// events not yet persisted, and the computed score. Idempotent: finishing
	// an already-finished attempt is a no-op.
	FinishAttempt(ctx context.Context, a Attempt, events []types.WordEvent, score types.Score) error

	// Events returns the full ordered event log for an attempt.
	Events(ctx context.Context, attemptID string) ([]types.WordEvent, error)

	// Attempt returns the attempt record, or [ErrNotFound].
	Attempt(ctx context.Context, attemptID string) (Attempt, error)
}

// LearnerStore persists per-learner level state and attempt history.
type LearnerStore interface {
	// LevelState returns the learner's current level state. A learner with
	// no recorded state starts at level 1 with zero confidence (no error).
	LevelState(ctx context.Context, learnerID string) (types.LevelState, error)

	// SaveLevelState replaces the learner's level state.
	SaveLevelState(ctx context.Context, s types.LevelState) error

	// History returns up to limit finished-attempt summaries for the
	// learner, ordered oldest first.
	History(ctx context.Context, learnerID string, limit int) ([]types.AttemptSummary, error)
}

// ProblemWordStore maintains the per-learner problem-word aggregate.
type ProblemWordStore interface {
	// RecordLookup counts an on-demand pronunciation lookup and resets the
	// word's mastery.
	RecordLookup(ctx context.Context, learnerID, word string, level int) error

	// RecordMiss counts a mismatch/skip/stall occurrence of the word.
	RecordMiss(ctx context.Context, learnerID, word string, level int) error

	// RecordCorrect credits a correct read of a tracked problem word,
	// raising its mastery. A word read correctly often enough leaves the
	// problem list; untracked words are ignored.
	RecordCorrect(ctx context.Context, learnerID, word string) error

	// ProblemWords returns the learner's least-mastered words, worst first,
	// up to limit.
	ProblemWords(ctx context.Context, learnerID string, limit int) ([]ProblemWord, error)
}

// Store is the full persistence surface used by the application.
type Store interface {
	AttemptStore
	LearnerStore
	ProblemWordStore

	// Ping verifies the backing store is reachable. Used by readiness checks.
	Ping(ctx context.Context) error

	// Close releases all resources held by the store.
	Close()
}
