// Package mock provides an in-memory [store.Store] for tests and
// single-machine development. It mirrors the semantics of the postgres
// implementation, including idempotent finalization and the problem-word
// mastery lifecycle, without requiring a database.
package mock

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lukereed/readalong/internal/align"
	"github.com/lukereed/readalong/pkg/store"
	"github.com/lukereed/readalong/pkg/types"
)

// masteryStep is the mastery credit per correct read of a tracked problem
// word; a word leaves the list once mastery reaches 1.0 (about three reads).
const masteryStep = 0.34

// Store is an in-memory [store.Store]. The zero value is not usable; create
// one with [New]. Safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	attempts map[string]store.Attempt
	events   map[string][]types.WordEvent
	scores   map[string]types.Score
	levels   map[string]types.LevelState
	problems map[string]map[string]*store.ProblemWord
	finished map[string][]string // learnerID → attempt IDs in finish order
}

var _ store.Store = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		attempts: make(map[string]store.Attempt),
		events:   make(map[string][]types.WordEvent),
		scores:   make(map[string]types.Score),
		levels:   make(map[string]types.LevelState),
		problems: make(map[string]map[string]*store.ProblemWord),
		finished: make(map[string][]string),
	}
}

// CreateAttempt implements [store.AttemptStore].
func (s *Store) CreateAttempt(_ context.Context, a store.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts[a.ID] = a
	return nil
}

// AppendEvents implements [store.AttemptStore].
func (s *Store) AppendEvents(_ context.Context, attemptID string, events []types.WordEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[attemptID] = append(s.events[attemptID], events...)
	return nil
}

// FinishAttempt implements [store.AttemptStore]. Finishing an attempt that is
// already terminal is a no-op.
func (s *Store) FinishAttempt(_ context.Context, a store.Attempt, events []types.WordEvent, sc types.Score) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.attempts[a.ID]; ok && existing.State.Terminal() {
		return nil
	}
	s.attempts[a.ID] = a
	s.events[a.ID] = append(s.events[a.ID], events...)
	s.scores[a.ID] = sc
	s.finished[a.LearnerID] = append(s.finished[a.LearnerID], a.ID)
	return nil
}

// Events implements [store.AttemptStore].
func (s *Store) Events(_ context.Context, attemptID string) ([]types.WordEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	evs := s.events[attemptID]
	out := make([]types.WordEvent, len(evs))
	copy(out, evs)
	return out, nil
}

// Attempt implements [store.AttemptStore].
func (s *Store) Attempt(_ context.Context, attemptID string) (store.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attempts[attemptID]
	if !ok {
		return store.Attempt{}, store.ErrNotFound
	}
	return a, nil
}

// Score returns the stored score for a finished attempt.
func (s *Store) Score(_ context.Context, attemptID string) (types.Score, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, ok := s.scores[attemptID]
	if !ok {
		return types.Score{}, store.ErrNotFound
	}
	return sc, nil
}

// LevelState implements [store.LearnerStore]. An unknown learner starts at
// level 1.
func (s *Store) LevelState(_ context.Context, learnerID string) (types.LevelState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.levels[learnerID]; ok {
		return st, nil
	}
	return types.LevelState{LearnerID: learnerID, CurrentLevel: 1}, nil
}

// SaveLevelState implements [store.LearnerStore].
func (s *Store) SaveLevelState(_ context.Context, st types.LevelState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.levels[st.LearnerID] = st
	return nil
}

// History implements [store.LearnerStore].
func (s *Store) History(_ context.Context, learnerID string, limit int) ([]types.AttemptSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := s.finished[learnerID]
	if limit > 0 && len(ids) > limit {
		ids = ids[len(ids)-limit:]
	}
	out := make([]types.AttemptSummary, 0, len(ids))
	for _, id := range ids {
		a := s.attempts[id]
		sc := s.scores[id]
		out = append(out, types.AttemptSummary{
			AttemptID:  id,
			StoryLevel: a.StoryLevel,
			Total:      sc.Total,
			Accuracy:   sc.Accuracy,
			FinishedAt: a.EndedAt,
		})
	}
	return out, nil
}

// RecordLookup implements [store.ProblemWordStore].
func (s *Store) RecordLookup(_ context.Context, learnerID, word string, level int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := problemKey(word)
	if key == "" {
		return nil
	}
	pw := s.problem(learnerID, key, level)
	pw.Lookups++
	pw.Mastery = 0
	pw.LastSeenAt = time.Now()
	return nil
}

// RecordMiss implements [store.ProblemWordStore].
func (s *Store) RecordMiss(_ context.Context, learnerID, word string, level int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := problemKey(word)
	if key == "" {
		return nil
	}
	pw := s.problem(learnerID, key, level)
	pw.Misses++
	pw.Mastery = 0
	pw.LastSeenAt = time.Now()
	return nil
}

// RecordCorrect implements [store.ProblemWordStore]. Untracked words are
// ignored; a tracked word leaves the list once mastery reaches 1.0.
func (s *Store) RecordCorrect(_ context.Context, learnerID, word string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := problemKey(word)
	byWord := s.problems[learnerID]
	pw, ok := byWord[key]
	if !ok {
		return nil
	}
	pw.Mastery += masteryStep
	pw.LastSeenAt = time.Now()
	if pw.Mastery >= 1.0 {
		delete(byWord, key)
	}
	return nil
}

// ProblemWords implements [store.ProblemWordStore].
func (s *Store) ProblemWords(_ context.Context, learnerID string, limit int) ([]store.ProblemWord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]store.ProblemWord, 0, len(s.problems[learnerID]))
	for _, pw := range s.problems[learnerID] {
		out = append(out, *pw)
	}
	// Worst first: lowest mastery, then most misses.
	sort.Slice(out, func(i, j int) bool {
		if out[i].Mastery != out[j].Mastery {
			return out[i].Mastery < out[j].Mastery
		}
		return out[i].Misses > out[j].Misses
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Ping implements [store.Store].
func (s *Store) Ping(context.Context) error { return nil }

// Close implements [store.Store].
func (s *Store) Close() {}

// problem returns the tracked entry for a word, creating it if absent.
// Callers hold s.mu.
func (s *Store) problem(learnerID, key string, level int) *store.ProblemWord {
	byWord := s.problems[learnerID]
	if byWord == nil {
		byWord = make(map[string]*store.ProblemWord)
		s.problems[learnerID] = byWord
	}
	pw, ok := byWord[key]
	if !ok {
		pw = &store.ProblemWord{Word: key, LevelFirstSeen: level}
		byWord[key] = pw
	}
	return pw
}

// problemKey canonicalises a word for aggregation so "Tree," and "tree"
// count as the same problem.
func problemKey(word string) string {
	return strings.TrimSpace(align.Normalize(word))
}
