// Package story supplies the immutable expected-word sequences attempts are
// read against. The engine never generates or edits story text; it only
// needs an ordered word list with stable zero-based indices and the story's
// difficulty level.
package story

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/lukereed/readalong/pkg/types"
)

// ErrNotFound is returned when no story exists for the requested ID.
var ErrNotFound = errors.New("story: not found")

// Level word-count ranges, one per difficulty tier. Used to sanity-check
// stories registered with a static provider.
var levelWordRanges = map[int][2]int{
	1: {100, 200},
	2: {200, 300},
	3: {300, 600},
	4: {600, 900},
	5: {900, 1500},
	6: {1500, 2000},
}

// Provider resolves a story ID to its word sequence and level.
type Provider interface {
	// Story returns the story, or [ErrNotFound].
	Story(ctx context.Context, id string) (types.Story, error)
}

// Split breaks story text into its ordered word sequence. Words keep their
// punctuation as written; normalisation for matching happens downstream.
func Split(text string) []string {
	return strings.Fields(text)
}

// WordRange returns the expected word-count range for a difficulty level and
// whether the level is known.
func WordRange(level int) (minWords, maxWords int, ok bool) {
	r, ok := levelWordRanges[level]
	return r[0], r[1], ok
}

// Static is an in-memory [Provider] for fixed story sets: seeded demo
// content, tests, and single-machine development.
type Static struct {
	mu      sync.RWMutex
	stories map[string]types.Story
}

var _ Provider = (*Static)(nil)

// NewStatic creates an empty static provider.
func NewStatic() *Static {
	return &Static{stories: make(map[string]types.Story)}
}

// Add registers a story. The word sequence must be non-empty and the level a
// known tier; the word count is allowed to fall outside the level's range
// (short test fixtures are fine) but the level itself must exist.
func (s *Static) Add(st types.Story) error {
	if st.ID == "" {
		return errors.New("story: add: ID must be set")
	}
	if len(st.Words) == 0 {
		return fmt.Errorf("story: add %q: no words", st.ID)
	}
	if _, _, ok := WordRange(st.Level); !ok {
		return fmt.Errorf("story: add %q: unknown level %d", st.ID, st.Level)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Copy the word slice so later caller mutation cannot reach the stored
	// sequence. Stories are immutable once registered.
	words := make([]string, len(st.Words))
	copy(words, st.Words)
	st.Words = words
	s.stories[st.ID] = st
	return nil
}

// AddText registers a story from raw text, splitting it into words.
func (s *Static) AddText(id, title string, level int, text string) error {
	return s.Add(types.Story{ID: id, Title: title, Level: level, Words: Split(text)})
}

// Story implements [Provider].
func (s *Static) Story(_ context.Context, id string) (types.Story, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.stories[id]
	if !ok {
		return types.Story{}, fmt.Errorf("story %q: %w", id, ErrNotFound)
	}
	return st, nil
}

// IDs returns the registered story IDs in no particular order.
func (s *Static) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.stories))
	for id := range s.stories {
		out = append(out, id)
	}
	return out
}
