package align

import (
	"testing"
	"time"

	"github.com/lukereed/readalong/pkg/types"
)

func testStory(words ...string) types.Story {
	return types.Story{ID: "story-1", Title: "test", Level: 1, Words: words}
}

// feed runs every token through the aligner and returns all emitted events.
func feed(a *Aligner, tokens ...string) []types.WordEvent {
	var events []types.WordEvent
	for i, tok := range tokens {
		events = append(events, a.Consume(tok, time.Duration(i)*time.Second)...)
	}
	return events
}

func TestAligner_PerfectRead(t *testing.T) {
	t.Parallel()

	words := []string{"the", "cat", "sat", "on", "the", "mat"}
	a := NewAligner("a1", testStory(words...))

	events := feed(a, words...)

	if len(events) != len(words) {
		t.Fatalf("got %d events, want %d", len(events), len(words))
	}
	for i, ev := range events {
		if ev.Type != types.EventCorrect {
			t.Errorf("event %d: type = %s, want correct", i, ev.Type)
		}
		if ev.WordIndex != i {
			t.Errorf("event %d: word index = %d, want %d", i, ev.WordIndex, i)
		}
	}
	if !a.Done() {
		t.Error("aligner not done after full read")
	}
	if a.Cursor() != len(words) {
		t.Errorf("cursor = %d, want %d", a.Cursor(), len(words))
	}
}

func TestAligner_SkipRecovery(t *testing.T) {
	t.Parallel()

	a := NewAligner("a1", testStory("the", "cat", "sat", "on", "the", "mat"))

	events := feed(a, "the", "cat", "mat")

	want := []struct {
		typ   types.EventType
		index int
	}{
		{types.EventCorrect, 0},
		{types.EventCorrect, 1},
		{types.EventSkip, 2},
		{types.EventSkip, 3},
		{types.EventSkip, 4},
		{types.EventCorrect, 5},
	}
	if len(events) != len(want) {
		t.Fatalf("got %d events, want %d: %+v", len(events), len(want), events)
	}
	for i, w := range want {
		if events[i].Type != w.typ || events[i].WordIndex != w.index {
			t.Errorf("event %d = %s(%d), want %s(%d)",
				i, events[i].Type, events[i].WordIndex, w.typ, w.index)
		}
	}

	// Skip severity scales with the jump distance.
	for _, ev := range events[2:5] {
		if ev.Severity != 3 {
			t.Errorf("skip severity = %d, want 3", ev.Severity)
		}
	}

	if a.Cursor() != 6 || !a.Done() {
		t.Errorf("cursor = %d done = %v, want 6 and done", a.Cursor(), a.Done())
	}
}

func TestAligner_FuzzyAtCursor(t *testing.T) {
	t.Parallel()

	a := NewAligner("a1", testStory("the", "cat", "sat"))

	events := feed(a, "the", "kat", "sat")

	wantTypes := []types.EventType{types.EventCorrect, types.EventFuzzy, types.EventCorrect}
	if len(events) != len(wantTypes) {
		t.Fatalf("got %d events, want %d", len(events), len(wantTypes))
	}
	for i, wt := range wantTypes {
		if events[i].Type != wt {
			t.Errorf("event %d: type = %s, want %s", i, events[i].Type, wt)
		}
	}
	if events[1].Recognized != "kat" {
		t.Errorf("fuzzy event recognized = %q, want %q", events[1].Recognized, "kat")
	}
}

func TestAligner_MismatchAfterRetries(t *testing.T) {
	t.Parallel()

	a := NewAligner("a1", testStory("elephant", "runs"), WithRetryThreshold(3))

	// Three garbage tokens are tolerated silently.
	for i, tok := range []string{"zzz", "qqq", "www"} {
		if events := a.Consume(tok, 0); len(events) != 0 {
			t.Fatalf("token %d: got %d events before threshold, want 0", i, len(events))
		}
		if a.Cursor() != 0 {
			t.Fatalf("token %d: cursor moved to %d before threshold", i, a.Cursor())
		}
	}

	// The fourth exhausts the budget: mismatch, cursor advances.
	events := a.Consume("xxx", 0)
	if len(events) != 1 || events[0].Type != types.EventMismatch {
		t.Fatalf("got %+v, want a single mismatch", events)
	}
	if events[0].WordIndex != 0 {
		t.Errorf("mismatch index = %d, want 0", events[0].WordIndex)
	}
	if a.Cursor() != 1 {
		t.Errorf("cursor = %d after forced advance, want 1", a.Cursor())
	}
}

func TestAligner_RetryBudgetResetsOnAdvance(t *testing.T) {
	t.Parallel()

	a := NewAligner("a1", testStory("elephant", "giraffe"), WithRetryThreshold(2))

	a.Consume("zzz", 0) // retry 1 on word 0
	a.Consume("elephant", 0)
	if a.Cursor() != 1 {
		t.Fatalf("cursor = %d, want 1", a.Cursor())
	}

	// The fresh word gets a fresh budget: two misses tolerated again.
	if events := a.Consume("qqq", 0); len(events) != 0 {
		t.Fatalf("retry budget not reset: %+v", events)
	}
	if events := a.Consume("qqq", 0); len(events) != 0 {
		t.Fatalf("retry budget not reset: %+v", events)
	}
	if events := a.Consume("qqq", 0); len(events) != 1 {
		t.Fatalf("expected mismatch on third miss, got %+v", events)
	}
}

func TestAligner_CursorMonotonic(t *testing.T) {
	t.Parallel()

	a := NewAligner("a1", testStory("one", "day", "a", "small", "bird", "flew", "home"))

	tokens := []string{"one", "day", "zzz", "small", "bird", "one", "flew", "flew", "home"}
	last := 0
	for _, tok := range tokens {
		a.Consume(tok, 0)
		if a.Cursor() < last {
			t.Fatalf("cursor decreased: %d -> %d after %q", last, a.Cursor(), tok)
		}
		last = a.Cursor()
	}
}

func TestAligner_ShortWordLookaheadGuard(t *testing.T) {
	t.Parallel()

	// "the" appears at offset 4; a common short token must not jump there.
	a := NewAligner("a1", testStory("crocodile", "swims", "under", "bright", "the", "sun"))

	events := a.Consume("the", 0)
	if len(events) != 0 {
		t.Fatalf("short token jumped ahead: %+v", events)
	}
	if a.Cursor() != 0 {
		t.Errorf("cursor = %d, want 0", a.Cursor())
	}
}

func TestAligner_LookaheadOffsetOneAllowsFuzzy(t *testing.T) {
	t.Parallel()

	a := NewAligner("a1", testStory("mumbled", "elephant", "runs"))

	// Fuzzy match one ahead: skip(0) plus fuzzy(1).
	events := a.Consume("elefant", 0)
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2: %+v", len(events), events)
	}
	if events[0].Type != types.EventSkip || events[0].WordIndex != 0 {
		t.Errorf("event 0 = %s(%d), want skip(0)", events[0].Type, events[0].WordIndex)
	}
	if events[1].Type != types.EventFuzzy || events[1].WordIndex != 1 {
		t.Errorf("event 1 = %s(%d), want fuzzy(1)", events[1].Type, events[1].WordIndex)
	}
	if a.Cursor() != 2 {
		t.Errorf("cursor = %d, want 2", a.Cursor())
	}
}

func TestAligner_DeepLookaheadExactOnly(t *testing.T) {
	t.Parallel()

	a := NewAligner("a1", testStory("one", "hungry", "little", "caterpillar", "ate"))

	// "caterpilar" is only fuzzy-close to the word at offset 3 — deep
	// lookahead requires an exact match, so the cursor must hold.
	events := a.Consume("caterpilar", 0)
	if len(events) != 0 {
		t.Fatalf("deep fuzzy lookahead accepted: %+v", events)
	}

	// The exact form does jump.
	events = a.Consume("caterpillar", 0)
	if len(events) != 4 {
		t.Fatalf("got %d events, want 3 skips + 1 correct: %+v", len(events), events)
	}
	if events[3].Type != types.EventCorrect || events[3].WordIndex != 3 {
		t.Errorf("final event = %s(%d), want correct(3)", events[3].Type, events[3].WordIndex)
	}
}

func TestAligner_ForceAdvance(t *testing.T) {
	t.Parallel()

	a := NewAligner("a1", testStory("stuck", "word"))

	ev, ok := a.ForceAdvance(2 * time.Second)
	if !ok {
		t.Fatal("ForceAdvance returned not ok on live aligner")
	}
	if ev.Type != types.EventMismatch || ev.WordIndex != 0 {
		t.Errorf("forced event = %s(%d), want mismatch(0)", ev.Type, ev.WordIndex)
	}
	if a.Cursor() != 1 {
		t.Errorf("cursor = %d, want 1", a.Cursor())
	}

	a.ForceAdvance(0)
	if _, ok := a.ForceAdvance(0); ok {
		t.Error("ForceAdvance succeeded past the last word")
	}
}

func TestAligner_IgnoresEmptyAndDoneInput(t *testing.T) {
	t.Parallel()

	a := NewAligner("a1", testStory("end"))
	if events := a.Consume("...", 0); len(events) != 0 {
		t.Errorf("punctuation-only token produced events: %+v", events)
	}
	a.Consume("end", 0)
	if !a.Done() {
		t.Fatal("aligner should be done")
	}
	if events := a.Consume("extra", 0); len(events) != 0 {
		t.Errorf("token after terminal state produced events: %+v", events)
	}
}
