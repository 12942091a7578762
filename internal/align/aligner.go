package align

import (
	"time"

	"github.com/lukereed/readalong/pkg/types"
)

// Default aligner tunables.
const (
	// defaultLookahead is the number of expected words ahead of the cursor
	// searched for a match before declaring no-match.
	defaultLookahead = 5

	// defaultRetryThreshold is the number of unmatched tokens tolerated at a
	// fixed cursor position before a mismatch is emitted and the cursor is
	// advanced anyway. The reader is never stuck on one word indefinitely.
	defaultRetryThreshold = 3
)

// Event severities. Skip events scale with the distance jumped instead.
const (
	severityFuzzy    = 1
	severityMismatch = 2
)

// commonShortWords are words so frequent in early-reader text that matching
// them deep in the lookahead window is more likely recognizer noise than a
// real jump. Beyond the first lookahead position they only match exactly,
// and not at all when the expected word there is also short or common.
var commonShortWords = map[string]struct{}{
	"a": {}, "an": {}, "am": {}, "as": {}, "at": {}, "be": {}, "by": {},
	"do": {}, "go": {}, "he": {}, "i": {}, "if": {}, "in": {}, "is": {},
	"it": {}, "me": {}, "my": {}, "no": {}, "of": {}, "on": {}, "or": {},
	"so": {}, "to": {}, "up": {}, "us": {}, "we": {}, "the": {}, "and": {},
	"are": {}, "but": {}, "can": {}, "did": {}, "for": {}, "get": {},
	"got": {}, "had": {}, "has": {}, "her": {}, "him": {}, "his": {},
	"how": {}, "its": {}, "let": {}, "may": {}, "new": {}, "not": {},
	"now": {}, "old": {}, "one": {}, "our": {}, "out": {}, "own": {},
	"put": {}, "ran": {}, "run": {}, "say": {}, "see": {}, "she": {},
	"too": {}, "two": {}, "use": {}, "was": {}, "way": {}, "who": {},
	"why": {}, "you": {}, "all": {}, "big": {},
}

// AlignerOption is a functional option for configuring an [Aligner].
type AlignerOption func(*Aligner)

// WithLookahead sets the lookahead window size K. Default: 5.
func WithLookahead(k int) AlignerOption {
	return func(a *Aligner) {
		if k > 0 {
			a.lookahead = k
		}
	}
}

// WithRetryThreshold sets how many unmatched tokens are tolerated at one
// cursor position before a mismatch is emitted and the cursor advances.
// Default: 3.
func WithRetryThreshold(n int) AlignerOption {
	return func(a *Aligner) {
		if n > 0 {
			a.retryThreshold = n
		}
	}
}

// WithMatcher replaces the default [Matcher].
func WithMatcher(m *Matcher) AlignerOption {
	return func(a *Aligner) {
		a.matcher = m
	}
}

// Aligner is the per-attempt word alignment state machine. It consumes one
// recognized token at a time, advances a cursor over the story's expected
// words, and emits classified [types.WordEvent] values.
//
// The cursor is monotonically non-decreasing: it advances on correct, fuzzy,
// skip-recovery, and forced-mismatch transitions and never moves backwards.
//
// An Aligner is owned by a single attempt's session controller and is NOT
// safe for concurrent use; the controller serialises token arrivals and
// watchdog callbacks onto it.
type Aligner struct {
	attemptID      string
	words          []string // expected words as written
	canonical      []string // expected words in canonical form
	matcher        *Matcher
	lookahead      int
	retryThreshold int

	cursor     int
	retryCount int
}

// NewAligner creates an aligner for one attempt over the given story.
// The expected-word sequence is normalised once up front.
func NewAligner(attemptID string, story types.Story, opts ...AlignerOption) *Aligner {
	a := &Aligner{
		attemptID:      attemptID,
		words:          story.Words,
		canonical:      NormalizeWords(story.Words),
		matcher:        NewMatcher(),
		lookahead:      defaultLookahead,
		retryThreshold: defaultRetryThreshold,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Cursor returns the index of the expected word the aligner currently
// expects to hear next.
func (a *Aligner) Cursor() int { return a.cursor }

// Done reports whether the cursor has passed the last expected-word index.
func (a *Aligner) Done() bool { return a.cursor >= len(a.words) }

// Consume processes one recognized token and returns the word events it
// produced, in emission order. An empty slice means the token neither
// matched nor exhausted the retry budget — the cursor holds and the aligner
// waits for the next token.
//
// ts is the token's timestamp relative to session start; it is stamped onto
// every emitted event.
func (a *Aligner) Consume(raw string, ts time.Duration) []types.WordEvent {
	if a.Done() {
		return nil
	}
	recognized := Normalize(raw)
	if recognized == "" {
		return nil
	}

	expected := a.canonical[a.cursor]

	// Exact match at the cursor.
	if a.matcher.Match(recognized, expected) == MatchExact {
		ev := a.emit(a.cursor, raw, types.EventCorrect, 0, ts)
		a.advance(a.cursor + 1)
		return []types.WordEvent{ev}
	}

	// Fuzzy match at the cursor. Smallest index distance wins ties, so a
	// fuzzy hit here beats anything found further into the window.
	if a.matcher.Match(recognized, expected) == MatchFuzzy {
		ev := a.emit(a.cursor, raw, types.EventFuzzy, severityFuzzy, ts)
		a.advance(a.cursor + 1)
		return []types.WordEvent{ev}
	}

	// Lookahead: scan cursor+1 .. cursor+K in index order. The first hit
	// wins (smallest index distance); candidates at the same offset are
	// already ordered exact before fuzzy by the matcher's edit distance.
	if d, kind := a.scanAhead(recognized); d > 0 {
		events := make([]types.WordEvent, 0, d+1)
		for s := range d {
			// Skipped words carry severity equal to the jump size so a
			// one-word stumble reads differently from a paragraph jump.
			events = append(events, a.emit(a.cursor+s, "", types.EventSkip, d, ts))
		}
		matchType := types.EventCorrect
		severity := 0
		if kind == MatchFuzzy {
			matchType = types.EventFuzzy
			severity = severityFuzzy
		}
		events = append(events, a.emit(a.cursor+d, raw, matchType, severity, ts))
		a.advance(a.cursor + d + 1)
		return events
	}

	// No match anywhere in the window: burn one retry. Once the budget for
	// this cursor position is exhausted, emit a mismatch and move on.
	a.retryCount++
	if a.retryCount > a.retryThreshold {
		ev := a.emit(a.cursor, raw, types.EventMismatch, severityMismatch, ts)
		a.advance(a.cursor + 1)
		return []types.WordEvent{ev}
	}
	return nil
}

// ForceAdvance emits a mismatch for the current cursor word and advances the
// cursor unconditionally. Used by the stall watchdog when a word has stalled
// past its repeat cap. Returns false when the aligner is already done.
func (a *Aligner) ForceAdvance(ts time.Duration) (types.WordEvent, bool) {
	if a.Done() {
		return types.WordEvent{}, false
	}
	ev := a.emit(a.cursor, "", types.EventMismatch, severityMismatch, ts)
	a.advance(a.cursor + 1)
	return ev, true
}

// scanAhead searches the lookahead window for the nearest expected word the
// token matches. Returns the offset from the cursor (0 when nothing matched)
// and the match kind.
//
// Guards against false jumps (common recognizer noise on early-reader text):
// at offsets beyond 1, only exact matches count — and when both the token and
// the expected word there are common filler words ("the" matching a "the"
// four words ahead), not even those.
func (a *Aligner) scanAhead(recognized string) (int, MatchKind) {
	_, commonToken := commonShortWords[recognized]

	limit := min(a.lookahead, len(a.words)-1-a.cursor)
	for d := 1; d <= limit; d++ {
		ahead := a.canonical[a.cursor+d]
		kind := a.matcher.Match(recognized, ahead)
		if kind == MatchNone {
			continue
		}
		if d == 1 {
			return d, kind
		}
		if kind != MatchExact {
			continue
		}
		if _, commonAhead := commonShortWords[ahead]; commonToken && commonAhead {
			continue
		}
		return d, kind
	}
	return 0, MatchNone
}

// advance moves the cursor forward and resets the per-word retry budget.
func (a *Aligner) advance(to int) {
	a.cursor = to
	a.retryCount = 0
}

// emit builds a word event for the expected word at index.
func (a *Aligner) emit(index int, recognized string, t types.EventType, severity int, ts time.Duration) types.WordEvent {
	return types.WordEvent{
		AttemptID:  a.attemptID,
		WordIndex:  index,
		Expected:   a.words[index],
		Recognized: recognized,
		Type:       t,
		Severity:   severity,
		Timestamp:  ts,
	}
}
