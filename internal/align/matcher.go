package align

import (
	"github.com/antzucaro/matchr"
)

// MatchKind is the result of comparing a canonical recognized token against a
// canonical expected word.
type MatchKind int

const (
	// MatchNone: the token does not plausibly correspond to the word.
	MatchNone MatchKind = iota

	// MatchFuzzy: the token is within the edit-distance band for the word's
	// length, shares a Double Metaphone code with it, or is a known accent
	// alias — but is not identical.
	MatchFuzzy

	// MatchExact: the canonical forms are equal.
	MatchExact
)

// String returns the lower-case name of the match kind.
func (k MatchKind) String() string {
	switch k {
	case MatchExact:
		return "exact"
	case MatchFuzzy:
		return "fuzzy"
	}
	return "none"
}

// Default edit-distance bands. Words of five characters or fewer tolerate one
// edit; longer words tolerate two.
const (
	defaultShortWordLen  = 5
	defaultShortWordDist = 1
	defaultLongWordDist  = 2
)

// MatcherOption is a functional option for configuring a [Matcher].
type MatcherOption func(*Matcher)

// WithEditDistance overrides the edit-distance bands: words up to shortLen
// characters accept shortDist edits, longer words accept longDist.
func WithEditDistance(shortLen, shortDist, longDist int) MatcherOption {
	return func(m *Matcher) {
		m.shortWordLen = shortLen
		m.shortWordDist = shortDist
		m.longWordDist = longDist
	}
}

// WithAliases installs an accent-alias table. Keys and values must already be
// in canonical ([Normalize]) form. When the recognized token maps to a set
// containing the expected word (or vice versa), the pair is accepted as a
// fuzzy match regardless of edit distance.
//
// The table captures recognizer confusions that edit distance cannot:
// "three" heard for "tree", "wery" for "very", "de" for "the".
func WithAliases(aliases map[string][]string) MatcherOption {
	return func(m *Matcher) {
		m.aliases = make(map[string]map[string]struct{}, len(aliases))
		for from, tos := range aliases {
			set := make(map[string]struct{}, len(tos))
			for _, to := range tos {
				set[to] = struct{}{}
			}
			m.aliases[from] = set
		}
	}
}

// WithPhonetic enables or disables the Double Metaphone assist. Enabled by
// default.
func WithPhonetic(enabled bool) MatcherOption {
	return func(m *Matcher) {
		m.phonetic = enabled
	}
}

// Matcher classifies a canonical recognized token against a canonical
// expected word. It is a total function with no side effects and is safe for
// concurrent use — a Matcher is read-only after construction.
//
// Short-word guards keep the leniency from backfiring:
//
//   - 1–2 character words match exactly or not at all ("a" must never match "i").
//   - 3 character words accept one edit only when the first letter agrees
//     or the words share a Double Metaphone code.
//   - Longer words use the configured edit-distance bands, with Double
//     Metaphone overlap accepted for words of four or more characters.
type Matcher struct {
	shortWordLen  int
	shortWordDist int
	longWordDist  int
	phonetic      bool
	aliases       map[string]map[string]struct{}
}

// NewMatcher returns a [Matcher] configured with the supplied options. The
// built-in [DefaultAliases] table is installed unless [WithAliases] replaces
// it.
func NewMatcher(opts ...MatcherOption) *Matcher {
	m := &Matcher{
		shortWordLen:  defaultShortWordLen,
		shortWordDist: defaultShortWordDist,
		longWordDist:  defaultLongWordDist,
		phonetic:      true,
	}
	WithAliases(DefaultAliases)(m)
	for _, o := range opts {
		o(m)
	}
	return m
}

// Match compares a canonical recognized token with a canonical expected word.
// Both arguments must already be normalised with [Normalize].
func (m *Matcher) Match(recognized, expected string) MatchKind {
	if recognized == "" || expected == "" {
		return MatchNone
	}
	if recognized == expected {
		return MatchExact
	}
	if m.aliasMatch(recognized, expected) {
		return MatchFuzzy
	}

	// Very short words: exact only. One stray character is the whole word.
	if len(expected) <= 2 {
		return MatchNone
	}

	dist := matchr.Levenshtein(recognized, expected)

	// Three-letter words accept a single edit when the first letter agrees
	// or the two words sound alike. The anchor blocks "rat" reading as
	// "sat" while the phonetic escape still admits "kat" for "cat".
	if len(expected) == 3 {
		if dist <= 1 && (recognized[0] == expected[0] || (m.phonetic && soundsAlike(recognized, expected))) {
			return MatchFuzzy
		}
		return MatchNone
	}

	if dist <= m.distanceBudget(expected) {
		return MatchFuzzy
	}

	if m.phonetic && metaphoneOverlap(recognized, expected) {
		return MatchFuzzy
	}

	return MatchNone
}

// distanceBudget returns the maximum accepted edit distance for a word of the
// given canonical form.
func (m *Matcher) distanceBudget(expected string) int {
	if len(expected) <= m.shortWordLen {
		return m.shortWordDist
	}
	return m.longWordDist
}

// aliasMatch reports whether the pair appears in the alias table in either
// direction.
func (m *Matcher) aliasMatch(recognized, expected string) bool {
	if set, ok := m.aliases[recognized]; ok {
		if _, ok := set[expected]; ok {
			return true
		}
	}
	if set, ok := m.aliases[expected]; ok {
		if _, ok := set[recognized]; ok {
			return true
		}
	}
	return false
}

// metaphoneOverlap reports whether the two words share a Double Metaphone
// code. Only applied to words of four or more characters; metaphone codes of
// very short words collide too readily to stand on their own. Three-letter
// words reach [soundsAlike] directly, gated by the one-edit cap.
func metaphoneOverlap(a, b string) bool {
	if len(a) < 4 || len(b) < 4 {
		return false
	}
	return soundsAlike(a, b)
}

// soundsAlike reports whether the two words share a non-empty Double
// Metaphone code.
func soundsAlike(a, b string) bool {
	ap, as := matchr.DoubleMetaphone(a)
	bp, bs := matchr.DoubleMetaphone(b)
	for _, ca := range []string{ap, as} {
		if ca == "" {
			continue
		}
		if ca == bp || (bs != "" && ca == bs) {
			return true
		}
	}
	return false
}
