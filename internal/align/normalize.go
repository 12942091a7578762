// Package align implements the word alignment engine that turns a stream of
// recognized speech tokens into classified word events against an expected
// story text.
//
// Raw speech-to-text output from a child reading aloud is rarely word-perfect:
// tokens arrive late, mis-segmented, and coloured by accent. The package
// applies a three-layer strategy:
//
//  1. Normalisation ([Normalize]): recognized tokens and expected words are
//     reduced to a canonical comparable form before any comparison.
//
//  2. Matching ([Matcher]): a pure token-vs-word classifier combining banded
//     edit distance (via matchr.Levenshtein), Double Metaphone phonetic
//     overlap, and a configurable accent-alias table. Deliberately lenient —
//     for a reading coach it is better to credit a close-enough pronunciation
//     than to mark a child wrong because the recognizer misheard an accent.
//
//  3. Alignment ([Aligner]): a per-attempt state machine that advances a
//     cursor over the expected words, looks ahead a small window to absorb
//     recognizer lag, and emits classified [types.WordEvent] values.
//
// Normalize and Matcher are pure and safe for concurrent use. An Aligner is
// single-writer state owned by one attempt's session controller.
package align

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Normalize reduces a raw token or expected word to its canonical comparable
// form: NFKD unicode normalisation with combining marks removed, lower-cased,
// with everything that is not a letter or digit stripped.
//
// Normalize is deterministic and side-effect-free; identical inputs always
// yield identical outputs.
func Normalize(text string) string {
	decomposed := norm.NFKD.String(text)

	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue // strip diacritic marks left over from decomposition
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

// NormalizeWords applies [Normalize] to every word and returns the canonical
// forms in the same order. Used to precompute the expected-word sequence once
// per attempt.
func NormalizeWords(words []string) []string {
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = Normalize(w)
	}
	return out
}
