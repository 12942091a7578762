// Package coach builds the spoken prompts the engine plays when a reader
// struggles with a word.
//
// Coaching text is assembled from two parts: a fixed encouragement frame
// ("The word is ...") and, for words with non-obvious English spelling, a
// short phonetic hint derived from pattern rules (silent letters, digraphs,
// tricky endings). The hints target an early-reader audience, so they name
// the sound rather than use IPA.
package coach

import (
	"fmt"
	"regexp"
	"strings"
)

// Pattern rules for spellings that commonly trip up early readers. A word
// matching any rule gets a phonetic hint appended to its coaching text.
var (
	// Trailing silent 'e' after consonant-vowel-consonant changes the vowel
	// sound ("make", "bike").
	silentE = regexp.MustCompile(`^[a-z]*[bcdfghjklmnpqrstvwxyz][aeiou][bcdfghjklmnpqrstvwxyz]e$`)

	ghPattern   = regexp.MustCompile(`gh`)
	phPattern   = regexp.MustCompile(`ph`)
	knPrefix    = regexp.MustCompile(`^kn`)
	wrPrefix    = regexp.MustCompile(`^wr`)
	tionSuffix  = regexp.MustCompile(`[ts]ion$`)
	oughPattern = regexp.MustCompile(`ough`)
	// Go's RE2 engine has no backreferences, so the doubled-letter pattern
	// `([a-z])\1` is spelled out as an alternation.
	doubleChar = regexp.MustCompile(`aa|bb|cc|dd|ee|ff|gg|hh|ii|jj|kk|ll|mm|nn|oo|pp|qq|rr|ss|tt|uu|vv|ww|xx|yy|zz`)
	leEnding   = regexp.MustCompile(`[bcdfgkptz]le$`)
)

// simpleWords are frequent early-level words whose pronunciation is regular
// enough that a phonetic hint would be noise.
var simpleWords = map[string]struct{}{
	"a": {}, "an": {}, "i": {}, "is": {}, "it": {}, "in": {}, "on": {},
	"up": {}, "to": {}, "go": {}, "no": {}, "so": {}, "do": {}, "he": {},
	"she": {}, "we": {}, "be": {}, "me": {}, "my": {}, "at": {}, "am": {},
	"the": {}, "and": {}, "but": {}, "not": {}, "you": {}, "was": {},
	"are": {}, "his": {}, "her": {}, "had": {}, "has": {}, "can": {},
	"ran": {}, "big": {}, "red": {}, "see": {}, "saw": {}, "run": {},
	"fun": {}, "sun": {}, "cat": {}, "dog": {}, "hat": {}, "bat": {},
	"sit": {}, "hit": {}, "got": {}, "hot": {}, "lot": {}, "let": {},
	"get": {}, "set": {}, "put": {}, "cut": {}, "cup": {}, "bus": {},
	"mud": {}, "bug": {}, "rug": {}, "hug": {}, "dug": {}, "all": {},
	"for": {}, "out": {}, "old": {}, "new": {}, "now": {}, "how": {},
	"too": {}, "two": {}, "did": {}, "say": {}, "said": {},
}

// clean strips surrounding punctuation and lowercases a word for rule
// matching.
func clean(word string) string {
	return strings.ToLower(strings.Trim(word, `.,!?;:'"()-`))
}

// NeedsPhonetic reports whether a word likely has a tricky pronunciation
// worth a hint.
func NeedsPhonetic(word string) bool {
	w := clean(word)
	if _, ok := simpleWords[w]; ok {
		return false
	}
	if len(w) <= 2 {
		return false
	}
	switch {
	case silentE.MatchString(w),
		ghPattern.MatchString(w),
		phPattern.MatchString(w),
		knPrefix.MatchString(w),
		wrPrefix.MatchString(w),
		tionSuffix.MatchString(w),
		oughPattern.MatchString(w),
		leEnding.MatchString(w):
		return true
	case len(w) >= 5 && doubleChar.MatchString(w):
		return true
	}
	return false
}

// PhoneticHint returns a child-friendly pronunciation hint for a word, or ""
// when the word is simple enough to need none.
func PhoneticHint(word string) string {
	w := clean(word)
	if !NeedsPhonetic(w) {
		return ""
	}

	var hints []string
	if ghPattern.MatchString(w) {
		switch {
		case strings.HasSuffix(w, "ght"):
			hints = append(hints, `The "gh" is silent!`)
		case strings.HasSuffix(w, "ugh") && !strings.HasSuffix(w, "ough"):
			hints = append(hints, `The "gh" sounds like "f"!`)
		case strings.Contains(w, "ough"):
			hints = append(hints, `"ough" is a tricky sound, listen carefully!`)
		default:
			hints = append(hints, `The "gh" has a special sound, listen carefully!`)
		}
	}
	if silentE.MatchString(w) {
		hints = append(hints, `The "e" at the end is silent, it makes the vowel say its name!`)
	}
	if phPattern.MatchString(w) {
		hints = append(hints, `"ph" sounds like "f"!`)
	}
	if knPrefix.MatchString(w) {
		hints = append(hints, `The "k" is silent, just say the "n"!`)
	}
	if wrPrefix.MatchString(w) {
		hints = append(hints, `The "w" is silent, just say the "r"!`)
	}
	if tionSuffix.MatchString(w) {
		hints = append(hints, `"-tion" sounds like "shun"!`)
	}
	return strings.Join(hints, " ")
}

// BuildCoachingText builds the short spoken phrase played when the reader
// needs help with a word. A phonetic hint is appended for tricky spellings.
func BuildCoachingText(expected string) string {
	text := fmt.Sprintf("The word is %q. Can you try saying %q?", expected, expected)
	if hint := PhoneticHint(expected); hint != "" {
		text += " " + hint
	}
	return text
}
