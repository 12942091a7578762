package coach

import (
	"strings"
	"testing"
)

func TestNeedsPhonetic(t *testing.T) {
	t.Parallel()
	tests := []struct {
		word string
		want bool
	}{
		{"cat", false},
		{"the", false},
		{"it", false},
		{"night", true},
		{"phone", true},
		{"knee", true},
		{"write", true},
		{"station", true},
		{"enough", true},
		{"make", true},
		{"little", true},
		{"rabbit", true}, // double letter, 5+ chars
		{"dog", false},
		{"Tree,", false},
	}
	for _, tt := range tests {
		t.Run(tt.word, func(t *testing.T) {
			t.Parallel()
			if got := NeedsPhonetic(tt.word); got != tt.want {
				t.Errorf("NeedsPhonetic(%q) = %v, want %v", tt.word, got, tt.want)
			}
		})
	}
}

func TestPhoneticHint(t *testing.T) {
	t.Parallel()
	tests := []struct {
		word    string
		contain string
	}{
		{"night", `The "gh" is silent!`},
		{"phone", `"ph" sounds like "f"!`},
		{"knee", `The "k" is silent`},
		{"write", `The "w" is silent`},
		{"station", `"-tion" sounds like "shun"!`},
		{"make", `The "e" at the end is silent`},
	}
	for _, tt := range tests {
		t.Run(tt.word, func(t *testing.T) {
			t.Parallel()
			hint := PhoneticHint(tt.word)
			if !strings.Contains(hint, tt.contain) {
				t.Errorf("PhoneticHint(%q) = %q, want substring %q", tt.word, hint, tt.contain)
			}
		})
	}

	if hint := PhoneticHint("cat"); hint != "" {
		t.Errorf("PhoneticHint(\"cat\") = %q, want empty", hint)
	}
}

func TestBuildCoachingText(t *testing.T) {
	t.Parallel()

	got := BuildCoachingText("cat")
	want := `The word is "cat". Can you try saying "cat"?`
	if got != want {
		t.Errorf("BuildCoachingText(\"cat\") = %q, want %q", got, want)
	}

	got = BuildCoachingText("night")
	if !strings.HasPrefix(got, `The word is "night".`) {
		t.Errorf("missing coaching frame: %q", got)
	}
	if !strings.Contains(got, `The "gh" is silent!`) {
		t.Errorf("missing phonetic hint: %q", got)
	}
}
