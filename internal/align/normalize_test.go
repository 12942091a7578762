package align

import "testing"

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercase", "Cat", "cat"},
		{"trailing punctuation", "mat.", "mat"},
		{"leading punctuation", "\"the", "the"},
		{"inner apostrophe", "don't", "dont"},
		{"whitespace", "  sat \n", "sat"},
		{"diacritics", "café", "cafe"},
		{"empty", "", ""},
		{"punctuation only", "...!?", ""},
		{"digits kept", "route66", "route66"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeDeterministic(t *testing.T) {
	t.Parallel()

	const in = "Curiöus, Wörd!"
	first := Normalize(in)
	for range 10 {
		if got := Normalize(in); got != first {
			t.Fatalf("Normalize is not deterministic: %q vs %q", got, first)
		}
	}
}

func TestNormalizeWords(t *testing.T) {
	t.Parallel()

	got := NormalizeWords([]string{"The", "cat,", "SAT!"})
	want := []string{"the", "cat", "sat"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("NormalizeWords[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
