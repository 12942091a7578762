package story

import (
	"context"
	"errors"
	"testing"

	"github.com/lukereed/readalong/pkg/types"
)

func TestSplit(t *testing.T) {
	t.Parallel()
	got := Split("The cat  sat\non the mat.")
	want := []string{"The", "cat", "sat", "on", "the", "mat."}
	if len(got) != len(want) {
		t.Fatalf("Split returned %d words, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("word %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestStaticProvider(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	p := NewStatic()

	if err := p.AddText("s1", "The Cat", 1, "the cat sat on the mat"); err != nil {
		t.Fatalf("AddText: %v", err)
	}

	st, err := p.Story(ctx, "s1")
	if err != nil {
		t.Fatalf("Story: %v", err)
	}
	if st.Title != "The Cat" || st.Level != 1 || len(st.Words) != 6 {
		t.Errorf("story = %+v, want title %q level 1 with 6 words", st, "The Cat")
	}

	if _, err := p.Story(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Story(nope) err = %v, want ErrNotFound", err)
	}
}

func TestStaticAddValidation(t *testing.T) {
	t.Parallel()
	p := NewStatic()

	if err := p.Add(types.Story{Words: []string{"hi"}, Level: 1}); err == nil {
		t.Error("Add accepted story without ID")
	}
	if err := p.Add(types.Story{ID: "x", Level: 1}); err == nil {
		t.Error("Add accepted story without words")
	}
	if err := p.Add(types.Story{ID: "x", Words: []string{"hi"}, Level: 9}); err == nil {
		t.Error("Add accepted unknown level")
	}
}

func TestStoredStoryIsImmutable(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	p := NewStatic()

	words := []string{"the", "cat"}
	if err := p.Add(types.Story{ID: "s1", Level: 1, Words: words}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	words[0] = "mutated"

	st, err := p.Story(ctx, "s1")
	if err != nil {
		t.Fatalf("Story: %v", err)
	}
	if st.Words[0] != "the" {
		t.Errorf("stored story mutated via caller slice: %v", st.Words)
	}
}

func TestWordRange(t *testing.T) {
	t.Parallel()
	lo, hi, ok := WordRange(3)
	if !ok || lo != 300 || hi != 600 {
		t.Errorf("WordRange(3) = (%d, %d, %v), want (300, 600, true)", lo, hi, ok)
	}
	if _, _, ok := WordRange(7); ok {
		t.Error("WordRange(7) reported a known level")
	}
}
