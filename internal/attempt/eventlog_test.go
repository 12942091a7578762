package attempt

import (
	"errors"
	"testing"

	"github.com/lukereed/readalong/pkg/types"
)

func TestEventLogAppendAndRead(t *testing.T) {
	t.Parallel()
	l := NewEventLog()

	evs := []types.WordEvent{
		{AttemptID: "a", WordIndex: 0, Expected: "the", Type: types.EventCorrect},
		{AttemptID: "a", WordIndex: 1, Expected: "cat", Type: types.EventFuzzy, Severity: 1},
	}
	for _, ev := range evs {
		if err := l.Append(ev); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	got := l.Events()
	if len(got) != 2 {
		t.Fatalf("Events() length = %d, want 2", len(got))
	}
	if got[0].Expected != "the" || got[1].Expected != "cat" {
		t.Errorf("events out of order: %+v", got)
	}

	// The returned slice is a copy.
	got[0].Expected = "mutated"
	if l.Events()[0].Expected != "the" {
		t.Error("Events() exposed internal slice")
	}
}

func TestEventLogRejectsUnknownType(t *testing.T) {
	t.Parallel()
	l := NewEventLog()

	if err := l.Append(types.WordEvent{Type: "telepathy"}); err == nil {
		t.Error("Append accepted unknown event type")
	}
	if l.Len() != 0 {
		t.Errorf("Len() = %d, want 0", l.Len())
	}
}

func TestEventLogFreeze(t *testing.T) {
	t.Parallel()
	l := NewEventLog()

	if err := l.Append(types.WordEvent{Type: types.EventCorrect}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	l.Freeze()
	l.Freeze() // second freeze is a no-op

	err := l.Append(types.WordEvent{Type: types.EventCorrect})
	if !errors.Is(err, ErrAttemptFinalized) {
		t.Errorf("Append after freeze: err = %v, want ErrAttemptFinalized", err)
	}
	if l.Len() != 1 {
		t.Errorf("Len() = %d, want 1", l.Len())
	}
	if !l.Frozen() {
		t.Error("Frozen() = false after Freeze")
	}
}
