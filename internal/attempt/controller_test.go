package attempt

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lukereed/readalong/internal/notify"
	sttmock "github.com/lukereed/readalong/pkg/provider/stt/mock"
	ttsmock "github.com/lukereed/readalong/pkg/provider/tts/mock"
	storemock "github.com/lukereed/readalong/pkg/store/mock"
	"github.com/lukereed/readalong/pkg/types"
)

// fakeClock is a hand-advanced clock so tests control reading pace without
// sleeping.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// captureNotifier records everything published without ever blocking.
type captureNotifier struct {
	mu          sync.Mutex
	deltas      []notify.AlignmentDelta
	completions []notify.Completion
	degraded    []string
}

func (n *captureNotifier) AlignmentDelta(d notify.AlignmentDelta) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.deltas = append(n.deltas, d)
}

func (n *captureNotifier) Completed(c notify.Completion) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.completions = append(n.completions, c)
}

func (n *captureNotifier) Degraded(_, reason string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.degraded = append(n.degraded, reason)
}

func (n *captureNotifier) snapshot() (deltas []notify.AlignmentDelta, completions []notify.Completion, degraded []string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notify.AlignmentDelta(nil), n.deltas...),
		append([]notify.Completion(nil), n.completions...),
		append([]string(nil), n.degraded...)
}

var testStory = types.Story{
	ID:    "story-1",
	Title: "The Cat",
	Level: 2,
	Words: []string{"the", "cat", "sat", "on", "the", "mat"},
}

type fixture struct {
	ctrl     *Controller
	store    *storemock.Store
	notifier *captureNotifier
	synth    *ttsmock.Synthesizer
	clock    *fakeClock
}

func newFixture(t *testing.T, mutate func(*ControllerConfig)) *fixture {
	t.Helper()
	f := &fixture{
		store:    storemock.New(),
		notifier: &captureNotifier{},
		synth:    &ttsmock.Synthesizer{},
		clock:    newFakeClock(),
	}
	cfg := ControllerConfig{
		AttemptID:   "attempt-1",
		LearnerID:   "learner-1",
		Story:       testStory,
		Store:       f.store,
		Notifier:    f.notifier,
		Synthesizer: f.synth,
		// Long enough that the watchdog never fires unless a test wants it.
		StallInterval: time.Hour,
		now:           f.clock.Now,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	ctrl, err := NewController(cfg)
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	t.Cleanup(ctrl.dog.Stop)
	f.ctrl = ctrl
	return f
}

// feed hands a token to the controller, spacing tokens one second apart so
// the pace limiter sees a plausible reading rate.
func (f *fixture) feed(ctx context.Context, text string) {
	f.clock.Advance(time.Second)
	f.ctrl.HandleToken(ctx, types.RecognizedToken{Text: text, Epoch: f.ctrl.Epoch()})
}

func TestControllerPerfectRead(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, nil)

	if err := f.ctrl.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	for _, w := range testStory.Words {
		f.feed(ctx, w)
	}

	if got := f.ctrl.State(); got != types.AttemptComplete {
		t.Fatalf("state = %q, want complete after last word", got)
	}
	if got := f.ctrl.Cursor(); got != len(testStory.Words) {
		t.Errorf("cursor = %d, want %d", got, len(testStory.Words))
	}

	deltas, completions, _ := f.notifier.snapshot()
	if len(deltas) != len(testStory.Words) {
		t.Errorf("alignment deltas = %d, want %d", len(deltas), len(testStory.Words))
	}
	if len(completions) != 1 {
		t.Fatalf("completions = %d, want 1", len(completions))
	}
	sc := completions[0].Score
	if sc.Accuracy != 60 {
		t.Errorf("Accuracy = %v, want 60 for a perfect read", sc.Accuracy)
	}
	if sc.Independence != 15 {
		t.Errorf("Independence = %v, want 15 with no assists", sc.Independence)
	}

	a, err := f.store.Attempt(ctx, "attempt-1")
	if err != nil {
		t.Fatalf("store.Attempt: %v", err)
	}
	if a.State != types.AttemptComplete {
		t.Errorf("persisted state = %q, want complete", a.State)
	}
	evs, err := f.store.Events(ctx, "attempt-1")
	if err != nil {
		t.Fatalf("store.Events: %v", err)
	}
	if len(evs) != len(testStory.Words) {
		t.Errorf("persisted events = %d, want %d", len(evs), len(testStory.Words))
	}
}

func TestControllerStartRequiresIdle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, nil)

	if err := f.ctrl.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := f.ctrl.Start(ctx); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("second Start err = %v, want ErrInvalidTransition", err)
	}
}

func TestControllerPauseDiscardsInFlightTokens(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, nil)

	if err := f.ctrl.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	f.feed(ctx, "the")
	staleEpoch := f.ctrl.Epoch()

	if err := f.ctrl.Pause(); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if err := f.ctrl.Resume(); err != nil {
		t.Fatalf("Resume: %v", err)
	}

	// A token captured before the pause arrives late. It must not be scored.
	f.clock.Advance(time.Second)
	f.ctrl.HandleToken(ctx, types.RecognizedToken{Text: "cat", Epoch: staleEpoch})
	if got := f.ctrl.Cursor(); got != 1 {
		t.Errorf("cursor = %d after stale token, want 1", got)
	}

	// The same word re-captured after resume counts.
	f.feed(ctx, "cat")
	if got := f.ctrl.Cursor(); got != 2 {
		t.Errorf("cursor = %d after fresh token, want 2", got)
	}
}

func TestControllerPauseWhileIdleFails(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	if err := f.ctrl.Pause(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Pause from idle err = %v, want ErrInvalidTransition", err)
	}
	if err := f.ctrl.Resume(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Resume from idle err = %v, want ErrInvalidTransition", err)
	}
}

func TestControllerTokensIgnoredWhilePaused(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, nil)

	if err := f.ctrl.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := f.ctrl.Pause(); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	f.feed(ctx, "the")
	if got := f.ctrl.Cursor(); got != 0 {
		t.Errorf("cursor = %d, want 0 (tokens ignored while paused)", got)
	}
}

func TestControllerRateLimiterDropsImplausibleBursts(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, nil)

	if err := f.ctrl.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Six tokens with zero elapsed time: only the first fits under the
	// words-per-second ceiling, the burst is recognizer noise.
	for _, w := range testStory.Words {
		f.ctrl.HandleToken(ctx, types.RecognizedToken{Text: w, Epoch: f.ctrl.Epoch()})
	}
	if got := f.ctrl.Cursor(); got != 1 {
		t.Errorf("cursor = %d, want 1 (burst dropped)", got)
	}
}

func TestControllerFinishIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, nil)

	if err := f.ctrl.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	f.feed(ctx, "the")
	f.feed(ctx, "cat")

	first, err := f.ctrl.Finish(ctx)
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	second, err := f.ctrl.Finish(ctx)
	if err != nil {
		t.Fatalf("Finish (repeat): %v", err)
	}
	if first != second {
		t.Errorf("repeated Finish returned a different score:\nfirst  %+v\nsecond %+v", first, second)
	}

	_, completions, _ := f.notifier.snapshot()
	if len(completions) != 1 {
		t.Errorf("completions = %d, want 1 (no duplicate on repeat finish)", len(completions))
	}
	hist, err := f.store.History(ctx, "learner-1", 10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(hist) != 1 {
		t.Errorf("history entries = %d, want 1", len(hist))
	}
}

func TestControllerRequestHint(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, nil)

	if err := f.ctrl.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	f.feed(ctx, "the")

	text, err := f.ctrl.RequestHint(ctx)
	if err != nil {
		t.Fatalf("RequestHint: %v", err)
	}
	want := `The word is "cat". Can you try saying "cat"?`
	if text != want {
		t.Errorf("coaching text = %q, want %q", text, want)
	}

	evs := f.ctrl.log.Events()
	last := evs[len(evs)-1]
	if last.Type != types.EventHint || last.WordIndex != 1 {
		t.Errorf("last event = %+v, want hint at index 1", last)
	}

	// Hint lookups feed the problem-word aggregate.
	words, err := f.store.ProblemWords(ctx, "learner-1", 10)
	if err != nil {
		t.Fatalf("ProblemWords: %v", err)
	}
	if len(words) != 1 || words[0].Word != "cat" || words[0].Lookups != 1 {
		t.Errorf("problem words = %+v, want one lookup for %q", words, "cat")
	}

	// Synthesis is asynchronous and best-effort.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if calls := f.synth.Calls(); len(calls) == 1 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Errorf("synthesizer calls = %v, want 1", f.synth.Calls())
}

func TestControllerHintScoresIndependence(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, nil)

	if err := f.ctrl.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	for i, w := range testStory.Words {
		if i == 2 {
			if _, err := f.ctrl.RequestHint(ctx); err != nil {
				t.Fatalf("RequestHint: %v", err)
			}
		}
		f.feed(ctx, w)
	}

	_, completions, _ := f.notifier.snapshot()
	if len(completions) != 1 {
		t.Fatalf("completions = %d, want 1", len(completions))
	}
	sc := completions[0].Score
	if sc.Independence != 13 {
		t.Errorf("Independence = %v, want 13 (one hint)", sc.Independence)
	}
	if sc.Accuracy != 60 {
		t.Errorf("Accuracy = %v, want 60 (hints do not touch accuracy)", sc.Accuracy)
	}
}

func TestControllerStallEmitsAndCoaches(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, func(cfg *ControllerConfig) {
		cfg.StallInterval = 60 * time.Millisecond
	})

	if err := f.ctrl.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	f.feed(ctx, "the")
	f.feed(ctx, "cat")

	// Silence on "sat": exactly one stall for cursor 2 after one interval.
	time.Sleep(90 * time.Millisecond)
	var stalls []types.WordEvent
	for _, ev := range f.ctrl.log.Events() {
		if ev.Type == types.EventStall {
			stalls = append(stalls, ev)
		}
	}
	if len(stalls) != 1 {
		t.Fatalf("stall events = %d, want exactly 1", len(stalls))
	}
	if stalls[0].WordIndex != 2 || stalls[0].Expected != "sat" {
		t.Errorf("stall event = %+v, want index 2 (%q)", stalls[0], "sat")
	}

	// Paused attempts never stall.
	if err := f.ctrl.Pause(); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	before := f.ctrl.log.Len()
	time.Sleep(100 * time.Millisecond)
	if got := f.ctrl.log.Len(); got != before {
		t.Errorf("events grew from %d to %d while paused", before, got)
	}
}

func TestControllerStallCapForcesAdvance(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, func(cfg *ControllerConfig) {
		cfg.StallInterval = 25 * time.Millisecond
		cfg.StallCap = 1
	})

	if err := f.ctrl.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	f.feed(ctx, "the")

	// First firing stalls on "cat"; the second exceeds the cap, forces a
	// mismatch, and moves on.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && f.ctrl.Cursor() < 2 {
		time.Sleep(5 * time.Millisecond)
	}
	if got := f.ctrl.Cursor(); got < 2 {
		t.Fatalf("cursor = %d, want >= 2 after forced advance", got)
	}

	var sawStall, sawMismatch bool
	for _, ev := range f.ctrl.log.Events() {
		if ev.WordIndex != 1 {
			continue
		}
		switch ev.Type {
		case types.EventStall:
			sawStall = true
		case types.EventMismatch:
			sawMismatch = true
		}
	}
	if !sawStall || !sawMismatch {
		t.Errorf("events for index 1: stall=%v mismatch=%v, want both", sawStall, sawMismatch)
	}
}

func TestControllerAbort(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, nil)

	if err := f.ctrl.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	f.feed(ctx, "the")
	f.feed(ctx, "cat")

	sc, err := f.ctrl.Abort(ctx, "microphone unplugged")
	if err != nil {
		t.Fatalf("Abort: %v", err)
	}
	if got := f.ctrl.State(); got != types.AttemptError {
		t.Errorf("state = %q, want error", got)
	}
	if sc.WordsReached != 2 {
		t.Errorf("WordsReached = %d, want 2 (partial score)", sc.WordsReached)
	}

	a, err := f.store.Attempt(ctx, "attempt-1")
	if err != nil {
		t.Fatalf("store.Attempt: %v", err)
	}
	if a.State != types.AttemptError {
		t.Errorf("persisted state = %q, want error", a.State)
	}
}

func TestControllerRunDegradesOnStreamFailure(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, nil)

	if err := f.ctrl.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	session := sttmock.NewSession()
	done := make(chan error, 1)
	go func() { done <- f.ctrl.Run(ctx, session) }()

	f.clock.Advance(time.Second)
	session.Emit(types.RecognizedToken{Text: "the"})
	session.Fail(errors.New("upstream connection reset"))

	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
	_, _, degraded := f.notifier.snapshot()
	if len(degraded) != 1 {
		t.Fatalf("degraded signals = %d, want 1", len(degraded))
	}

	// Degraded mode keeps the attempt alive; it still finishes with a
	// partial score over what was aligned.
	if got := f.ctrl.State(); got != types.AttemptRecording {
		t.Errorf("state = %q, want recording in degraded mode", got)
	}
	sc, err := f.ctrl.Finish(ctx)
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if sc.WordsReached != 1 {
		t.Errorf("WordsReached = %d, want 1", sc.WordsReached)
	}
}

func TestControllerRunFinishesOnCleanStreamEnd(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, nil)

	if err := f.ctrl.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	session := sttmock.NewSession()
	done := make(chan error, 1)
	go func() { done <- f.ctrl.Run(ctx, session) }()

	for _, w := range []string{"the", "cat"} {
		f.clock.Advance(time.Second)
		session.Emit(types.RecognizedToken{Text: w})
	}
	session.Close()

	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := f.ctrl.State(); got != types.AttemptComplete {
		t.Errorf("state = %q, want complete", got)
	}
}

// waitForCursor polls until the aligner cursor reaches want, failing the test
// on timeout. Run consumes the stream on its own goroutine, so tests have to
// wait for a token to land before acting on its effects.
func waitForCursor(t *testing.T, ctrl *Controller, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if ctrl.Cursor() >= want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("cursor = %d, want %d", ctrl.Cursor(), want)
}

func TestControllerRunSurvivesPauseResume(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, nil)

	if err := f.ctrl.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	session := sttmock.NewSession()
	done := make(chan error, 1)
	go func() { done <- f.ctrl.Run(ctx, session) }()

	// Provider tokens come off the wire with a zero epoch; Run stamps them.
	f.clock.Advance(time.Second)
	session.Emit(types.RecognizedToken{Text: "the"})
	waitForCursor(t, f.ctrl, 1)

	if err := f.ctrl.Pause(); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if err := f.ctrl.Resume(); err != nil {
		t.Fatalf("Resume: %v", err)
	}

	// The pause bumped the epoch. Tokens received after the resume must
	// still score rather than being treated as stale forever.
	f.clock.Advance(time.Second)
	session.Emit(types.RecognizedToken{Text: "cat"})
	waitForCursor(t, f.ctrl, 2)

	session.Close()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestControllerProgressionRunsAfterFinish(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, nil)

	if err := f.ctrl.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	for _, w := range testStory.Words {
		f.feed(ctx, w)
	}

	st, err := f.store.LevelState(ctx, "learner-1")
	if err != nil {
		t.Fatalf("LevelState: %v", err)
	}
	if st.LastDecisionReason == "" {
		t.Error("level state has no decision rationale after finish")
	}
}

func TestControllerMismatchRecordsProblemWord(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, nil)

	if err := f.ctrl.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	f.feed(ctx, "the")

	// Four tokens matching nothing exhaust the retry budget on "cat".
	for range 4 {
		f.feed(ctx, "xylophone")
	}
	if got := f.ctrl.Cursor(); got != 2 {
		t.Fatalf("cursor = %d, want 2 after forced mismatch", got)
	}

	words, err := f.store.ProblemWords(ctx, "learner-1", 10)
	if err != nil {
		t.Fatalf("ProblemWords: %v", err)
	}
	if len(words) != 1 || words[0].Word != "cat" || words[0].Misses != 1 {
		t.Errorf("problem words = %+v, want one miss for %q", words, "cat")
	}
}
