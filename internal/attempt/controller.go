package attempt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lukereed/readalong/internal/align"
	"github.com/lukereed/readalong/internal/coach"
	"github.com/lukereed/readalong/internal/notify"
	"github.com/lukereed/readalong/internal/progression"
	"github.com/lukereed/readalong/internal/score"
	"github.com/lukereed/readalong/pkg/provider/stt"
	"github.com/lukereed/readalong/pkg/provider/tts"
	"github.com/lukereed/readalong/pkg/store"
	"github.com/lukereed/readalong/pkg/types"
)

// Controller defaults.
const (
	// defaultStallCap is how many consecutive stall events may be emitted for
	// one word before the controller forces a mismatch and advances.
	defaultStallCap = 2

	// defaultMaxWPS bounds the plausible reading rate. Tokens that would push
	// the cursor past this rate are recognizer noise (TV in the background, a
	// sibling talking) and are dropped before alignment.
	defaultMaxWPS = 3.5
)

// ErrInvalidTransition is returned when a lifecycle call is made from a state
// that does not allow it.
var ErrInvalidTransition = errors.New("attempt: invalid state transition")

// ControllerConfig carries everything a [Controller] needs. Story, LearnerID,
// Store, and Notifier are required; the rest defaults sensibly.
type ControllerConfig struct {
	// AttemptID identifies the attempt. Required.
	AttemptID string

	// LearnerID identifies the learner. Required.
	LearnerID string

	// Story is the immutable expected-word sequence being read. Required.
	Story types.Story

	// Store persists the attempt, its events, the score, and the learner's
	// level state. Required.
	Store store.Store

	// Notifier receives live alignment deltas and the completion message.
	// Required.
	Notifier notify.Notifier

	// Synthesizer voices coaching prompts. Optional; when nil, coaching is
	// text-only through the notifier.
	Synthesizer tts.Synthesizer

	// Logger receives structured lifecycle logs. Defaults to [slog.Default].
	Logger *slog.Logger

	// StallInterval is the silence window before a stall fires. Defaults to 5s.
	StallInterval time.Duration

	// StallCap is the consecutive-stall limit per word before a forced
	// advance. Defaults to 2.
	StallCap int

	// MaxWPS is the words-per-second ceiling for the cursor rate limiter.
	// Defaults to 3.5.
	MaxWPS float64

	// AlignerOptions tune the per-attempt aligner (lookahead, retry budget,
	// matcher).
	AlignerOptions []align.AlignerOption

	// Scoring configures the score calculator. Zero value means
	// [score.DefaultConfig].
	Scoring score.Config

	// Progression configures the leveling engine. Zero value means
	// [progression.DefaultConfig].
	Progression progression.Config

	// now is the clock, injectable for tests.
	now func() time.Time
}

func (c ControllerConfig) validate() error {
	var errs []error
	if c.AttemptID == "" {
		errs = append(errs, errors.New("AttemptID must be set"))
	}
	if c.LearnerID == "" {
		errs = append(errs, errors.New("LearnerID must be set"))
	}
	if len(c.Story.Words) == 0 {
		errs = append(errs, errors.New("Story must have at least one word"))
	}
	if c.Store == nil {
		errs = append(errs, errors.New("Store must be set"))
	}
	if c.Notifier == nil {
		errs = append(errs, errors.New("Notifier must be set"))
	}
	return errors.Join(errs...)
}

// Controller drives one attempt through its lifecycle
// (idle → recording ⇄ paused → complete, error on unrecoverable fault) and
// wires the aligner, watchdog, event log, persistence, scoring, and
// progression together.
//
// One mutex serialises every mutation: token arrivals, watchdog callbacks,
// and lifecycle transitions all observe the cursor and the attempt state
// under the same lock, so a stall can never race a genuine advance. Each
// controller owns exactly one attempt; nothing is shared across attempts.
type Controller struct {
	cfg      ControllerConfig
	logger   *slog.Logger
	now      func() time.Time
	interval time.Duration

	mu      sync.Mutex
	state   types.AttemptState
	aligner *align.Aligner
	log     *EventLog
	dog     *Watchdog

	// epoch increments on every pause so tokens captured before the pause,
	// arriving after, are recognisable as stale and discarded.
	epoch uint64

	startedAt   time.Time
	pausedAt    time.Time
	pausedTotal time.Duration

	stallStreak   int
	hints         int
	skips         int
	interventions int
	persisted     int // events already written via AppendEvents
	degraded      bool

	score types.Score
}

// NewController builds a controller in the idle state.
func NewController(cfg ControllerConfig) (*Controller, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("attempt: invalid controller config: %w", err)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.StallInterval <= 0 {
		cfg.StallInterval = defaultStallInterval
	}
	if cfg.StallCap <= 0 {
		cfg.StallCap = defaultStallCap
	}
	if cfg.MaxWPS <= 0 {
		cfg.MaxWPS = defaultMaxWPS
	}
	if cfg.now == nil {
		cfg.now = time.Now
	}
	if cfg.Scoring.AccuracyMax == 0 {
		cfg.Scoring = score.DefaultConfig()
	}
	if cfg.Progression.Window == 0 {
		cfg.Progression = progression.DefaultConfig()
	}
	// The leveling engine reads accuracy as a fraction of the scoring cap;
	// keep the two configs on the same scale.
	if cfg.Progression.AccuracyMax <= 0 {
		cfg.Progression.AccuracyMax = cfg.Scoring.AccuracyMax
	}

	c := &Controller{
		cfg:      cfg,
		logger:   cfg.Logger.With("attempt_id", cfg.AttemptID, "learner_id", cfg.LearnerID),
		now:      cfg.now,
		interval: cfg.StallInterval,
		state:    types.AttemptIdle,
		aligner:  align.NewAligner(cfg.AttemptID, cfg.Story, cfg.AlignerOptions...),
		log:      NewEventLog(),
	}
	c.dog = NewWatchdog(cfg.StallInterval, c.onStall)
	return c, nil
}

// State returns the attempt's current lifecycle state.
func (c *Controller) State() types.AttemptState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Epoch returns the current pause/resume generation. Token producers stamp
// this onto every [types.RecognizedToken] they emit.
func (c *Controller) Epoch() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch
}

// Cursor returns the index of the word the attempt currently expects.
func (c *Controller) Cursor() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aligner.Cursor()
}

// Start transitions idle → recording: records the attempt, stamps the start
// time, and arms the stall watchdog.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != types.AttemptIdle {
		return fmt.Errorf("attempt: start from %q: %w", c.state, ErrInvalidTransition)
	}

	a := store.Attempt{
		ID:         c.cfg.AttemptID,
		LearnerID:  c.cfg.LearnerID,
		StoryID:    c.cfg.Story.ID,
		StoryLevel: c.cfg.Story.Level,
		State:      types.AttemptRecording,
		StartedAt:  c.now(),
	}
	if err := c.cfg.Store.CreateAttempt(ctx, a); err != nil {
		return fmt.Errorf("attempt: create: %w", err)
	}

	c.state = types.AttemptRecording
	c.startedAt = a.StartedAt
	c.dog.Start()
	c.logger.Info("attempt started",
		"story_id", c.cfg.Story.ID,
		"story_level", c.cfg.Story.Level,
		"total_words", len(c.cfg.Story.Words))
	return nil
}

// HandleToken feeds one recognized token through the aligner and publishes
// the resulting alignment delta. Tokens are silently dropped when the attempt
// is not recording, when they carry a stale epoch (captured before the most
// recent pause), or when accepting them would push the cursor past the
// plausible reading rate.
func (c *Controller) HandleToken(ctx context.Context, tok types.RecognizedToken) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != types.AttemptRecording {
		return
	}
	if tok.Epoch != c.epoch {
		c.logger.Debug("dropping stale token", "text", tok.Text, "token_epoch", tok.Epoch, "epoch", c.epoch)
		return
	}
	if c.overRateLimit() {
		c.logger.Debug("dropping token over rate limit", "text", tok.Text, "cursor", c.aligner.Cursor())
		return
	}

	before := c.aligner.Cursor()
	events := c.aligner.Consume(tok.Text, c.elapsed())
	if len(events) == 0 {
		return
	}
	if c.aligner.Cursor() > before {
		c.dog.Reset()
		c.stallStreak = 0
	}
	c.record(ctx, events)

	if c.aligner.Done() {
		c.finishLocked(ctx, types.AttemptComplete)
	}
}

// Pause transitions recording → paused: the watchdog is suspended and the
// epoch is bumped so any token still in flight from before the pause is
// discarded rather than scored.
func (c *Controller) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != types.AttemptRecording {
		return fmt.Errorf("attempt: pause from %q: %w", c.state, ErrInvalidTransition)
	}
	c.state = types.AttemptPaused
	c.epoch++
	c.pausedAt = c.now()
	c.dog.Suspend()
	c.logger.Info("attempt paused", "cursor", c.aligner.Cursor())
	return nil
}

// Resume transitions paused → recording and rearms the watchdog.
func (c *Controller) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != types.AttemptPaused {
		return fmt.Errorf("attempt: resume from %q: %w", c.state, ErrInvalidTransition)
	}
	c.state = types.AttemptRecording
	c.pausedTotal += c.now().Sub(c.pausedAt)
	c.pausedAt = time.Time{}
	c.dog.Resume()
	c.logger.Info("attempt resumed", "cursor", c.aligner.Cursor())
	return nil
}

// RequestHint records an on-demand pronunciation request for the word the
// cursor is on and returns the coaching text for it. Synthesis, when a
// provider is configured, happens asynchronously and is best-effort.
func (c *Controller) RequestHint(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != types.AttemptRecording && c.state != types.AttemptPaused {
		return "", fmt.Errorf("attempt: hint from %q: %w", c.state, ErrInvalidTransition)
	}
	if c.aligner.Done() {
		return "", fmt.Errorf("attempt: hint past last word: %w", ErrInvalidTransition)
	}

	idx := c.aligner.Cursor()
	word := c.cfg.Story.Words[idx]
	ev := types.WordEvent{
		AttemptID: c.cfg.AttemptID,
		WordIndex: idx,
		Expected:  word,
		Type:      types.EventHint,
		Timestamp: c.elapsed(),
	}
	c.hints++
	c.record(ctx, []types.WordEvent{ev})

	if err := c.cfg.Store.RecordLookup(ctx, c.cfg.LearnerID, word, c.cfg.Story.Level); err != nil {
		c.logger.Warn("recording hint lookup failed", "word", word, "error", err)
	}

	text := coach.BuildCoachingText(word)
	c.speak(text)
	return text, nil
}

// Finish finalizes the attempt: the event log is frozen, the score computed
// from it, attempt and score persisted atomically, and the learner's level
// re-evaluated. Idempotent — finishing an already-finished attempt returns
// the stored score with no side effects.
func (c *Controller) Finish(ctx context.Context) (types.Score, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Terminal() {
		return c.score, nil
	}
	c.finishLocked(ctx, types.AttemptComplete)
	return c.score, nil
}

// Abort moves the attempt to the error state on an unrecoverable fault and
// finalizes it with a partial score over whatever was read.
func (c *Controller) Abort(ctx context.Context, reason string) (types.Score, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Terminal() {
		return c.score, nil
	}
	c.logger.Error("attempt aborted", "reason", reason, "cursor", c.aligner.Cursor())
	c.finishLocked(ctx, types.AttemptError)
	return c.score, nil
}

// Degrade switches the attempt into read-without-scoring mode after the
// transcription provider dropped out: the watchdog stops (there is no token
// stream left for it to police) and the learner keeps reading without live
// feedback. The attempt still finishes normally, scored over what was
// aligned before the dropout.
func (c *Controller) Degrade(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Terminal() || c.degraded {
		return
	}
	c.degraded = true
	c.dog.Stop()
	c.logger.Warn("attempt degraded", "reason", reason)
	c.cfg.Notifier.Degraded(c.cfg.AttemptID, reason)
}

// Run consumes a transcription session until the attempt finishes, the
// stream ends, or ctx is cancelled. A stream error degrades the attempt
// instead of aborting it; ctx cancellation finalizes with a partial score.
func (c *Controller) Run(ctx context.Context, session stt.SessionHandle) error {
	defer session.Close()

	for {
		select {
		case <-ctx.Done():
			_, err := c.Abort(context.WithoutCancel(ctx), "context cancelled")
			return err
		case tok, ok := <-session.Tokens():
			if !ok {
				if err := session.Err(); err != nil {
					c.Degrade(err.Error())
					return nil
				}
				_, err := c.Finish(ctx)
				return err
			}
			// Provider streams know nothing about epochs; stamp tokens
			// on receipt so only those in flight across a pause go stale.
			tok.Epoch = c.Epoch()
			c.HandleToken(ctx, tok)
			if c.State().Terminal() {
				return nil
			}
		}
	}
}

// onStall is the watchdog callback. It emits a stall event for the current
// word; past the consecutive-stall cap it forces a mismatch and advances so
// the reader is never parked on one word forever.
func (c *Controller) onStall() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != types.AttemptRecording || c.aligner.Done() {
		return
	}
	ctx := context.Background()

	if c.stallStreak >= c.cfg.StallCap {
		ev, ok := c.aligner.ForceAdvance(c.elapsed())
		if !ok {
			return
		}
		c.stallStreak = 0
		c.logger.Info("stall cap reached, advancing", "word_index", ev.WordIndex, "expected", ev.Expected)
		c.record(ctx, []types.WordEvent{ev})
		if c.aligner.Done() {
			c.finishLocked(ctx, types.AttemptComplete)
		}
		return
	}

	idx := c.aligner.Cursor()
	word := c.cfg.Story.Words[idx]
	ev := types.WordEvent{
		AttemptID: c.cfg.AttemptID,
		WordIndex: idx,
		Expected:  word,
		Type:      types.EventStall,
		Severity:  1,
		Timestamp: c.elapsed(),
	}
	c.stallStreak++
	c.interventions++
	c.record(ctx, []types.WordEvent{ev})
	c.speak(coach.BuildCoachingText(word))
}

// record appends events to the log, persists them, updates assist counts and
// problem-word aggregates, requests coaching for mismatches, and publishes
// the alignment delta. Callers hold c.mu.
func (c *Controller) record(ctx context.Context, events []types.WordEvent) {
	var problems []types.WordEvent
	for _, ev := range events {
		if err := c.log.Append(ev); err != nil {
			c.logger.Error("event append rejected", "type", ev.Type, "word_index", ev.WordIndex, "error", err)
			continue
		}
		if ev.Type == types.EventSkip {
			c.skips++
		}
		if ev.Type.IsProblem() {
			problems = append(problems, ev)
			if err := c.cfg.Store.RecordMiss(ctx, c.cfg.LearnerID, ev.Expected, c.cfg.Story.Level); err != nil {
				c.logger.Warn("recording problem word failed", "word", ev.Expected, "error", err)
			}
		}
		if ev.Type == types.EventCorrect || ev.Type == types.EventFuzzy {
			if err := c.cfg.Store.RecordCorrect(ctx, c.cfg.LearnerID, ev.Expected); err != nil {
				c.logger.Warn("crediting problem word failed", "word", ev.Expected, "error", err)
			}
		}
		if ev.Type == types.EventMismatch {
			c.speak(coach.BuildCoachingText(ev.Expected))
		}
	}

	all := c.log.Events()
	if err := c.cfg.Store.AppendEvents(ctx, c.cfg.AttemptID, all[c.persisted:]); err != nil {
		// Finish re-persists everything not yet written, so a failed live
		// append only delays durability.
		c.logger.Warn("persisting events failed", "count", len(all)-c.persisted, "error", err)
	} else {
		c.persisted = len(all)
	}

	c.cfg.Notifier.AlignmentDelta(notify.AlignmentDelta{
		AttemptID:    c.cfg.AttemptID,
		Events:       events,
		CurrentIndex: c.aligner.Cursor(),
		TotalWords:   len(c.cfg.Story.Words),
		Problems:     problems,
	})
}

// finishLocked performs the single terminal transition. Callers hold c.mu and
// have verified the state is not already terminal.
func (c *Controller) finishLocked(ctx context.Context, terminal types.AttemptState) {
	// Close out a pause so paused time is accounted for.
	if c.state == types.AttemptPaused {
		c.pausedTotal += c.now().Sub(c.pausedAt)
	}
	c.state = terminal
	c.dog.Stop()

	// Appends are synchronous under c.mu, so freezing here guarantees the
	// log is complete before the score is computed.
	c.log.Freeze()
	events := c.log.Events()

	end := c.now()
	timing := score.Elapsed(c.startedAt, end, c.pausedTotal, c.aligner.Cursor(), len(c.cfg.Story.Words))
	c.score = score.Compute(events, timing, c.cfg.Story.Level, c.cfg.Scoring)

	a := store.Attempt{
		ID:            c.cfg.AttemptID,
		LearnerID:     c.cfg.LearnerID,
		StoryID:       c.cfg.Story.ID,
		StoryLevel:    c.cfg.Story.Level,
		State:         terminal,
		StartedAt:     c.startedAt,
		EndedAt:       end,
		CurrentIndex:  c.aligner.Cursor(),
		Hints:         c.hints,
		Skips:         c.skips,
		Interventions: c.interventions,
	}
	if err := c.cfg.Store.FinishAttempt(ctx, a, events[c.persisted:], c.score); err != nil {
		c.logger.Error("persisting finished attempt failed", "error", err)
	} else {
		c.persisted = len(events)
	}

	c.evaluateProgression(ctx)

	c.logger.Info("attempt finished",
		"state", terminal,
		"total", c.score.Total,
		"accuracy", c.score.Accuracy,
		"fluency", c.score.Fluency,
		"independence", c.score.Independence,
		"wpm", c.score.WPM,
		"words_reached", c.score.WordsReached)

	c.cfg.Notifier.Completed(notify.Completion{
		AttemptID: c.cfg.AttemptID,
		Score:     c.score,
		Message:   c.score.Summary,
	})
}

// evaluateProgression re-runs the leveling engine over the learner's updated
// history. A persistence failure here never blocks attempt completion.
func (c *Controller) evaluateProgression(ctx context.Context) {
	state, err := c.cfg.Store.LevelState(ctx, c.cfg.LearnerID)
	if err != nil {
		c.logger.Error("loading level state failed", "error", err)
		return
	}
	history, err := c.cfg.Store.History(ctx, c.cfg.LearnerID, progression.DefaultWindow)
	if err != nil {
		c.logger.Error("loading attempt history failed", "error", err)
		return
	}

	decision := progression.Evaluate(history, state, c.cfg.Progression)
	next := progression.Apply(state, decision)
	if err := c.cfg.Store.SaveLevelState(ctx, next); err != nil {
		c.logger.Error("saving level state failed", "error", err)
		return
	}
	c.logger.Info("progression evaluated",
		"action", decision.Action,
		"level", next.CurrentLevel,
		"confidence", next.Confidence,
		"rationale", decision.Rationale)
}

// speak requests coaching audio without blocking token processing. Synthesis
// failures are logged and dropped; the triggering event is already recorded.
func (c *Controller) speak(text string) {
	if c.cfg.Synthesizer == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, err := c.cfg.Synthesizer.Synthesize(ctx, text); err != nil {
			c.logger.Warn("coaching synthesis failed", "error", err)
		}
	}()
}

// elapsed returns active reading time since start, paused intervals excluded.
// Callers hold c.mu.
func (c *Controller) elapsed() time.Duration {
	d := c.now().Sub(c.startedAt) - c.pausedTotal
	if !c.pausedAt.IsZero() {
		d -= c.now().Sub(c.pausedAt)
	}
	if d < 0 {
		return 0
	}
	return d
}

// overRateLimit reports whether the cursor has already outrun the plausible
// reading rate for the elapsed active time. Callers hold c.mu.
func (c *Controller) overRateLimit() bool {
	limit := int(c.elapsed().Seconds()*c.cfg.MaxWPS) + 1
	return c.aligner.Cursor() >= limit
}
