package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/lukereed/readalong/internal/attempt"
	"github.com/lukereed/readalong/internal/config"
	"github.com/lukereed/readalong/internal/notify"
	"github.com/lukereed/readalong/internal/observe"
	"github.com/lukereed/readalong/pkg/provider/stt"
	"github.com/lukereed/readalong/pkg/provider/tts"
	"github.com/lukereed/readalong/pkg/store"
	"github.com/lukereed/readalong/pkg/story"
	"github.com/lukereed/readalong/pkg/types"
)

// notifyBuffer is the per-attempt notification ring size. Oldest messages
// are evicted when a consumer falls behind.
const notifyBuffer = 64

// sttContextHint conditions the recognizer for the expected speaker without
// leaking the story text into the prompt.
const sttContextHint = "a child reading a simple story aloud, slowly, one word at a time"

// Providers holds one interface value per provider slot. Nil means the
// provider is not configured. Populated by main.go via the config registry.
type Providers struct {
	STT stt.Provider
	TTS tts.Synthesizer
}

// ActiveAttempt is one live reading attempt tracked by the [Manager].
type ActiveAttempt struct {
	// ID is the attempt identifier, generated at Begin.
	ID string

	// LearnerID and StoryID record who is reading what.
	LearnerID string
	StoryID   string

	// Controller drives the attempt lifecycle.
	Controller *attempt.Controller

	// Notifications carries live alignment deltas, the completion message,
	// and degradation notices for this attempt. Single consumer; closed
	// when the attempt's processing loop exits.
	Notifications *notify.Channel

	cancel context.CancelFunc
	done   chan struct{}
}

// Done is closed when the attempt's processing loop has exited.
func (a *ActiveAttempt) Done() <-chan struct{} { return a.done }

// ManagerConfig holds the dependencies for a [Manager].
type ManagerConfig struct {
	// Store persists attempts, events, scores, and level state. Required.
	Store store.Store

	// Stories resolves story IDs to expected-word sequences. Required.
	Stories story.Provider

	// Providers supplies the optional STT and TTS backends. When STT is
	// nil, tokens must be pushed via [Manager.Token].
	Providers *Providers

	// Config carries the reading, scoring, and progression tunables.
	// Required.
	Config *config.Config

	// Metrics receives attempt gauges and event counters. Defaults to
	// [observe.DefaultMetrics].
	Metrics *observe.Metrics

	// Logger defaults to [slog.Default].
	Logger *slog.Logger
}

func (c ManagerConfig) validate() error {
	var errs []error
	if c.Store == nil {
		errs = append(errs, fmt.Errorf("Store is required"))
	}
	if c.Stories == nil {
		errs = append(errs, fmt.Errorf("Stories is required"))
	}
	if c.Config == nil {
		errs = append(errs, fmt.Errorf("Config is required"))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("app: invalid manager config: %w", errors.Join(errs...))
}

// Manager owns all live reading attempts. Any number of attempts may run
// concurrently, one controller each; the manager serialises only its own
// bookkeeping. All exported methods are safe for concurrent use.
type Manager struct {
	mu       sync.Mutex
	attempts map[string]*ActiveAttempt

	store     store.Store
	stories   story.Provider
	providers *Providers
	cfg       *config.Config
	metrics   *observe.Metrics
	log       *slog.Logger
}

// NewManager creates a Manager with the given dependencies.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Providers == nil {
		cfg.Providers = &Providers{}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Manager{
		attempts:  make(map[string]*ActiveAttempt),
		store:     cfg.Store,
		stories:   cfg.Stories,
		providers: cfg.Providers,
		cfg:       cfg.Config,
		metrics:   cfg.Metrics,
		log:       cfg.Logger,
	}, nil
}

// Begin starts a new reading attempt for the learner on the given story.
// The story is resolved, a controller is built from the configured tunables,
// and — when an STT provider is available — a recognition stream is opened
// and pumped into the controller until it ends.
//
// The attempt runs on a context detached from ctx: an HTTP request that
// started the attempt ending must not kill the reading session.
func (m *Manager) Begin(ctx context.Context, learnerID, storyID string) (*ActiveAttempt, error) {
	st, err := m.stories.Story(ctx, storyID)
	if err != nil {
		return nil, fmt.Errorf("app: begin attempt: %w", err)
	}

	attemptID := uuid.NewString()
	notifications := notify.NewChannel(notifyBuffer)

	m.mu.Lock()
	cfg := m.cfg
	m.mu.Unlock()

	ctrl, err := attempt.NewController(attempt.ControllerConfig{
		AttemptID:      attemptID,
		LearnerID:      learnerID,
		Story:          st,
		Store:          m.store,
		Notifier:       &meteredNotifier{next: notifications, metrics: m.metrics},
		Synthesizer:    m.providers.TTS,
		Logger:         m.log.With("attempt_id", attemptID),
		StallInterval:  cfg.Reading.StallInterval(),
		StallCap:       cfg.Reading.StallCap,
		MaxWPS:         cfg.Reading.MaxWordsPerSecond,
		AlignerOptions: cfg.Reading.AlignerOptions(),
		Scoring:        cfg.Scoring.ScoreConfig(),
		Progression:    cfg.Progression.Config(),
	})
	if err != nil {
		return nil, fmt.Errorf("app: begin attempt: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	active := &ActiveAttempt{
		ID:            attemptID,
		LearnerID:     learnerID,
		StoryID:       storyID,
		Controller:    ctrl,
		Notifications: notifications,
		cancel:        cancel,
		done:          make(chan struct{}),
	}

	var session stt.SessionHandle
	if m.providers.STT != nil {
		session, err = m.providers.STT.StartStream(runCtx, stt.StreamConfig{
			Language: "en-IN",
			Context:  sttContextHint,
		})
		if err != nil {
			cancel()
			return nil, fmt.Errorf("app: begin attempt: start stt stream: %w", err)
		}
	}

	if err := ctrl.Start(runCtx); err != nil {
		if session != nil {
			_ = session.Close()
		}
		cancel()
		return nil, fmt.Errorf("app: begin attempt: %w", err)
	}

	m.mu.Lock()
	m.attempts[attemptID] = active
	m.mu.Unlock()

	m.metrics.ActiveAttempts.Add(runCtx, 1)
	m.log.Info("attempt started",
		"attempt_id", attemptID,
		"learner_id", learnerID,
		"story_id", storyID,
		"words", len(st.Words),
	)

	go m.runAttempt(runCtx, active, session)

	return active, nil
}

// runAttempt drives the attempt to completion and then removes it from the
// live set. Without an STT session the controller idles until tokens arrive
// through [Manager.Token] and the attempt ends by Finish, Abort, or stall
// force-advances reaching the story end.
func (m *Manager) runAttempt(ctx context.Context, active *ActiveAttempt, session stt.SessionHandle) {
	defer close(active.done)
	defer m.remove(ctx, active)
	// The controller's last publish happens before its loop returns, so
	// closing here lets transport consumers drain and terminate cleanly.
	defer active.Notifications.Close()

	if session == nil {
		<-ctx.Done()
		// Manual-token attempt interrupted by shutdown.
		if !active.Controller.State().Terminal() {
			if _, err := active.Controller.Abort(ctx, "shutdown"); err != nil {
				m.log.Warn("abort on shutdown failed", "attempt_id", active.ID, "err", err)
			}
		}
		return
	}

	defer session.Close()
	if err := active.Controller.Run(ctx, session); err != nil {
		m.log.Warn("attempt loop ended with error", "attempt_id", active.ID, "err", err)
	}
}

// meteredNotifier records metrics for every message on its way to the
// wrapped notifier. Counting at publish time keeps the attempt's channel
// single-consumer for the transport layer.
type meteredNotifier struct {
	next    notify.Notifier
	metrics *observe.Metrics
}

var _ notify.Notifier = (*meteredNotifier)(nil)

func (n *meteredNotifier) AlignmentDelta(d notify.AlignmentDelta) {
	ctx := context.Background()
	for _, ev := range d.Events {
		n.metrics.RecordWordEvent(ctx, string(ev.Type))
	}
	n.next.AlignmentDelta(d)
}

func (n *meteredNotifier) Completed(c notify.Completion) {
	n.metrics.AttemptScore.Record(context.Background(), c.Score.Total)
	n.next.Completed(c)
}

func (n *meteredNotifier) Degraded(attemptID, reason string) {
	n.metrics.RecordProviderError(context.Background(), "stt", "stream")
	n.next.Degraded(attemptID, reason)
}

// remove unregisters a finished attempt.
func (m *Manager) remove(ctx context.Context, active *ActiveAttempt) {
	m.mu.Lock()
	_, present := m.attempts[active.ID]
	delete(m.attempts, active.ID)
	m.mu.Unlock()

	if present {
		m.metrics.ActiveAttempts.Add(ctx, -1)
		m.log.Info("attempt removed", "attempt_id", active.ID)
	}
}

// ApplyConfig swaps in new tunables. Live attempts keep the settings they
// started with; attempts begun afterwards pick up the new values.
func (m *Manager) ApplyConfig(cfg *config.Config) {
	m.mu.Lock()
	m.cfg = cfg
	m.mu.Unlock()
	m.log.Info("reading tunables updated")
}

// Get returns the live attempt with the given ID.
func (m *Manager) Get(attemptID string) (*ActiveAttempt, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[attemptID]
	return a, ok
}

// Active returns the IDs of all live attempts.
func (m *Manager) Active() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.attempts))
	for id := range m.attempts {
		ids = append(ids, id)
	}
	return ids
}

// Token injects a recognized token into a live attempt. Used when no STT
// provider is wired and the transcription stream is terminated elsewhere.
func (m *Manager) Token(ctx context.Context, attemptID string, tok types.RecognizedToken) error {
	a, ok := m.Get(attemptID)
	if !ok {
		return fmt.Errorf("app: token: no live attempt %q", attemptID)
	}
	a.Controller.HandleToken(ctx, tok)
	return nil
}

// Pause pauses a live attempt.
func (m *Manager) Pause(attemptID string) error {
	a, ok := m.Get(attemptID)
	if !ok {
		return fmt.Errorf("app: pause: no live attempt %q", attemptID)
	}
	return a.Controller.Pause()
}

// Resume resumes a paused attempt.
func (m *Manager) Resume(attemptID string) error {
	a, ok := m.Get(attemptID)
	if !ok {
		return fmt.Errorf("app: resume: no live attempt %q", attemptID)
	}
	return a.Controller.Resume()
}

// Hint requests a coaching hint for the learner's current word and returns
// the coaching text.
func (m *Manager) Hint(ctx context.Context, attemptID string) (string, error) {
	a, ok := m.Get(attemptID)
	if !ok {
		return "", fmt.Errorf("app: hint: no live attempt %q", attemptID)
	}
	text, err := a.Controller.RequestHint(ctx)
	if err != nil {
		return "", err
	}
	m.metrics.Hints.Add(ctx, 1)
	return text, nil
}

// Finish finalises a live attempt and returns its score.
func (m *Manager) Finish(ctx context.Context, attemptID string) (types.Score, error) {
	a, ok := m.Get(attemptID)
	if !ok {
		return types.Score{}, fmt.Errorf("app: finish: no live attempt %q", attemptID)
	}
	score, err := a.Controller.Finish(ctx)
	if err != nil {
		return types.Score{}, err
	}
	a.cancel()
	return score, nil
}

// Abort terminates a live attempt, keeping its partial results.
func (m *Manager) Abort(ctx context.Context, attemptID, reason string) (types.Score, error) {
	a, ok := m.Get(attemptID)
	if !ok {
		return types.Score{}, fmt.Errorf("app: abort: no live attempt %q", attemptID)
	}
	score, err := a.Controller.Abort(ctx, reason)
	if err != nil {
		return types.Score{}, err
	}
	a.cancel()
	return score, nil
}

// Shutdown aborts every live attempt and waits for their loops to exit, up
// to the context deadline.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	live := make([]*ActiveAttempt, 0, len(m.attempts))
	for _, a := range m.attempts {
		live = append(live, a)
	}
	m.mu.Unlock()

	for _, a := range live {
		if !a.Controller.State().Terminal() {
			if _, err := a.Controller.Abort(ctx, "shutdown"); err != nil {
				m.log.Warn("abort on shutdown failed", "attempt_id", a.ID, "err", err)
			}
		}
		a.cancel()
	}

	for _, a := range live {
		select {
		case <-a.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
