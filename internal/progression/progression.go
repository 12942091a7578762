// Package progression implements the adaptive leveling engine.
//
// Evaluate is a pure function over a learner's ordered attempt history and
// current level state: it holds no state of its own, reads no clock, and
// makes no external calls, so a decision can always be re-derived from its
// recorded inputs. The rationale string cites the concrete figures used so
// every decision is auditable.
package progression

import (
	"fmt"

	"github.com/lukereed/readalong/internal/score"
	"github.com/lukereed/readalong/pkg/types"
)

// Default progression parameters. These are product tuning knobs, not
// structural requirements; override them via [Config].
const (
	// DefaultWindow is how many recent attempts feed a decision.
	DefaultWindow = 10

	// DefaultMinSamples is the minimum number of scored attempts required
	// before anything other than hold is possible.
	DefaultMinSamples = 3

	// DefaultPromoteThreshold is the recency-weighted average total score at
	// or above which promotion is considered.
	DefaultPromoteThreshold = 85.0

	// DefaultStabilityThreshold is the recency-weighted accuracy percentage
	// additionally required for promotion.
	DefaultStabilityThreshold = 90.0

	// DefaultDemoteThreshold is the weighted average total below which the
	// learner steps down a level.
	DefaultDemoteThreshold = 50.0

	// DefaultMinLevel and DefaultMaxLevel bound the difficulty tiers.
	DefaultMinLevel = 1
	DefaultMaxLevel = 6
)

// Action is the decision variant of a progression evaluation.
type Action string

const (
	ActionPromote Action = "promote"
	ActionHold    Action = "hold"
	ActionDemote  Action = "demote"
)

// Config carries the progression thresholds.
type Config struct {
	Window             int
	MinSamples         int
	PromoteThreshold   float64
	StabilityThreshold float64
	DemoteThreshold    float64
	MinLevel           int
	MaxLevel           int

	// AccuracyMax is the ceiling of the accuracy sub-score carried by
	// attempt summaries. Evaluate divides by it to express accuracy as a
	// percentage, so it must match the scoring configuration that produced
	// the history.
	AccuracyMax float64
}

// DefaultConfig returns the default progression configuration.
func DefaultConfig() Config {
	return Config{
		Window:             DefaultWindow,
		MinSamples:         DefaultMinSamples,
		PromoteThreshold:   DefaultPromoteThreshold,
		StabilityThreshold: DefaultStabilityThreshold,
		DemoteThreshold:    DefaultDemoteThreshold,
		MinLevel:           DefaultMinLevel,
		MaxLevel:           DefaultMaxLevel,
		AccuracyMax:        score.DefaultAccuracyMax,
	}
}

// Decision is the outcome of one evaluation.
type Decision struct {
	// Action is promote, hold, or demote.
	Action Action

	// NextLevel is the level the learner should read at next.
	NextLevel int

	// Confidence is the engine's confidence in the placement (0.0–1.0),
	// derived from the weighted average score.
	Confidence float64

	// Rationale cites the weighted average total, the weighted accuracy
	// percentage, and the sample size that produced the decision.
	Rationale string
}

// Evaluate decides the learner's next level from their attempt history.
//
// history is ordered oldest first. Only the most recent Window attempts are
// considered, and attempts finished before state.OverriddenAt are excluded
// entirely — a manual override resets the engine's effective history so it
// never fights the override on its next run.
//
// The recency weighting is linear: within the window the i-th attempt
// (oldest first, 1-based) carries weight i, so the newest attempt counts
// Window times as much as the oldest. The scheme is fixed and documented
// here so recorded rationales stay interpretable.
func Evaluate(history []types.AttemptSummary, state types.LevelState, cfg Config) Decision {
	current := state.CurrentLevel
	if current < cfg.MinLevel {
		current = cfg.MinLevel
	}

	// Honour the override boundary before windowing.
	if !state.OverriddenAt.IsZero() {
		cut := 0
		for cut < len(history) && !history[cut].FinishedAt.After(state.OverriddenAt) {
			cut++
		}
		history = history[cut:]
	}
	if len(history) > cfg.Window {
		history = history[len(history)-cfg.Window:]
	}

	n := len(history)
	if n < cfg.MinSamples {
		return Decision{
			Action:    ActionHold,
			NextLevel: current,
			Rationale: fmt.Sprintf("insufficient history: %d scored attempts, need at least %d", n, cfg.MinSamples),
		}
	}

	accMax := cfg.AccuracyMax
	if accMax <= 0 {
		accMax = score.DefaultAccuracyMax
	}

	var weightSum, totalSum, accuracySum float64
	for i, a := range history {
		w := float64(i + 1) // newest attempt carries the highest weight
		weightSum += w
		totalSum += w * a.Total
		// Accuracy arrives as a sub-score capped at AccuracyMax; express it
		// as a percentage of that cap for threshold comparison.
		accuracySum += w * (a.Accuracy / accMax * 100.0)
	}
	avgTotal := totalSum / weightSum
	avgAccuracy := accuracySum / weightSum

	confidence := avgTotal / 100
	if confidence > 1 {
		confidence = 1
	}

	switch {
	case avgTotal >= cfg.PromoteThreshold && avgAccuracy >= cfg.StabilityThreshold && current < cfg.MaxLevel:
		return Decision{
			Action:     ActionPromote,
			NextLevel:  current + 1,
			Confidence: confidence,
			Rationale: fmt.Sprintf(
				"weighted avg total %.1f >= %.1f and weighted accuracy %.1f%% >= %.1f%% over last %d attempts",
				avgTotal, cfg.PromoteThreshold, avgAccuracy, cfg.StabilityThreshold, n),
		}
	case avgTotal < cfg.DemoteThreshold && current > cfg.MinLevel:
		return Decision{
			Action:     ActionDemote,
			NextLevel:  current - 1,
			Confidence: confidence,
			Rationale: fmt.Sprintf(
				"weighted avg total %.1f < %.1f over last %d attempts",
				avgTotal, cfg.DemoteThreshold, n),
		}
	default:
		return Decision{
			Action:     ActionHold,
			NextLevel:  current,
			Confidence: confidence,
			Rationale: fmt.Sprintf(
				"weighted avg total %.1f (accuracy %.1f%%) over last %d attempts — holding at level %d",
				avgTotal, avgAccuracy, n, current),
		}
	}
}

// Apply folds a decision into a new level state for persistence. The
// override timestamp is preserved so later evaluations keep honouring it.
func Apply(state types.LevelState, d Decision) types.LevelState {
	state.CurrentLevel = d.NextLevel
	state.Confidence = d.Confidence
	state.LastDecisionReason = d.Rationale
	return state
}
