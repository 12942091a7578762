// Package score computes the 0–100 score of a finished reading attempt.
//
// Compute is a pure function over the frozen event log and the attempt's
// timing summary: given the same inputs it returns a bit-for-bit identical
// score — no clock reads, no randomness, no external calls. Corrections are
// recomputations, never hand edits.
package score

import (
	"fmt"
	"math"
	"time"

	"github.com/lukereed/readalong/pkg/types"
)

// Default scoring weights. Every product parameter is a named constant so
// a threshold change never means hunting magic numbers.
const (
	DefaultAccuracyMax     = 60.0
	DefaultFluencyMax      = 25.0
	DefaultIndependenceMax = 15.0

	// DefaultFuzzyWeight is the fractional credit a fuzzy match earns
	// relative to an exact one.
	DefaultFuzzyWeight = 0.7

	// DefaultMismatchPenalty and DefaultSkipPenalty reduce the accuracy
	// numerator, in expected-word units.
	DefaultMismatchPenalty = 0.5
	DefaultSkipPenalty     = 0.5

	// DefaultStallPenalty is deducted from fluency per stall event.
	DefaultStallPenalty = 2.0

	// Independence deductions per assist.
	DefaultHintPenalty         = 2.0
	DefaultSkipIndepPenalty    = 1.0
	DefaultInterventionPenalty = 1.0
)

// WPMBand is the expected words-per-minute range for a difficulty level.
// Reading inside the band earns full fluency pace credit.
type WPMBand struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// DefaultWPMBands maps difficulty levels to expected pace bands for early
// readers (slower floors at the first levels, widening as texts grow).
var DefaultWPMBands = map[int]WPMBand{
	1: {Min: 30, Max: 80},
	2: {Min: 40, Max: 90},
	3: {Min: 50, Max: 100},
	4: {Min: 60, Max: 110},
	5: {Min: 70, Max: 120},
	6: {Min: 80, Max: 140},
}

// Config carries the scoring weights. Obtain a baseline via [DefaultConfig]
// and override individual fields from configuration.
type Config struct {
	AccuracyMax     float64
	FluencyMax      float64
	IndependenceMax float64

	FuzzyWeight     float64
	MismatchPenalty float64
	SkipPenalty     float64

	StallPenalty        float64
	HintPenalty         float64
	SkipIndepPenalty    float64
	InterventionPenalty float64

	// WPMBands maps story level to the expected pace band. Levels without an
	// entry fall back to the nearest configured level.
	WPMBands map[int]WPMBand
}

// DefaultConfig returns the default scoring configuration.
func DefaultConfig() Config {
	return Config{
		AccuracyMax:         DefaultAccuracyMax,
		FluencyMax:          DefaultFluencyMax,
		IndependenceMax:     DefaultIndependenceMax,
		FuzzyWeight:         DefaultFuzzyWeight,
		MismatchPenalty:     DefaultMismatchPenalty,
		SkipPenalty:         DefaultSkipPenalty,
		StallPenalty:        DefaultStallPenalty,
		HintPenalty:         DefaultHintPenalty,
		SkipIndepPenalty:    DefaultSkipIndepPenalty,
		InterventionPenalty: DefaultInterventionPenalty,
		WPMBands:            DefaultWPMBands,
	}
}

// Compute derives the score for a finished attempt from its frozen event log
// and timing summary. level selects the expected pace band.
//
// Sub-scores:
//
//   - Accuracy (0–AccuracyMax): proportional to exact plus fuzzy-weighted
//     matches over total expected words; mismatches and skips reduce the
//     numerator.
//   - Fluency (0–FluencyMax): full pace credit inside the level's WPM band,
//     scaled down outside it, minus a per-stall penalty.
//   - Independence (0–IndependenceMax): starts at maximum and deducts per
//     hint, per skip, and per automatic coaching intervention; floored at 0.
//
// Total is the clamped sum. The whole computation is deterministic.
func Compute(events []types.WordEvent, timing types.Timing, level int, cfg Config) types.Score {
	if timing.TotalWords == 0 {
		return emptyScore()
	}

	var exact, fuzzy, mismatch, skip, stall, hint int
	for _, ev := range events {
		switch ev.Type {
		case types.EventCorrect:
			exact++
		case types.EventFuzzy:
			fuzzy++
		case types.EventMismatch:
			mismatch++
		case types.EventSkip:
			skip++
		case types.EventStall:
			stall++
		case types.EventHint:
			hint++
		}
	}

	total := float64(timing.TotalWords)

	// --- Accuracy ---
	numerator := float64(exact) + cfg.FuzzyWeight*float64(fuzzy) -
		cfg.MismatchPenalty*float64(mismatch) - cfg.SkipPenalty*float64(skip)
	numerator = math.Max(numerator, 0)
	accuracy := round1(cfg.AccuracyMax * math.Min(numerator/total, 1))

	// --- Fluency ---
	wpm := wordsPerMinute(timing)
	band := bandForLevel(cfg.WPMBands, level)
	fluency := cfg.FluencyMax * paceCredit(wpm, band)
	fluency -= cfg.StallPenalty * float64(stall)
	fluency = round1(math.Max(fluency, 0))

	// --- Independence ---
	independence := cfg.IndependenceMax -
		cfg.HintPenalty*float64(hint) -
		cfg.SkipIndepPenalty*float64(skip) -
		cfg.InterventionPenalty*float64(stall)
	independence = round1(math.Max(independence, 0))

	totalScore := round1(math.Min(accuracy+fluency+independence, 100))

	completion := float64(timing.WordsReached) / total

	return types.Score{
		Accuracy:     accuracy,
		Fluency:      fluency,
		Independence: independence,
		Total:        totalScore,
		WPM:          round1(wpm),
		WordsReached: timing.WordsReached,
		Summary:      encouragement(completion),
	}
}

// wordsPerMinute computes observed pace over active (unpaused) time.
func wordsPerMinute(t types.Timing) float64 {
	active := t.Active()
	if active <= 0 {
		return 0
	}
	return float64(t.WordsReached) / active.Minutes()
}

// paceCredit returns the fraction of full fluency pace credit in [0, 1]:
// 1 inside the band, scaled linearly below the floor, and scaled down
// gently above the ceiling (racing through the text is not fluent reading).
func paceCredit(wpm float64, band WPMBand) float64 {
	switch {
	case wpm <= 0:
		return 0
	case wpm < band.Min:
		return wpm / band.Min
	case wpm > band.Max:
		return band.Max / wpm
	default:
		return 1
	}
}

// bandForLevel resolves the pace band for a level, falling back to the
// nearest configured level when the exact one is missing.
func bandForLevel(bands map[int]WPMBand, level int) WPMBand {
	if band, ok := bands[level]; ok {
		return band
	}
	best, bestDist := WPMBand{Min: 1, Max: math.MaxFloat64}, math.MaxInt
	for l, band := range bands {
		dist := l - level
		if dist < 0 {
			dist = -dist
		}
		// Prefer the lower level on equal distance for determinism.
		if dist < bestDist || (dist == bestDist && l < level) {
			best, bestDist = band, dist
		}
	}
	return best
}

// encouragement picks the learner-facing summary line by completion ratio.
func encouragement(completion float64) string {
	switch {
	case completion >= 0.95:
		return "You finished the whole story! You're a reading superstar!"
	case completion >= 0.75:
		return "Wow, you read so much! Almost finished!"
	case completion >= 0.50:
		return "Great effort! You're more than halfway through!"
	case completion >= 0.25:
		return "Good start! Try reading a little more next time!"
	default:
		return "Nice try! Every page you read helps you grow! Keep going!"
	}
}

func emptyScore() types.Score {
	return types.Score{Summary: "Let's try reading together!"}
}

// round1 rounds to one decimal place so replays are bit-for-bit stable
// across platforms.
func round1(f float64) float64 {
	return math.Round(f*10) / 10
}

// FormatBreakdown renders a compact human-readable breakdown, used in logs
// and parent-facing summaries.
func FormatBreakdown(s types.Score) string {
	return fmt.Sprintf("total=%.1f (accuracy=%.1f fluency=%.1f independence=%.1f) wpm=%.1f words=%d",
		s.Total, s.Accuracy, s.Fluency, s.Independence, s.WPM, s.WordsReached)
}

// Elapsed is a convenience for building a [types.Timing] from wall-clock
// bounds and pause time.
func Elapsed(start, end time.Time, paused time.Duration, wordsReached, totalWords int) types.Timing {
	return types.Timing{
		Duration:     end.Sub(start),
		Paused:       paused,
		WordsReached: wordsReached,
		TotalWords:   totalWords,
	}
}
