package config

import (
	"testing"
	"time"

	"github.com/lukereed/readalong/internal/progression"
	"github.com/lukereed/readalong/internal/score"
)

func TestReadingStallInterval(t *testing.T) {
	t.Parallel()
	r := ReadingConfig{StallIntervalSeconds: 4.5}
	if got := r.StallInterval(); got != 4500*time.Millisecond {
		t.Errorf("StallInterval() = %v, want 4.5s", got)
	}
}

func TestReadingAlignerOptions(t *testing.T) {
	t.Parallel()
	off := false
	r := ReadingConfig{
		Lookahead:      7,
		RetryThreshold: 2,
		Phonetic:       &off,
		Aliases:        map[string][]string{"cat": {"kat"}},
	}
	opts := r.AlignerOptions()
	if len(opts) == 0 {
		t.Fatal("AlignerOptions returned nothing")
	}
}

func TestScoringConfigMergesOntoDefaults(t *testing.T) {
	t.Parallel()
	s := ScoringConfig{
		FuzzyWeight: 0.5,
		WPMBands:    map[int]WPMBand{1: {Min: 20, Max: 60}},
	}
	cfg := s.ScoreConfig()

	if cfg.FuzzyWeight != 0.5 {
		t.Errorf("FuzzyWeight = %v, want 0.5", cfg.FuzzyWeight)
	}
	// Untouched weights keep their defaults.
	if cfg.AccuracyMax != score.DefaultAccuracyMax {
		t.Errorf("AccuracyMax = %v, want default %v", cfg.AccuracyMax, score.DefaultAccuracyMax)
	}
	if got := cfg.WPMBands[1]; got.Min != 20 || got.Max != 60 {
		t.Errorf("band 1 = %+v, want {20 60}", got)
	}
}

func TestScoringConfigZeroValueIsDefaults(t *testing.T) {
	t.Parallel()
	cfg := ScoringConfig{}.ScoreConfig()
	def := score.DefaultConfig()
	if cfg.FuzzyWeight != def.FuzzyWeight || cfg.StallPenalty != def.StallPenalty {
		t.Errorf("zero ScoringConfig did not yield defaults: %+v", cfg)
	}
}

func TestProgressionConfigMergesOntoDefaults(t *testing.T) {
	t.Parallel()
	p := ProgressionConfig{PromoteThreshold: 80, MinSamples: 5}
	cfg := p.Config()

	if cfg.PromoteThreshold != 80 {
		t.Errorf("PromoteThreshold = %v, want 80", cfg.PromoteThreshold)
	}
	if cfg.MinSamples != 5 {
		t.Errorf("MinSamples = %v, want 5", cfg.MinSamples)
	}
	if cfg.Window != progression.DefaultWindow {
		t.Errorf("Window = %v, want default %v", cfg.Window, progression.DefaultWindow)
	}
	if cfg.MaxLevel != progression.DefaultMaxLevel {
		t.Errorf("MaxLevel = %v, want default %v", cfg.MaxLevel, progression.DefaultMaxLevel)
	}
}
