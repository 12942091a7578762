package config

import "reflect"

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked: alignment,
// scoring, and progression tunables apply to attempts started after the
// reload, and the log level applies immediately. Server address, storage
// backend, and provider selection require a restart and are deliberately not
// diffed.
type ConfigDiff struct {
	LogLevelChanged    bool
	NewLogLevel        LogLevel
	ReadingChanged     bool
	ScoringChanged     bool
	ProgressionChanged bool
}

// Any reports whether the diff contains at least one change.
func (d ConfigDiff) Any() bool {
	return d.LogLevelChanged || d.ReadingChanged || d.ScoringChanged || d.ProgressionChanged
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if !reflect.DeepEqual(old.Reading, new.Reading) {
		d.ReadingChanged = true
	}
	if !reflect.DeepEqual(old.Scoring, new.Scoring) {
		d.ScoringChanged = true
	}
	if old.Progression != new.Progression {
		d.ProgressionChanged = true
	}
	return d
}
