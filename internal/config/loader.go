package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"stt": {"sarvam", "whisper", "deepgram", "mock"},
	"tts": {"elevenlabs", "openai", "mock"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. `${VAR}` references in the file are expanded from the
// environment before parsing, so API keys can live in the environment (or a
// .env file) instead of the config.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}

	cfg, err := LoadFromReader(strings.NewReader(os.ExpandEnv(string(raw))))
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" || cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
		}
	}

	// Storage
	if cfg.Storage.Backend != "" && !cfg.Storage.Backend.IsValid() {
		errs = append(errs, fmt.Errorf("storage.backend %q is invalid; valid values: postgres, memory", cfg.Storage.Backend))
	}
	if cfg.Storage.Backend == StoragePostgres && cfg.Storage.PostgresDSN == "" {
		errs = append(errs, errors.New("storage.postgres_dsn is required when storage.backend is postgres"))
	}
	if cfg.Storage.Backend == StorageMemory {
		slog.Warn("storage.backend is memory; attempts and scores will not survive a restart")
	}

	// Provider name validation — warn for unknown provider names.
	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("tts", cfg.Providers.TTS.Name)
	if cfg.Providers.STT.Name == "" {
		slog.Warn("no STT provider configured; attempts will run in read-without-scoring mode")
	}
	if cfg.Providers.TTS.Name == "" {
		slog.Warn("no TTS provider configured; coaching will be text-only")
	}

	// Reading tunables
	if cfg.Reading.Lookahead < 0 {
		errs = append(errs, fmt.Errorf("reading.lookahead %d must not be negative", cfg.Reading.Lookahead))
	}
	if cfg.Reading.RetryThreshold < 0 {
		errs = append(errs, fmt.Errorf("reading.retry_threshold %d must not be negative", cfg.Reading.RetryThreshold))
	}
	if cfg.Reading.StallIntervalSeconds < 0 {
		errs = append(errs, fmt.Errorf("reading.stall_interval_seconds %.1f must not be negative", cfg.Reading.StallIntervalSeconds))
	}
	if cfg.Reading.MaxWordsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("reading.max_words_per_second %.1f must not be negative", cfg.Reading.MaxWordsPerSecond))
	}

	// Scoring
	for level, band := range cfg.Scoring.WPMBands {
		if band.Min >= band.Max {
			errs = append(errs, fmt.Errorf("scoring.wpm_bands[%d]: min %.0f must be below max %.0f", level, band.Min, band.Max))
		}
	}

	// Progression threshold ordering
	p := cfg.Progression.Config()
	if p.DemoteThreshold >= p.PromoteThreshold {
		errs = append(errs, fmt.Errorf("progression: demote_threshold %.0f must be below promote_threshold %.0f", p.DemoteThreshold, p.PromoteThreshold))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
