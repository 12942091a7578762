package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const validYAML = `
server:
  listen_addr: ":8080"
  log_level: info
storage:
  backend: postgres
  postgres_dsn: "postgres://localhost:5432/readalong?sslmode=disable"
providers:
  stt:
    name: sarvam
    api_key: test-key
    model: saarika:v2.5
  tts:
    name: elevenlabs
    api_key: test-key
reading:
  lookahead: 5
  retry_threshold: 3
  stall_interval_seconds: 5
  stall_cap: 2
  max_words_per_second: 3.5
  aliases:
    tree: [three]
scoring:
  fuzzy_weight: 0.7
  wpm_bands:
    1: {min: 30, max: 80}
    2: {min: 40, max: 100}
progression:
  window: 10
  min_samples: 3
  promote_threshold: 85
  stability_threshold: 90
  demote_threshold: 50
`

func TestLoadFromReaderValid(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("ListenAddr = %q, want \":8080\"", cfg.Server.ListenAddr)
	}
	if cfg.Storage.Backend != StoragePostgres {
		t.Errorf("Backend = %q, want postgres", cfg.Storage.Backend)
	}
	if cfg.Providers.STT.Name != "sarvam" || cfg.Providers.STT.Model != "saarika:v2.5" {
		t.Errorf("STT entry = %+v", cfg.Providers.STT)
	}
	if cfg.Reading.Lookahead != 5 || cfg.Reading.StallCap != 2 {
		t.Errorf("Reading = %+v", cfg.Reading)
	}
	if got := cfg.Scoring.WPMBands[2]; got.Min != 40 || got.Max != 100 {
		t.Errorf("wpm band 2 = %+v, want {40 100}", got)
	}
}

func TestLoadFromReaderRejectsUnknownFields(t *testing.T) {
	_, err := LoadFromReader(strings.NewReader("server:\n  listen_adr: \":8080\"\n"))
	if err == nil {
		t.Error("unknown field accepted")
	}
}

func TestValidateFailures(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "bad log level",
			yaml: "server:\n  log_level: loud\n",
			want: "log_level",
		},
		{
			name: "bad storage backend",
			yaml: "storage:\n  backend: sqlite\n",
			want: "storage.backend",
		},
		{
			name: "postgres without dsn",
			yaml: "storage:\n  backend: postgres\n",
			want: "postgres_dsn",
		},
		{
			name: "tls missing key",
			yaml: "server:\n  tls:\n    cert_file: cert.pem\n",
			want: "tls",
		},
		{
			name: "negative lookahead",
			yaml: "reading:\n  lookahead: -1\n",
			want: "lookahead",
		},
		{
			name: "inverted wpm band",
			yaml: "scoring:\n  wpm_bands:\n    1: {min: 90, max: 40}\n",
			want: "wpm_bands",
		},
		{
			name: "demote above promote",
			yaml: "progression:\n  promote_threshold: 50\n  demote_threshold: 60\n",
			want: "demote_threshold",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromReader(strings.NewReader(tt.yaml))
			if err == nil {
				t.Fatal("invalid config accepted")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	yaml := "server:\n  log_level: loud\nstorage:\n  backend: sqlite\nreading:\n  lookahead: -1\n"
	_, err := LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("invalid config accepted")
	}
	for _, want := range []string{"log_level", "storage.backend", "lookahead"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("joined error %q is missing %q", err, want)
		}
	}
}

func TestLoad_ExpandsEnvironmentVariables(t *testing.T) {
	t.Setenv("TEST_READALONG_KEY", "sk-from-env")

	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := "providers:\n  stt:\n    name: sarvam\n    api_key: ${TEST_READALONG_KEY}\n"
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cfg.Providers.STT.APIKey; got != "sk-from-env" {
		t.Errorf("api_key = %q, want value expanded from environment", got)
	}
}

func TestLoadFromReaderStoriesAndFallback(t *testing.T) {
	yaml := `
stories:
  dir: ./stories
providers:
  stt:
    name: sarvam
    api_key: primary-key
    fallback:
      name: deepgram
      api_key: fallback-key
`
	cfg, err := LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Stories.Dir != "./stories" {
		t.Errorf("stories dir = %q, want ./stories", cfg.Stories.Dir)
	}
	fb := cfg.Providers.STT.Fallback
	if fb == nil {
		t.Fatal("stt fallback not parsed")
	}
	if fb.Name != "deepgram" || fb.APIKey != "fallback-key" {
		t.Errorf("fallback = %+v, want deepgram with its own key", fb)
	}
	if cfg.Providers.TTS.Fallback != nil {
		t.Error("tts fallback should be nil when absent")
	}
}
