// Package openai provides an OpenAI-backed coaching voice using the
// /v1/audio/speech endpoint. It implements the tts.Synthesizer interface.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/lukereed/readalong/pkg/provider/tts"
)

const (
	defaultBaseURL = "https://api.openai.com"
	defaultModel   = "gpt-4o-mini-tts"
	defaultVoice   = "nova"
)

// Option is a functional option for configuring the OpenAI Synthesizer.
type Option func(*Synthesizer)

// WithModel sets the speech model (e.g., "gpt-4o-mini-tts", "tts-1").
func WithModel(model string) Option {
	return func(s *Synthesizer) {
		s.model = model
	}
}

// WithVoice sets the voice name (e.g., "nova", "alloy").
func WithVoice(voice string) Option {
	return func(s *Synthesizer) {
		s.voice = voice
	}
}

// WithBaseURL overrides the API base URL. Used by tests and proxies.
func WithBaseURL(baseURL string) Option {
	return func(s *Synthesizer) {
		s.baseURL = baseURL
	}
}

// Synthesizer implements tts.Synthesizer backed by the OpenAI speech API.
type Synthesizer struct {
	apiKey     string
	model      string
	voice      string
	baseURL    string
	httpClient *http.Client
}

// Compile-time interface check.
var _ tts.Synthesizer = (*Synthesizer)(nil)

// New creates a new OpenAI Synthesizer. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Synthesizer, error) {
	if apiKey == "" {
		return nil, errors.New("openai: apiKey must not be empty")
	}
	s := &Synthesizer{
		apiKey:     apiKey,
		model:      defaultModel,
		voice:      defaultVoice,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{},
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// speechRequest is the JSON body for POST /v1/audio/speech.
type speechRequest struct {
	Model          string `json:"model"`
	Input          string `json:"input"`
	Voice          string `json:"voice"`
	ResponseFormat string `json:"response_format"`
}

// Synthesize renders text as speech and returns the encoded audio.
func (s *Synthesizer) Synthesize(ctx context.Context, text string) (tts.Audio, error) {
	if text == "" {
		return tts.Audio{}, errors.New("openai: text must not be empty")
	}

	body, err := json.Marshal(speechRequest{
		Model:          s.model,
		Input:          text,
		Voice:          s.voice,
		ResponseFormat: "mp3",
	})
	if err != nil {
		return tts.Audio{}, fmt.Errorf("openai: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/audio/speech", bytes.NewReader(body))
	if err != nil {
		return tts.Audio{}, fmt.Errorf("openai: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return tts.Audio{}, fmt.Errorf("openai: synthesize: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return tts.Audio{}, fmt.Errorf("openai: synthesize: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return tts.Audio{}, fmt.Errorf("openai: read audio: %w", err)
	}

	return tts.Audio{Data: data, MIMEType: "audio/mpeg"}, nil
}
