// Package sarvam provides a Sarvam-backed STT provider using the Sarvam
// streaming WebSocket API. It implements the stt.Provider interface.
//
// Sarvam's saarika models are tuned for Indian-accented English and the
// major Indic languages, which makes them a good first choice for young
// readers in that region.
package sarvam

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/lukereed/readalong/pkg/audio"
	"github.com/lukereed/readalong/pkg/provider/stt"
	"github.com/lukereed/readalong/pkg/types"
)

const (
	sarvamEndpoint  = "wss://api.sarvam.ai/speech-to-text/ws"
	defaultModel    = "saarika:v2.5"
	defaultLanguage = "en-IN"
)

// Option is a functional option for configuring the Sarvam Provider.
type Option func(*Provider)

// WithModel sets the Sarvam model to use (e.g., "saarika:v2.5").
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithLanguage sets the BCP-47 language code for recognition (e.g., "en-IN",
// "hi-IN").
func WithLanguage(language string) Option {
	return func(p *Provider) {
		p.language = language
	}
}

// WithEndpoint overrides the WebSocket endpoint. Used by tests.
func WithEndpoint(endpoint string) Option {
	return func(p *Provider) {
		p.endpoint = endpoint
	}
}

// Provider implements stt.Provider backed by the Sarvam streaming API.
type Provider struct {
	apiKey   string
	model    string
	language string
	endpoint string
}

// New creates a new Sarvam Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("sarvam: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:   apiKey,
		model:    defaultModel,
		language: defaultLanguage,
		endpoint: sarvamEndpoint,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// StartStream opens a streaming transcription session with Sarvam. The
// returned handle emits one token per recognized word. Audio is forwarded to
// the service via [Session.SendAudio].
func (p *Provider) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	wsURL, err := p.buildURL(cfg)
	if err != nil {
		return nil, fmt.Errorf("sarvam: build URL: %w", err)
	}

	headers := http.Header{}
	headers.Set("api-subscription-key", p.apiKey)

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: headers,
	})
	if err != nil {
		return nil, fmt.Errorf("sarvam: dial: %w", err)
	}

	sess := &Session{
		conn:    conn,
		tokens:  make(chan types.RecognizedToken, 64),
		audio:   make(chan []byte, 256),
		done:    make(chan struct{}),
		started: time.Now(),
	}

	sess.wg.Add(2)
	go sess.readLoop(ctx)
	go sess.writeLoop(ctx)

	return sess, nil
}

// buildURL constructs the Sarvam streaming endpoint URL for the given config.
func (p *Provider) buildURL(cfg stt.StreamConfig) (string, error) {
	u, err := url.Parse(p.endpoint)
	if err != nil {
		return "", err
	}

	lang := cfg.Language
	if lang == "" {
		lang = p.language
	}

	q := u.Query()
	q.Set("model", p.model)
	q.Set("language-code", lang)
	if cfg.Context != "" {
		q.Set("prompt", cfg.Context)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ---- session ----

// sarvamResponse is the JSON structure Sarvam sends for a transcript event.
type sarvamResponse struct {
	Type string `json:"type"`
	Data struct {
		Transcript string `json:"transcript"`
		Metrics    struct {
			Confidence float64 `json:"confidence"`
		} `json:"metrics"`
	} `json:"data"`
}

// audioMessage is the JSON payload carrying one base64 audio chunk upstream.
type audioMessage struct {
	Audio struct {
		Data       string `json:"data"`
		Encoding   string `json:"encoding"`
		SampleRate int    `json:"sample_rate"`
	} `json:"audio"`
}

// Session is a live Sarvam streaming session. It implements
// stt.SessionHandle; audio is pushed in via [Session.SendAudio].
type Session struct {
	conn    *websocket.Conn
	tokens  chan types.RecognizedToken
	audio   chan []byte
	started time.Time

	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup

	errMu sync.Mutex
	err   error
}

// Compile-time interface check.
var _ stt.SessionHandle = (*Session)(nil)

// SendFrame converts a captured frame to 16 kHz mono WAV and queues it for
// delivery. Torn frames are dropped silently.
func (s *Session) SendFrame(f audio.Frame) error {
	prepared := audio.Prepare(f, audio.STTRate)
	if len(prepared.Data) == 0 {
		return nil
	}
	return s.SendAudio(audio.EncodeWAV(prepared.Data, audio.STTRate))
}

// SendAudio queues a WAV-encoded audio chunk for delivery to Sarvam.
func (s *Session) SendAudio(chunk []byte) error {
	select {
	case <-s.done:
		return errors.New("sarvam: session is closed")
	default:
	}
	select {
	case s.audio <- chunk:
		return nil
	case <-s.done:
		return errors.New("sarvam: session is closed")
	}
}

// Tokens returns the stream of recognized word tokens.
func (s *Session) Tokens() <-chan types.RecognizedToken { return s.tokens }

// Err returns the terminal error of the session, or nil after a clean close.
func (s *Session) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// Close terminates the session cleanly. Safe to call more than once.
func (s *Session) Close() error {
	s.once.Do(func() {
		close(s.done)
		// Ask Sarvam to flush any buffered audio before tearing down.
		_ = s.conn.Write(context.Background(), websocket.MessageText, []byte(`{"event":"end"}`))
		s.wg.Wait()
		s.conn.Close(websocket.StatusNormalClosure, "session closed")
	})
	return nil
}

// writeLoop reads from the audio channel and sends JSON audio messages.
func (s *Session) writeLoop(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case chunk, ok := <-s.audio:
			if !ok {
				return
			}
			if err := s.conn.Write(ctx, websocket.MessageText, encodeAudioMessage(chunk)); err != nil {
				return
			}
		case <-s.done:
			// Drain buffered audio before exiting.
			for {
				select {
				case chunk, ok := <-s.audio:
					if !ok {
						return
					}
					_ = s.conn.Write(ctx, websocket.MessageText, encodeAudioMessage(chunk))
				default:
					return
				}
			}
		}
	}
}

// readLoop receives JSON messages from Sarvam and emits one token per word.
func (s *Session) readLoop(ctx context.Context) {
	defer s.wg.Done()
	defer close(s.tokens)

	for {
		_, msg, err := s.conn.Read(ctx)
		if err != nil {
			select {
			case <-s.done:
				// Close initiated locally; not a stream failure.
			default:
				s.errMu.Lock()
				s.err = fmt.Errorf("sarvam: stream: %w", err)
				s.errMu.Unlock()
			}
			return
		}

		toks, ok := parseResponse(msg, time.Since(s.started))
		if !ok {
			continue
		}
		for _, tok := range toks {
			select {
			case s.tokens <- tok:
			case <-s.done:
				return
			}
		}
	}
}

// encodeAudioMessage wraps a PCM chunk in Sarvam's JSON audio envelope.
func encodeAudioMessage(chunk []byte) []byte {
	var m audioMessage
	m.Audio.Data = base64.StdEncoding.EncodeToString(chunk)
	m.Audio.Encoding = "audio/wav"
	m.Audio.SampleRate = 16000
	b, _ := json.Marshal(m)
	return b
}

// parseResponse parses a raw Sarvam WebSocket message into word tokens.
// Returns (tokens, true) on success, or (nil, false) if the message should be
// ignored. Sarvam delivers incremental transcript fragments; each fragment is
// split on whitespace so the aligner sees individual words.
func parseResponse(data []byte, elapsed time.Duration) ([]types.RecognizedToken, bool) {
	var resp sarvamResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, false
	}
	if resp.Type != "data" {
		return nil, false
	}
	words := strings.Fields(resp.Data.Transcript)
	if len(words) == 0 {
		return nil, false
	}

	toks := make([]types.RecognizedToken, 0, len(words))
	for _, w := range words {
		toks = append(toks, types.RecognizedToken{
			Text:       w,
			Confidence: resp.Data.Metrics.Confidence,
			Timestamp:  elapsed,
		})
	}
	return toks, true
}
