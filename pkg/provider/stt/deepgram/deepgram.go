// Package deepgram provides a Deepgram-backed STT provider using the Deepgram
// streaming WebSocket API. It implements the stt.Provider interface.
package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/lukereed/readalong/pkg/audio"
	"github.com/lukereed/readalong/pkg/provider/stt"
	"github.com/lukereed/readalong/pkg/types"
)

const (
	deepgramEndpoint  = "wss://api.deepgram.com/v1/listen"
	defaultModel      = "nova-3"
	defaultLanguage   = "en"
	defaultSampleRate = 16000
)

// Option is a functional option for configuring the Deepgram Provider.
type Option func(*Provider)

// WithModel sets the Deepgram model to use (e.g., "nova-3", "base").
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithLanguage sets the BCP-47 language code for recognition (e.g., "en", "en-IN").
func WithLanguage(language string) Option {
	return func(p *Provider) {
		p.language = language
	}
}

// WithSampleRate sets the audio sample rate in Hz.
func WithSampleRate(rate int) Option {
	return func(p *Provider) {
		p.sampleRate = rate
	}
}

// Provider implements stt.Provider backed by the Deepgram streaming API.
type Provider struct {
	apiKey     string
	model      string
	language   string
	sampleRate int
}

// New creates a new Deepgram Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("deepgram: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:     apiKey,
		model:      defaultModel,
		language:   defaultLanguage,
		sampleRate: defaultSampleRate,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// StartStream opens a streaming transcription session with Deepgram. Each
// word of a final result is emitted as one token, carrying the word-level
// confidence and start offset Deepgram reports.
func (p *Provider) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	wsURL, err := p.buildURL(cfg)
	if err != nil {
		return nil, fmt.Errorf("deepgram: build URL: %w", err)
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+p.apiKey)

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: headers,
	})
	if err != nil {
		return nil, fmt.Errorf("deepgram: dial: %w", err)
	}

	sess := &Session{
		conn:   conn,
		tokens: make(chan types.RecognizedToken, 64),
		audio:  make(chan []byte, 256),
		done:   make(chan struct{}),
	}

	sess.wg.Add(2)
	go sess.readLoop(ctx)
	go sess.writeLoop(ctx)

	return sess, nil
}

// buildURL constructs the Deepgram streaming endpoint URL for the given config.
func (p *Provider) buildURL(cfg stt.StreamConfig) (string, error) {
	u, err := url.Parse(deepgramEndpoint)
	if err != nil {
		return "", err
	}

	lang := cfg.Language
	if lang == "" {
		lang = p.language
	}

	q := u.Query()
	q.Set("model", p.model)
	q.Set("language", lang)
	q.Set("interim_results", "true")
	q.Set("sample_rate", strconv.Itoa(p.sampleRate))
	q.Set("encoding", "linear16")
	q.Set("channels", "1")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ---- session ----

// deepgramResponse is the JSON structure returned by Deepgram for a Results event.
type deepgramResponse struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
			Words      []struct {
				Word       string  `json:"word"`
				Start      float64 `json:"start"`
				End        float64 `json:"end"`
				Confidence float64 `json:"confidence"`
			} `json:"words"`
		} `json:"alternatives"`
	} `json:"channel"`
}

// Session is a live Deepgram streaming session. It implements
// stt.SessionHandle; audio is pushed in via [Session.SendAudio].
type Session struct {
	conn   *websocket.Conn
	tokens chan types.RecognizedToken
	audio  chan []byte

	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup

	errMu sync.Mutex
	err   error
}

// Compile-time interface check.
var _ stt.SessionHandle = (*Session)(nil)

// SendFrame converts a captured frame to 16 kHz mono PCM and queues it for
// delivery. Torn frames are dropped silently.
func (s *Session) SendFrame(f audio.Frame) error {
	prepared := audio.Prepare(f, audio.STTRate)
	if len(prepared.Data) == 0 {
		return nil
	}
	return s.SendAudio(prepared.Data)
}

// SendAudio queues a raw linear16 PCM chunk for delivery to Deepgram.
func (s *Session) SendAudio(chunk []byte) error {
	select {
	case <-s.done:
		return errors.New("deepgram: session is closed")
	default:
	}
	select {
	case s.audio <- chunk:
		return nil
	case <-s.done:
		return errors.New("deepgram: session is closed")
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
		// Send a close message to Deepgram to flush pending audio.
		_ = s.conn.Write(context.Background(), websocket.MessageText, []byte(`{"type":"CloseStream"}`))
		s.wg.Wait()
		s.conn.Close(websocket.StatusNormalClosure, "session closed")
	})
	return nil
}

// writeLoop reads from the audio channel and sends binary messages to Deepgram.
func (s *Session) writeLoop(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case chunk, ok := <-s.audio:
			if !ok {
				return
			}
			if err := s.conn.Write(ctx, websocket.MessageBinary, chunk); err != nil {
				return
			}
		case <-s.done:
			// Drain the audio channel before exiting.
			for {
				select {
				case chunk, ok := <-s.audio:
					if !ok {
						return
					}
					_ = s.conn.Write(ctx, websocket.MessageBinary, chunk)
				default:
					return
				}
			}
		}
	}
}

// readLoop receives JSON messages from Deepgram and emits word tokens for
// each final result.
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
				s.err = fmt.Errorf("deepgram: stream: %w", err)
				s.errMu.Unlock()
			}
			return
		}

		toks, ok := parseResponse(msg)
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

// parseResponse parses a raw Deepgram WebSocket message into word tokens.
// Interim results are skipped: a young reader's words arrive slowly enough
// that finals keep up, and finals carry stable word boundaries.
func parseResponse(data []byte) ([]types.RecognizedToken, bool) {
	var resp deepgramResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, false
	}
	if resp.Type != "Results" || !resp.IsFinal {
		return nil, false
	}
	if len(resp.Channel.Alternatives) == 0 {
		return nil, false
	}

	alt := resp.Channel.Alternatives[0]
	if len(alt.Words) == 0 {
		return nil, false
	}

	toks := make([]types.RecognizedToken, 0, len(alt.Words))
	for _, w := range alt.Words {
		toks = append(toks, types.RecognizedToken{
			Text:       w.Word,
			Confidence: w.Confidence,
			Timestamp:  time.Duration(w.Start * float64(time.Second)),
		})
	}
	return toks, true
}
