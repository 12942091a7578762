package resilience

import (
	"context"

	"github.com/lukereed/readalong/pkg/provider/stt"
	"github.com/lukereed/readalong/pkg/provider/tts"
)

// STT is an [stt.Provider] that fails over across multiple transcription
// backends. Only opening the stream is covered: once a session is handed
// out, a mid-stream drop is the controller's degraded-mode territory, not a
// reason to silently switch recognizers under a running attempt.
type STT struct {
	chain *Chain[stt.Provider]
}

var _ stt.Provider = (*STT)(nil)

// NewSTT creates a failover provider with primary as the preferred backend.
func NewSTT(primaryName string, primary stt.Provider, cfg Config) *STT {
	s := &STT{chain: NewChain[stt.Provider](cfg)}
	s.chain.Add(primaryName, primary)
	return s
}

// Add registers a lower-priority fallback backend.
func (s *STT) Add(name string, p stt.Provider) {
	s.chain.Add(name, p)
}

// StartStream implements [stt.Provider] against the first healthy backend.
func (s *STT) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	return Try(s.chain, func(p stt.Provider) (stt.SessionHandle, error) {
		return p.StartStream(ctx, cfg)
	})
}

// TTS is a [tts.Synthesizer] that fails over across multiple coaching-audio
// backends. Coaching lines are short one-shot requests, so every call may
// land on a different backend without the learner noticing more than a
// change of voice.
type TTS struct {
	chain *Chain[tts.Synthesizer]
}

var _ tts.Synthesizer = (*TTS)(nil)

// NewTTS creates a failover synthesizer with primary as the preferred
// backend.
func NewTTS(primaryName string, primary tts.Synthesizer, cfg Config) *TTS {
	t := &TTS{chain: NewChain[tts.Synthesizer](cfg)}
	t.chain.Add(primaryName, primary)
	return t
}

// Add registers a lower-priority fallback backend.
func (t *TTS) Add(name string, s tts.Synthesizer) {
	t.chain.Add(name, s)
}

// Synthesize implements [tts.Synthesizer] against the first healthy backend.
func (t *TTS) Synthesize(ctx context.Context, text string) (tts.Audio, error) {
	return Try(t.chain, func(s tts.Synthesizer) (tts.Audio, error) {
		return s.Synthesize(ctx, text)
	})
}
