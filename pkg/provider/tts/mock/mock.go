// Package mock provides a scriptable [tts.Synthesizer] for tests.
package mock

import (
	"context"
	"sync"

	"github.com/lukereed/readalong/pkg/provider/tts"
)

// Synthesizer records every text passed to Synthesize and answers with a
// canned payload. The zero value is ready for use.
type Synthesizer struct {
	// Err, when set, is returned by every Synthesize call.
	Err error

	mu    sync.Mutex
	calls []string
}

var _ tts.Synthesizer = (*Synthesizer)(nil)

// Synthesize implements [tts.Synthesizer].
func (s *Synthesizer) Synthesize(_ context.Context, text string) (tts.Audio, error) {
	s.mu.Lock()
	s.calls = append(s.calls, text)
	s.mu.Unlock()
	if s.Err != nil {
		return tts.Audio{}, s.Err
	}
	return tts.Audio{Data: []byte(text), MIMEType: "audio/mpeg"}, nil
}

// Calls returns a copy of every text synthesized so far.
func (s *Synthesizer) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.calls))
	copy(out, s.calls)
	return out
}
