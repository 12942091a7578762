// Package mock provides an in-memory stt.Provider for tests: a scripted
// token source with controllable failure.
package mock

import (
	"context"
	"sync"

	"github.com/lukereed/readalong/pkg/provider/stt"
	"github.com/lukereed/readalong/pkg/types"
)

// Provider is a scriptable [stt.Provider]. Each StartStream call returns a
// fresh [Session] that the test drives directly.
type Provider struct {
	mu       sync.Mutex
	sessions []*Session

	// StartErr, when non-nil, is returned by StartStream.
	StartErr error
}

var _ stt.Provider = (*Provider)(nil)

// StartStream implements [stt.Provider].
func (p *Provider) StartStream(_ context.Context, _ stt.StreamConfig) (stt.SessionHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.StartErr != nil {
		return nil, p.StartErr
	}
	s := NewSession()
	p.sessions = append(p.sessions, s)
	return s, nil
}

// Sessions returns every session opened so far.
func (p *Provider) Sessions() []*Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Session, len(p.sessions))
	copy(out, p.sessions)
	return out
}

// Session is a hand-driven [stt.SessionHandle].
type Session struct {
	tokens chan types.RecognizedToken

	mu     sync.Mutex
	err    error
	closed bool
}

var _ stt.SessionHandle = (*Session)(nil)

// NewSession creates an open mock session.
func NewSession() *Session {
	return &Session{tokens: make(chan types.RecognizedToken, 64)}
}

// Emit delivers one token to the consumer. Panics if the session was closed —
// a test bug, not a runtime condition.
func (s *Session) Emit(tok types.RecognizedToken) {
	s.tokens <- tok
}

// Fail terminates the stream with err, simulating an upstream provider
// outage.
func (s *Session) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.err = err
	s.closed = true
	close(s.tokens)
}

// Tokens implements [stt.SessionHandle].
func (s *Session) Tokens() <-chan types.RecognizedToken { return s.tokens }

// Err implements [stt.SessionHandle].
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close implements [stt.SessionHandle].
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.tokens)
	}
	return nil
}
