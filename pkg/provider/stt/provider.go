// Package stt defines the Provider interface for streaming speech
// recognition backends.
//
// A provider wraps a real-time transcription service and exposes a uniform
// token-stream interface. The central abstraction is [SessionHandle]: once
// opened, a session emits best-effort [types.RecognizedToken] values until it
// is closed or the upstream fails. Tokens are word hypotheses, not
// word-for-word aligned text — downstream alignment absorbs lag and
// mis-segmentation.
//
// The session engine never touches raw audio samples; capture, encoding, and
// the provider wire protocol all live behind this interface.
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"

	"github.com/lukereed/readalong/pkg/types"
)

// StreamConfig describes the recognition hints for a new session.
type StreamConfig struct {
	// Language is the BCP-47 language tag for recognition (e.g., "en-IN").
	// Empty lets the provider auto-detect, if supported.
	Language string

	// Context is a free-text hint describing the speaker and setting (e.g.,
	// "a child reading a simple story aloud, slowly, one word at a time").
	// Passed to providers that accept prompt conditioning. Expected story
	// words must NOT be included here — it makes recognizers hallucinate
	// the text they were primed with.
	Context string
}

// SessionHandle is an open recognition session. Callers must Close the handle
// when the attempt ends; failing to do so may leak goroutines and network
// connections inside the provider. All methods are safe for concurrent use.
type SessionHandle interface {
	// Tokens returns the stream of recognized tokens. The channel is closed
	// when the session ends — by Close, by the stream finishing, or by an
	// upstream failure. After the channel closes, Err reports why.
	Tokens() <-chan types.RecognizedToken

	// Err returns the terminal error of the session, or nil after a clean
	// close. A non-nil result is the provider-unavailable signal: the
	// session controller switches to degraded read-without-scoring mode
	// rather than aborting the attempt.
	Err() error

	// Close terminates the session and releases its resources. Calling
	// Close more than once is safe and returns nil.
	Close() error
}

// Provider is the abstraction over any streaming recognition backend.
// Multiple sessions may be open simultaneously, one per active attempt.
type Provider interface {
	// StartStream opens a new recognition session. The returned handle
	// emits tokens immediately. Returns an error when the session cannot
	// be established (authentication failure, ctx already cancelled).
	StartStream(ctx context.Context, cfg StreamConfig) (SessionHandle, error)
}
