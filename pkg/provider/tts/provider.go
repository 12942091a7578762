// Package tts defines the Synthesizer interface for speech synthesis
// backends used to voice coaching prompts and on-demand pronunciations.
//
// The session engine only decides WHEN to request coaching audio — on
// mismatch, stall, or hint — never how it is synthesized. Synthesis failures
// are non-fatal by contract: the triggering word event is still recorded and
// coaching is simply skipped.
//
// Implementations must be safe for concurrent use.
package tts

import "context"

// Audio is a synthesized utterance ready for playback.
type Audio struct {
	// Data is the encoded audio payload.
	Data []byte

	// MIMEType describes the encoding (e.g., "audio/mpeg").
	MIMEType string
}

// Synthesizer is the abstraction over any speech synthesis backend.
type Synthesizer interface {
	// Synthesize renders text as playable audio. Implementations are
	// encouraged to cache by text so repeated coaching of the same word is
	// cheap.
	Synthesize(ctx context.Context, text string) (Audio, error)
}
