// Package audio prepares captured microphone audio for the transcription
// providers. Recognizers want 16 kHz mono little-endian int16 PCM; browsers
// and capture devices rarely oblige, so the package downmixes, resamples,
// and (for providers that want a container) wraps PCM in a WAV header.
package audio

import "time"

// STTRate is the sample rate the transcription providers expect.
const STTRate = 16000

// Frame is one chunk of little-endian int16 PCM with its source format.
type Frame struct {
	// Data is the raw PCM bytes, 2 bytes per sample per channel.
	Data []byte

	// SampleRate in Hz.
	SampleRate int

	// Channels: 1 for mono, 2 for interleaved stereo.
	Channels int

	// Timestamp marks when the frame was captured, relative to stream start.
	Timestamp time.Duration
}

// Prepare converts a frame to rate-Hz mono PCM. Frames already in the target
// format pass through untouched. Frames with an odd byte count (torn int16
// samples) come back empty; callers drop them.
func Prepare(f Frame, rate int) Frame {
	if len(f.Data)%2 != 0 {
		return Frame{SampleRate: rate, Channels: 1, Timestamp: f.Timestamp}
	}
	if f.SampleRate == rate && f.Channels == 1 {
		return f
	}

	pcm := f.Data
	if f.Channels == 2 {
		pcm = StereoToMono(pcm)
	}
	if f.SampleRate != rate {
		pcm = Resample16(pcm, f.SampleRate, rate)
	}
	return Frame{Data: pcm, SampleRate: rate, Channels: 1, Timestamp: f.Timestamp}
}

// StereoToMono averages each interleaved L+R pair into one mono sample.
// Uses int32 arithmetic to avoid overflow and clamps to the int16 range.
func StereoToMono(pcm []byte) []byte {
	frames := len(pcm) / 4
	out := make([]byte, frames*2)
	for i := 0; i < frames; i++ {
		l := int32(int16(pcm[i*4]) | int16(pcm[i*4+1])<<8)
		r := int32(int16(pcm[i*4+2]) | int16(pcm[i*4+3])<<8)
		avg := (l + r) / 2
		if avg > 32767 {
			avg = 32767
		} else if avg < -32768 {
			avg = -32768
		}
		out[i*2] = byte(avg)
		out[i*2+1] = byte(avg >> 8)
	}
	return out
}

// Resample16 resamples mono int16 PCM from srcRate to dstRate by linear
// interpolation. Equal rates (or degenerate input) return the input
// unchanged.
func Resample16(pcm []byte, srcRate, dstRate int) []byte {
	if srcRate <= 0 || dstRate <= 0 || srcRate == dstRate || len(pcm) < 2 {
		return pcm
	}
	srcSamples := len(pcm) / 2
	dstSamples := int(int64(srcSamples) * int64(dstRate) / int64(srcRate))
	if dstSamples == 0 {
		return nil
	}

	out := make([]byte, dstSamples*2)
	ratio := float64(srcRate) / float64(dstRate)
	for i := 0; i < dstSamples; i++ {
		pos := float64(i) * ratio
		idx := int(pos)
		frac := pos - float64(idx)

		s0 := int16(pcm[idx*2]) | int16(pcm[idx*2+1])<<8
		s1 := s0
		if idx+1 < srcSamples {
			s1 = int16(pcm[(idx+1)*2]) | int16(pcm[(idx+1)*2+1])<<8
		}

		v := int16(float64(s0)*(1-frac) + float64(s1)*frac)
		out[i*2] = byte(v)
		out[i*2+1] = byte(v >> 8)
	}
	return out
}
