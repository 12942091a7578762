package audio

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// pcm16 packs int16 samples as little-endian bytes.
func pcm16(samples ...int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

func TestStereoToMono(t *testing.T) {
	t.Parallel()

	// L/R pairs: (100, 200) and (-100, -300).
	got := StereoToMono(pcm16(100, 200, -100, -300))
	want := pcm16(150, -200)
	if !bytes.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestStereoToMono_ClampsOverflow(t *testing.T) {
	t.Parallel()

	got := StereoToMono(pcm16(-32768, -32768))
	if want := pcm16(-32768); !bytes.Equal(got, want) {
		t.Errorf("got %v, want clamped %v", got, want)
	}
}

func TestResample16(t *testing.T) {
	t.Parallel()

	t.Run("downsample halves the sample count", func(t *testing.T) {
		t.Parallel()

		in := pcm16(0, 100, 200, 300, 400, 500, 600, 700)
		out := Resample16(in, 32000, 16000)
		if len(out) != len(in)/2 {
			t.Fatalf("got %d bytes, want %d", len(out), len(in)/2)
		}
		// Every second source sample survives exactly.
		if got := int16(binary.LittleEndian.Uint16(out[2:])); got != 200 {
			t.Errorf("sample 1 = %d, want 200", got)
		}
	})

	t.Run("equal rates pass through", func(t *testing.T) {
		t.Parallel()

		in := pcm16(1, 2, 3)
		if out := Resample16(in, 16000, 16000); !bytes.Equal(out, in) {
			t.Errorf("got %v, want input unchanged", out)
		}
	})

	t.Run("upsample interpolates", func(t *testing.T) {
		t.Parallel()

		out := Resample16(pcm16(0, 1000), 8000, 16000)
		if len(out) != 8 {
			t.Fatalf("got %d bytes, want 8", len(out))
		}
		if got := int16(binary.LittleEndian.Uint16(out[2:])); got != 500 {
			t.Errorf("interpolated sample = %d, want 500", got)
		}
	})
}

func TestPrepare(t *testing.T) {
	t.Parallel()

	t.Run("stereo 48k to mono 16k", func(t *testing.T) {
		t.Parallel()

		// 6 stereo frames at 48 kHz become 2 mono samples at 16 kHz.
		in := Frame{
			Data:       pcm16(10, 10, 20, 20, 30, 30, 40, 40, 50, 50, 60, 60),
			SampleRate: 48000,
			Channels:   2,
		}
		out := Prepare(in, STTRate)
		if out.SampleRate != STTRate || out.Channels != 1 {
			t.Fatalf("format = %dHz %dch, want 16000Hz mono", out.SampleRate, out.Channels)
		}
		if len(out.Data) != 4 {
			t.Errorf("got %d bytes, want 4", len(out.Data))
		}
	})

	t.Run("matching format passes through", func(t *testing.T) {
		t.Parallel()

		in := Frame{Data: pcm16(1, 2), SampleRate: STTRate, Channels: 1}
		if out := Prepare(in, STTRate); !bytes.Equal(out.Data, in.Data) {
			t.Error("matching frame was not passed through")
		}
	})

	t.Run("torn sample drops the frame", func(t *testing.T) {
		t.Parallel()

		in := Frame{Data: []byte{0x01}, SampleRate: STTRate, Channels: 1}
		if out := Prepare(in, STTRate); len(out.Data) != 0 {
			t.Errorf("got %d bytes, want dropped frame", len(out.Data))
		}
	})
}

func TestEncodeWAV(t *testing.T) {
	t.Parallel()

	pcm := pcm16(1, 2, 3)
	wav := EncodeWAV(pcm, STTRate)

	if len(wav) != 44+len(pcm) {
		t.Fatalf("got %d bytes, want %d", len(wav), 44+len(pcm))
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		t.Error("missing RIFF/WAVE magic")
	}
	if rate := binary.LittleEndian.Uint32(wav[24:28]); rate != STTRate {
		t.Errorf("sample rate = %d, want %d", rate, STTRate)
	}
	if size := binary.LittleEndian.Uint32(wav[40:44]); int(size) != len(pcm) {
		t.Errorf("data size = %d, want %d", size, len(pcm))
	}
	if !bytes.Equal(wav[44:], pcm) {
		t.Error("payload mismatch")
	}
}
