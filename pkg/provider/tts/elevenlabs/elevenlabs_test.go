package elevenlabs

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNew_RequiresAPIKey(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatal("New with empty API key should fail")
	}
}

func TestSynthesize(t *testing.T) {
	var gotPath, gotKey string
	var gotBody ttsRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("xi-api-key")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("mp3-bytes"))
	}))
	defer srv.Close()

	s, err := New("test-key", WithBaseURL(srv.URL), WithVoice("voice-1"), WithModel("eleven_turbo_v2"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	audio, err := s.Synthesize(context.Background(), `The word is "cat".`)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	if gotPath != "/v1/text-to-speech/voice-1" {
		t.Errorf("path = %q, want /v1/text-to-speech/voice-1", gotPath)
	}
	if gotKey != "test-key" {
		t.Errorf("xi-api-key = %q, want test-key", gotKey)
	}
	if gotBody.Text != `The word is "cat".` {
		t.Errorf("request text = %q", gotBody.Text)
	}
	if gotBody.ModelID != "eleven_turbo_v2" {
		t.Errorf("request model = %q, want eleven_turbo_v2", gotBody.ModelID)
	}
	if string(audio.Data) != "mp3-bytes" {
		t.Errorf("audio data = %q, want mp3-bytes", audio.Data)
	}
	if audio.MIMEType != "audio/mpeg" {
		t.Errorf("mime type = %q, want audio/mpeg", audio.MIMEType)
	}
}

func TestSynthesize_EmptyText(t *testing.T) {
	s, err := New("key")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := s.Synthesize(context.Background(), ""); err == nil {
		t.Fatal("Synthesize with empty text should fail")
	}
}

func TestSynthesize_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"detail":"quota exceeded"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	s, err := New("key", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := s.Synthesize(context.Background(), "hello"); err == nil {
		t.Fatal("Synthesize should surface non-200 responses as errors")
	}
}
