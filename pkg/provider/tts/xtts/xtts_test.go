package xtts

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/hkuriyama/hanako/pkg/audio"
	"github.com/hkuriyama/hanako/pkg/provider/tts"
)

func newSink(t *testing.T) *audio.Sink {
	t.Helper()
	sink, err := audio.NewSink(t.TempDir())
	if err != nil {
		t.Fatalf("NewSink: %v", err)
	}
	return sink
}

func TestSpeak_RawWAVResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tts_to_audio/" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var req synthesisRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.Text != "konnichiwa" || req.Language != "ja" {
			t.Errorf("request = %+v", req)
		}
		w.Header().Set("Content-Type", "audio/wav")
		w.Write([]byte("RIFF-wav-bytes"))
	}))
	defer srv.Close()

	sink := newSink(t)
	p, err := New(srv.URL, "speaker.wav", sink, WithLanguage("ja"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	speech, err := p.Speak(t.Context(), tts.SpeakRequest{Text: "konnichiwa"})
	if err != nil {
		t.Fatalf("Speak: %v", err)
	}
	data, err := os.ReadFile(sink.Path(speech.Filename))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "RIFF-wav-bytes" {
		t.Errorf("artifact = %q", data)
	}
	if speech.Provider != "xtts_server" || speech.Format != "wav" {
		t.Errorf("speech = %+v", speech)
	}
}

func TestSpeak_Base64JSONResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(jsonAudio{
			Audio: base64.StdEncoding.EncodeToString([]byte("decoded-wav")),
		})
	}))
	defer srv.Close()

	sink := newSink(t)
	p, err := New(srv.URL, "speaker.wav", sink)
	if err != nil {
		t.Fatal(err)
	}
	speech, err := p.Speak(t.Context(), tts.SpeakRequest{Text: "hi"})
	if err != nil {
		t.Fatalf("Speak: %v", err)
	}
	data, err := os.ReadFile(sink.Path(speech.Filename))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "decoded-wav" {
		t.Errorf("artifact = %q, want decoded base64 payload", data)
	}
}

func TestSpeak_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	p, err := New(srv.URL, "speaker.wav", newSink(t))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Speak(t.Context(), tts.SpeakRequest{Text: "hi"}); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}
