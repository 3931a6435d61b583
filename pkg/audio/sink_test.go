package audio

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestSink(t *testing.T) *Sink {
	t.Helper()
	s, err := NewSink(t.TempDir())
	if err != nil {
		t.Fatalf("NewSink: %v", err)
	}
	return s
}

func TestFileName_DeterministicWithinSameSecond(t *testing.T) {
	s := newTestSink(t)
	fixed := time.Unix(1700000000, 0)
	s.now = func() time.Time { return fixed }

	a := s.FileName("mp3", "fish_audio", "voice-1", "hello")
	b := s.FileName("mp3", "fish_audio", "voice-1", "hello")
	if a != b {
		t.Fatalf("same key in same second: %q != %q", a, b)
	}
	if !strings.HasPrefix(a, "1700000000_") || !strings.HasSuffix(a, ".mp3") {
		t.Fatalf("unexpected name shape: %q", a)
	}
}

func TestFileName_DiffersAcrossTimeAndKey(t *testing.T) {
	s := newTestSink(t)
	s.now = func() time.Time { return time.Unix(1700000000, 0) }
	a := s.FileName("wav", "piper", "model.onnx", "hello")

	s.now = func() time.Time { return time.Unix(1700000001, 0) }
	b := s.FileName("wav", "piper", "model.onnx", "hello")
	if a == b {
		t.Fatal("names should differ across seconds")
	}

	c := s.FileName("wav", "piper", "model.onnx", "goodbye")
	if b == c {
		t.Fatal("names should differ for different text")
	}
}

func TestWrite_RejectsPathComponents(t *testing.T) {
	s := newTestSink(t)
	if _, err := s.Write("../escape.mp3", []byte("x")); err == nil {
		t.Fatal("expected error for name with path component")
	}
}

func TestWrite_RoundTrip(t *testing.T) {
	s := newTestSink(t)
	name, err := s.Write("a.mp3", []byte("audio-bytes"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(s.Dir(), name))
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "audio-bytes" {
		t.Fatalf("content = %q, want audio-bytes", data)
	}
}
