package piper

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
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

// fakePiper writes a shell script that mimics the piper CLI: it records its
// arguments to argsFile and copies stdin into the --output_file path.
func fakePiper(t *testing.T, argsFile string) string {
	t.Helper()
	script := fmt.Sprintf(`#!/bin/sh
printf '%%s\n' "$@" > %q
while [ "$1" != "--output_file" ] && [ $# -gt 0 ]; do shift; done
cat > "$2"
`, argsFile)
	path := filepath.Join(t.TempDir(), "piper")
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write fake piper: %v", err)
	}
	return path
}

func TestSpeak_RunsExecutable(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "args")
	sink := newSink(t)
	p, err := New(fakePiper(t, argsFile), "/models/en.onnx", sink)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	speech, err := p.Speak(t.Context(), tts.SpeakRequest{Text: "hello there"})
	if err != nil {
		t.Fatalf("Speak: %v", err)
	}
	if speech.Provider != "piper_local" || speech.Format != "wav" {
		t.Errorf("speech = %+v", speech)
	}

	data, err := os.ReadFile(sink.Path(speech.Filename))
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	if string(data) != "hello there" {
		t.Errorf("artifact = %q, want stdin text", data)
	}

	args, err := os.ReadFile(argsFile)
	if err != nil {
		t.Fatalf("read recorded args: %v", err)
	}
	if !strings.Contains(string(args), "--model\n/models/en.onnx") {
		t.Errorf("args = %q, want --model /models/en.onnx", args)
	}
}

func TestSpeak_VoiceOverrideSelectsModel(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "args")
	p, err := New(fakePiper(t, argsFile), "/models/en.onnx", newSink(t))
	if err != nil {
		t.Fatal(err)
	}
	speech, err := p.Speak(t.Context(), tts.SpeakRequest{Text: "hi", VoiceID: "/models/de.onnx"})
	if err != nil {
		t.Fatalf("Speak: %v", err)
	}
	if speech.VoiceID != "/models/de.onnx" {
		t.Errorf("speech.VoiceID = %q", speech.VoiceID)
	}
	args, _ := os.ReadFile(argsFile)
	if !strings.Contains(string(args), "/models/de.onnx") {
		t.Errorf("args = %q, want override model path", args)
	}
}

func TestSpeak_ExecutableFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "piper")
	script := "#!/bin/sh\necho 'no such model' >&2\nexit 1\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}

	sink := newSink(t)
	p, err := New(path, "/models/en.onnx", sink)
	if err != nil {
		t.Fatal(err)
	}
	_, err = p.Speak(t.Context(), tts.SpeakRequest{Text: "hi"})
	if err == nil {
		t.Fatal("expected error when piper exits non-zero")
	}
	if !strings.Contains(err.Error(), "no such model") {
		t.Errorf("err = %v, want stderr included", err)
	}
	assertSinkEmpty(t, sink)
}

func TestSpeak_EmptyOutputIsFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "piper")
	script := "#!/bin/sh\nwhile [ \"$1\" != \"--output_file\" ]; do shift; done\n: > \"$2\"\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}

	sink := newSink(t)
	p, err := New(path, "/models/en.onnx", sink)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Speak(t.Context(), tts.SpeakRequest{Text: "hi"}); err == nil {
		t.Fatal("expected error for empty output file")
	}
	assertSinkEmpty(t, sink)
}

// assertSinkEmpty checks the failed run left no artifact behind.
func assertSinkEmpty(t *testing.T, sink *audio.Sink) {
	t.Helper()
	entries, err := os.ReadDir(sink.Dir())
	if err != nil {
		t.Fatalf("read sink dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("sink contains %d leftover files, want 0", len(entries))
	}
}

func TestValidateConfig(t *testing.T) {
	voice := filepath.Join(t.TempDir(), "en.onnx")
	if err := os.WriteFile(voice, []byte("model"), 0o644); err != nil {
		t.Fatal(err)
	}
	exe := fakePiper(t, filepath.Join(t.TempDir(), "args"))

	p, err := New(exe, voice, newSink(t))
	if err != nil {
		t.Fatal(err)
	}
	if err := p.ValidateConfig(); err != nil {
		t.Errorf("ValidateConfig: %v", err)
	}

	p, err = New("/nonexistent/piper", voice, newSink(t))
	if err != nil {
		t.Fatal(err)
	}
	if err := p.ValidateConfig(); err == nil {
		t.Error("expected error for missing executable")
	}

	p, err = New(exe, filepath.Join(t.TempDir(), "missing.onnx"), newSink(t))
	if err != nil {
		t.Fatal(err)
	}
	if err := p.ValidateConfig(); err == nil {
		t.Error("expected error for missing voice model")
	}
}

func TestNew_RequiresVoicePath(t *testing.T) {
	if _, err := New("piper", "", newSink(t)); err == nil {
		t.Fatal("expected error for empty voice path")
	}
}
