// Package piper provides a fully local TTS provider that shells out to the
// piper executable. It implements the tts.Provider interface.
//
// Piper needs no network and no API key, which makes it the natural last
// resort in a fallback chain: it works on an airgapped machine as long as
// the binary and a voice model are installed.
package piper

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/hkuriyama/hanako/pkg/audio"
	"github.com/hkuriyama/hanako/pkg/provider/tts"
)

const defaultTimeout = 180 * time.Second

// Compile-time interface check.
var _ tts.Provider = (*Provider)(nil)

// Provider implements tts.Provider by invoking the piper binary per request.
type Provider struct {
	execPath  string
	voicePath string
	sink      *audio.Sink
	timeout   time.Duration
}

// New creates a piper Provider. execPath may be empty to look piper up on
// PATH; voicePath must point at a .onnx voice model.
func New(execPath, voicePath string, sink *audio.Sink) (*Provider, error) {
	if voicePath == "" {
		return nil, fmt.Errorf("piper: voice model path must not be empty")
	}
	if sink == nil {
		return nil, fmt.Errorf("piper: sink must not be nil")
	}
	if execPath == "" {
		execPath = "piper"
	}
	return &Provider{
		execPath:  execPath,
		voicePath: voicePath,
		sink:      sink,
		timeout:   defaultTimeout,
	}, nil
}

// Speak implements tts.Provider. The VoiceID override, when set, is treated
// as an alternative .onnx model path.
func (p *Provider) Speak(ctx context.Context, req tts.SpeakRequest) (tts.Speech, error) {
	voice := req.VoiceID
	if voice == "" {
		voice = p.voicePath
	}

	name := p.sink.FileName("wav", "piper_local", voice, req.Text)
	out := p.sink.Path(name)

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.execPath, "--model", voice, "--output_file", out)
	cmd.Stdin = strings.NewReader(req.Text)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		_ = os.Remove(out)
		return tts.Speech{}, fmt.Errorf("piper: run: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	info, err := os.Stat(out)
	if err != nil || info.Size() == 0 {
		_ = os.Remove(out)
		return tts.Speech{}, fmt.Errorf("piper: produced no audio")
	}

	return tts.Speech{
		Filename: name,
		Provider: "piper_local",
		VoiceID:  voice,
		Format:   "wav",
	}, nil
}

// ValidateConfig implements tts.Provider. It verifies the executable can be
// resolved and the voice model exists.
func (p *Provider) ValidateConfig() error {
	if _, err := exec.LookPath(p.execPath); err != nil {
		return fmt.Errorf("piper: executable %q not found: %w", p.execPath, err)
	}
	if _, err := os.Stat(p.voicePath); err != nil {
		return fmt.Errorf("piper: voice model %q: %w", p.voicePath, err)
	}
	return nil
}
