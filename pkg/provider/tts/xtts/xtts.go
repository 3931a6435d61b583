// Package xtts provides a TTS provider for a self-hosted XTTS server
// (coqui-ai xtts-api-server). It implements the tts.Provider interface.
//
// XTTS servers answer /tts_to_audio/ either with raw WAV bytes or with a
// JSON envelope carrying base64 audio, depending on build; Speak handles
// both shapes.
package xtts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hkuriyama/hanako/pkg/audio"
	"github.com/hkuriyama/hanako/pkg/provider/tts"
)

// Local model inference is slow on CPU hosts.
const defaultTimeout = 180 * time.Second

// Compile-time interface check.
var _ tts.Provider = (*Provider)(nil)

// Option is a functional option for configuring the Provider.
type Option func(*Provider)

// WithLanguage sets the synthesis language code (default "en").
func WithLanguage(lang string) Option {
	return func(p *Provider) {
		if lang != "" {
			p.language = lang
		}
	}
}

// Provider implements tts.Provider against a local XTTS HTTP server.
type Provider struct {
	endpoint   string
	speakerWav string
	language   string
	sink       *audio.Sink
	httpClient *http.Client
}

// New creates an XTTS Provider for the server at endpoint. speakerWav is the
// default speaker reference used when a request carries no voice override.
func New(endpoint, speakerWav string, sink *audio.Sink, opts ...Option) (*Provider, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("xtts: endpoint must not be empty")
	}
	if sink == nil {
		return nil, fmt.Errorf("xtts: sink must not be nil")
	}
	p := &Provider{
		endpoint:   strings.TrimRight(endpoint, "/"),
		speakerWav: speakerWav,
		language:   "en",
		sink:       sink,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// synthesisRequest is the JSON payload for /tts_to_audio/.
type synthesisRequest struct {
	Text       string `json:"text"`
	SpeakerWav string `json:"speaker_wav,omitempty"`
	Language   string `json:"language"`
}

// jsonAudio is the JSON envelope some XTTS builds answer with.
type jsonAudio struct {
	Audio string `json:"audio"`
}

// Speak implements tts.Provider.
func (p *Provider) Speak(ctx context.Context, req tts.SpeakRequest) (tts.Speech, error) {
	speaker := req.VoiceID
	if speaker == "" {
		speaker = p.speakerWav
	}

	body, err := json.Marshal(synthesisRequest{
		Text:       req.Text,
		SpeakerWav: speaker,
		Language:   p.language,
	})
	if err != nil {
		return tts.Speech{}, fmt.Errorf("xtts: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint+"/tts_to_audio/", bytes.NewReader(body))
	if err != nil {
		return tts.Speech{}, fmt.Errorf("xtts: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return tts.Speech{}, fmt.Errorf("xtts: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return tts.Speech{}, fmt.Errorf("xtts: status %d: %s", resp.StatusCode, msg)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return tts.Speech{}, fmt.Errorf("xtts: read audio: %w", err)
	}

	data := raw
	if strings.Contains(resp.Header.Get("Content-Type"), "application/json") {
		var envelope jsonAudio
		if err := json.Unmarshal(raw, &envelope); err != nil {
			return tts.Speech{}, fmt.Errorf("xtts: decode envelope: %w", err)
		}
		data, err = base64.StdEncoding.DecodeString(envelope.Audio)
		if err != nil {
			return tts.Speech{}, fmt.Errorf("xtts: decode base64 audio: %w", err)
		}
	}
	if len(data) == 0 {
		return tts.Speech{}, fmt.Errorf("xtts: empty audio response")
	}

	name := p.sink.FileName("wav", "xtts_server", speaker, req.Text)
	if _, err := p.sink.Write(name, data); err != nil {
		return tts.Speech{}, fmt.Errorf("xtts: store audio: %w", err)
	}
	return tts.Speech{
		Filename: name,
		Provider: "xtts_server",
		VoiceID:  speaker,
		Format:   "wav",
	}, nil
}

// ValidateConfig implements tts.Provider.
func (p *Provider) ValidateConfig() error {
	if p.endpoint == "" {
		return fmt.Errorf("xtts: endpoint must not be empty")
	}
	return nil
}
