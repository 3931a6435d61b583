// Package fishaudio provides a Fish Audio backed TTS provider using the
// Fish Audio HTTP API. It implements the tts.Provider interface.
package fishaudio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hkuriyama/hanako/pkg/audio"
	"github.com/hkuriyama/hanako/pkg/provider/tts"
)

const (
	defaultEndpoint = "https://api.fish.audio/v1"
	defaultFormat   = "mp3"
	defaultRate     = 24000
	defaultTimeout  = 120 * time.Second
)

// Compile-time interface check.
var _ tts.Provider = (*Provider)(nil)

// Option is a functional option for configuring the Provider.
type Option func(*Provider)

// WithEndpoint overrides the default Fish Audio API base URL.
func WithEndpoint(url string) Option {
	return func(p *Provider) {
		if url != "" {
			p.endpoint = url
		}
	}
}

// WithFormat sets the output audio format ("mp3", "wav", "opus").
func WithFormat(format string) Option {
	return func(p *Provider) {
		if format != "" {
			p.format = format
		}
	}
}

// WithSampleRate sets the requested sample rate in Hz.
func WithSampleRate(rate int) Option {
	return func(p *Provider) {
		if rate > 0 {
			p.sampleRate = rate
		}
	}
}

// Provider implements tts.Provider backed by the Fish Audio API.
type Provider struct {
	apiKey     string
	endpoint   string
	voiceID    string
	format     string
	sampleRate int
	sink       *audio.Sink
	httpClient *http.Client
}

// New creates a Fish Audio Provider. apiKey must be non-empty; voiceID is the
// default reference voice used when a request carries no override.
func New(apiKey, voiceID string, sink *audio.Sink, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("fishaudio: apiKey must not be empty")
	}
	if sink == nil {
		return nil, fmt.Errorf("fishaudio: sink must not be nil")
	}
	p := &Provider{
		apiKey:     apiKey,
		endpoint:   defaultEndpoint,
		voiceID:    voiceID,
		format:     defaultFormat,
		sampleRate: defaultRate,
		sink:       sink,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// ttsRequest is the JSON payload for the /tts endpoint.
type ttsRequest struct {
	Text        string `json:"text"`
	ReferenceID string `json:"reference_id,omitempty"`
	Format      string `json:"format"`
	SampleRate  int    `json:"sample_rate,omitempty"`
}

// Speak implements tts.Provider.
func (p *Provider) Speak(ctx context.Context, req tts.SpeakRequest) (tts.Speech, error) {
	voice := req.VoiceID
	if voice == "" {
		voice = p.voiceID
	}

	body, err := json.Marshal(ttsRequest{
		Text:        req.Text,
		ReferenceID: voice,
		Format:      p.format,
		SampleRate:  p.sampleRate,
	})
	if err != nil {
		return tts.Speech{}, fmt.Errorf("fishaudio: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint+"/tts", bytes.NewReader(body))
	if err != nil {
		return tts.Speech{}, fmt.Errorf("fishaudio: build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return tts.Speech{}, fmt.Errorf("fishaudio: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return tts.Speech{}, fmt.Errorf("fishaudio: status %d: %s", resp.StatusCode, msg)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return tts.Speech{}, fmt.Errorf("fishaudio: read audio: %w", err)
	}
	if len(data) == 0 {
		return tts.Speech{}, fmt.Errorf("fishaudio: empty audio response")
	}

	name := p.sink.FileName(p.format, "fish_audio", voice, req.Text)
	if _, err := p.sink.Write(name, data); err != nil {
		return tts.Speech{}, fmt.Errorf("fishaudio: store audio: %w", err)
	}
	return tts.Speech{
		Filename:   name,
		Provider:   "fish_audio",
		VoiceID:    voice,
		Format:     p.format,
		SampleRate: p.sampleRate,
	}, nil
}

// ValidateConfig implements tts.Provider.
func (p *Provider) ValidateConfig() error {
	if p.apiKey == "" {
		return fmt.Errorf("fishaudio: apiKey must not be empty")
	}
	if p.endpoint == "" {
		return fmt.Errorf("fishaudio: endpoint must not be empty")
	}
	return nil
}
