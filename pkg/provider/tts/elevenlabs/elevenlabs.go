// Package elevenlabs provides an ElevenLabs-backed TTS provider using the
// ElevenLabs HTTP synthesis API. It implements the tts.Provider interface.
package elevenlabs

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
	defaultEndpoint  = "https://api.elevenlabs.io/v1"
	defaultModel     = "eleven_multilingual_v2"
	defaultOutputFmt = "mp3_44100_128"
	defaultTimeout   = 120 * time.Second
)

// Compile-time interface check.
var _ tts.Provider = (*Provider)(nil)

// Option is a functional option for configuring the ElevenLabs Provider.
type Option func(*Provider)

// WithEndpoint overrides the default ElevenLabs API base URL.
func WithEndpoint(url string) Option {
	return func(p *Provider) {
		if url != "" {
			p.endpoint = url
		}
	}
}

// WithModel sets the ElevenLabs model ID (e.g., "eleven_flash_v2_5").
func WithModel(model string) Option {
	return func(p *Provider) {
		if model != "" {
			p.model = model
		}
	}
}

// WithOutputFormat sets the output format query parameter
// (e.g., "mp3_44100_128", "pcm_24000").
func WithOutputFormat(format string) Option {
	return func(p *Provider) {
		if format != "" {
			p.outputFormat = format
		}
	}
}

// Provider implements tts.Provider backed by the ElevenLabs API.
type Provider struct {
	apiKey       string
	endpoint     string
	voiceID      string
	model        string
	outputFormat string
	sink         *audio.Sink
	httpClient   *http.Client
}

// voiceSettings mirrors the ElevenLabs voice_settings object.
type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// synthesisRequest is the JSON payload for the text-to-speech endpoint.
type synthesisRequest struct {
	Text          string         `json:"text"`
	ModelID       string         `json:"model_id"`
	VoiceSettings *voiceSettings `json:"voice_settings,omitempty"`
}

// New creates an ElevenLabs Provider. apiKey must be non-empty; voiceID is
// the default voice used when a request carries no override.
func New(apiKey, voiceID string, sink *audio.Sink, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("elevenlabs: apiKey must not be empty")
	}
	if sink == nil {
		return nil, fmt.Errorf("elevenlabs: sink must not be nil")
	}
	p := &Provider{
		apiKey:       apiKey,
		endpoint:     defaultEndpoint,
		voiceID:      voiceID,
		model:        defaultModel,
		outputFormat: defaultOutputFmt,
		sink:         sink,
		httpClient:   &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Speak implements tts.Provider.
func (p *Provider) Speak(ctx context.Context, req tts.SpeakRequest) (tts.Speech, error) {
	voice := req.VoiceID
	if voice == "" {
		voice = p.voiceID
	}
	if voice == "" {
		return tts.Speech{}, fmt.Errorf("elevenlabs: no voice id configured")
	}

	body, err := json.Marshal(synthesisRequest{
		Text:    req.Text,
		ModelID: p.model,
		VoiceSettings: &voiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.75,
		},
	})
	if err != nil {
		return tts.Speech{}, fmt.Errorf("elevenlabs: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/text-to-speech/%s?output_format=%s", p.endpoint, voice, p.outputFormat)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return tts.Speech{}, fmt.Errorf("elevenlabs: build request: %w", err)
	}
	httpReq.Header.Set("xi-api-key", p.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return tts.Speech{}, fmt.Errorf("elevenlabs: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return tts.Speech{}, fmt.Errorf("elevenlabs: status %d: %s", resp.StatusCode, msg)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return tts.Speech{}, fmt.Errorf("elevenlabs: read audio: %w", err)
	}
	if len(data) == 0 {
		return tts.Speech{}, fmt.Errorf("elevenlabs: empty audio response")
	}

	name := p.sink.FileName("mp3", "elevenlabs", voice, req.Text)
	if _, err := p.sink.Write(name, data); err != nil {
		return tts.Speech{}, fmt.Errorf("elevenlabs: store audio: %w", err)
	}
	return tts.Speech{
		Filename: name,
		Provider: "elevenlabs",
		VoiceID:  voice,
		Format:   "mp3",
	}, nil
}

// ValidateConfig implements tts.Provider.
func (p *Provider) ValidateConfig() error {
	if p.apiKey == "" {
		return fmt.Errorf("elevenlabs: apiKey must not be empty")
	}
	return nil
}
