// Package whisperapi provides an ASR provider backed by the OpenAI audio
// transcription API (or any compatible endpoint). It implements the
// asr.Provider interface.
package whisperapi

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/hkuriyama/hanako/pkg/provider/asr"
)

const (
	defaultModel   = "whisper-1"
	defaultTimeout = 30 * time.Second
)

// Compile-time interface check.
var _ asr.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*settings)

type settings struct {
	endpoint string
	timeout  time.Duration
}

// WithEndpoint overrides the API base URL for OpenAI-compatible servers.
func WithEndpoint(url string) Option {
	return func(s *settings) {
		s.endpoint = url
	}
}

// WithTimeout overrides the per-request HTTP timeout (default 30s).
func WithTimeout(d time.Duration) Option {
	return func(s *settings) {
		s.timeout = d
	}
}

// Provider implements asr.Provider using the OpenAI transcription API.
type Provider struct {
	client   oai.Client
	model    string
	language string
}

// New constructs a Provider. apiKey must be non-empty; model defaults to
// "whisper-1"; language is the default hint applied when a call carries no
// override.
func New(apiKey, model, language string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("whisperapi: apiKey must not be empty")
	}
	s := &settings{timeout: defaultTimeout}
	for _, o := range opts {
		o(s)
	}
	if model == "" {
		model = defaultModel
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(&http.Client{Timeout: s.timeout}),
	}
	if s.endpoint != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(s.endpoint))
	}

	return &Provider{
		client:   oai.NewClient(reqOpts...),
		model:    model,
		language: language,
	}, nil
}

// Transcribe implements asr.Provider.
func (p *Provider) Transcribe(ctx context.Context, audioData []byte, langOverride string) (asr.Transcription, error) {
	if len(audioData) == 0 {
		return asr.Transcription{}, fmt.Errorf("whisperapi: empty audio")
	}
	lang := langOverride
	if lang == "" {
		lang = p.language
	}

	params := oai.AudioTranscriptionNewParams{
		File:  oai.File(bytes.NewReader(audioData), "audio.wav", "audio/wav"),
		Model: p.model,
	}
	if lang != "" {
		params.Language = oai.String(lang)
	}

	resp, err := p.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return asr.Transcription{}, fmt.Errorf("whisperapi: transcription: %w", err)
	}

	return asr.Transcription{
		Text:       resp.Text,
		Language:   lang,
		Confidence: 1.0,
	}, nil
}

// ValidateConfig implements asr.Provider.
func (p *Provider) ValidateConfig() error {
	if p.model == "" {
		return fmt.Errorf("whisperapi: model must not be empty")
	}
	return nil
}
