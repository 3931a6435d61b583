// Package whisperlocal provides an ASR provider backed by a local
// whisper.cpp server (whisper-server exposes a REST API at POST /inference).
// It implements the asr.Provider interface.
package whisperlocal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/hkuriyama/hanako/pkg/provider/asr"
)

// Local inference on CPU can take a while for long clips.
const defaultTimeout = 60 * time.Second

// Compile-time interface check.
var _ asr.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithModel sets the model hint forwarded to the server (e.g., "base.en").
// When empty the server uses whichever model it was started with.
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithLanguage sets the default language hint (e.g., "en").
func WithLanguage(lang string) Option {
	return func(p *Provider) {
		p.language = lang
	}
}

// Provider implements asr.Provider against a whisper.cpp HTTP server.
type Provider struct {
	serverURL  string
	model      string
	language   string
	httpClient *http.Client
}

// New creates a Provider for the whisper.cpp server at serverURL.
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, fmt.Errorf("whisperlocal: serverURL must not be empty")
	}
	p := &Provider{
		serverURL:  strings.TrimRight(serverURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Transcribe implements asr.Provider. audioData must be a complete audio
// file (WAV is what whisper-server accepts out of the box).
func (p *Provider) Transcribe(ctx context.Context, audioData []byte, langOverride string) (asr.Transcription, error) {
	if len(audioData) == 0 {
		return asr.Transcription{}, fmt.Errorf("whisperlocal: empty audio")
	}
	lang := langOverride
	if lang == "" {
		lang = p.language
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return asr.Transcription{}, fmt.Errorf("whisperlocal: create form file: %w", err)
	}
	if _, err := fw.Write(audioData); err != nil {
		return asr.Transcription{}, fmt.Errorf("whisperlocal: write audio: %w", err)
	}
	if lang != "" {
		if err := mw.WriteField("language", lang); err != nil {
			return asr.Transcription{}, fmt.Errorf("whisperlocal: write language field: %w", err)
		}
	}
	if p.model != "" {
		if err := mw.WriteField("model", p.model); err != nil {
			return asr.Transcription{}, fmt.Errorf("whisperlocal: write model field: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return asr.Transcription{}, fmt.Errorf("whisperlocal: close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.serverURL+"/inference", &body)
	if err != nil {
		return asr.Transcription{}, fmt.Errorf("whisperlocal: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return asr.Transcription{}, fmt.Errorf("whisperlocal: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return asr.Transcription{}, fmt.Errorf("whisperlocal: status %d: %s", resp.StatusCode, msg)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return asr.Transcription{}, fmt.Errorf("whisperlocal: read response: %w", err)
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return asr.Transcription{}, fmt.Errorf("whisperlocal: parse response: %w", err)
	}

	return asr.Transcription{
		Text:       strings.TrimSpace(result.Text),
		Language:   lang,
		Confidence: 1.0,
	}, nil
}

// ValidateConfig implements asr.Provider.
func (p *Provider) ValidateConfig() error {
	if p.serverURL == "" {
		return fmt.Errorf("whisperlocal: serverURL must not be empty")
	}
	return nil
}
