// Package mock provides a test double for the asr.Provider interface.
package mock

import (
	"context"
	"sync"

	"github.com/hkuriyama/hanako/pkg/provider/asr"
)

// TranscribeCall records a single invocation of Transcribe.
type TranscribeCall struct {
	// Ctx is the context passed to Transcribe.
	Ctx context.Context
	// Audio is the audio payload passed to Transcribe.
	Audio []byte
	// LangOverride is the language override passed to Transcribe.
	LangOverride string
}

// Provider is a mock implementation of asr.Provider.
type Provider struct {
	mu sync.Mutex

	// Result is returned from Transcribe when Err is nil.
	Result asr.Transcription

	// Err, if non-nil, is returned from Transcribe.
	Err error

	// ValidateErr, if non-nil, is returned from ValidateConfig.
	ValidateErr error

	// Calls records all invocations of Transcribe.
	Calls []TranscribeCall
}

var _ asr.Provider = (*Provider)(nil)

// Transcribe implements asr.Provider.
func (p *Provider) Transcribe(ctx context.Context, audioData []byte, langOverride string) (asr.Transcription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = append(p.Calls, TranscribeCall{Ctx: ctx, Audio: audioData, LangOverride: langOverride})
	if p.Err != nil {
		return asr.Transcription{}, p.Err
	}
	return p.Result, nil
}

// ValidateConfig implements asr.Provider.
func (p *Provider) ValidateConfig() error {
	return p.ValidateErr
}
