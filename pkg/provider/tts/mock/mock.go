// Package mock provides a test double for the tts.Provider interface.
//
// Use Provider to verify the text and voice a caller requests and to feed
// controlled results without a speech backend.
//
// Example:
//
//	p := &mock.Provider{SpeakResult: tts.Speech{Filename: "x.mp3"}}
//	speech, err := p.Speak(ctx, tts.SpeakRequest{Text: "hi"})
package mock

import (
	"context"
	"sync"

	"github.com/hkuriyama/hanako/pkg/provider/tts"
)

// SpeakCall records a single invocation of Speak.
type SpeakCall struct {
	// Ctx is the context passed to Speak.
	Ctx context.Context
	// Req is the SpeakRequest passed to Speak.
	Req tts.SpeakRequest
}

// Provider is a mock implementation of tts.Provider.
type Provider struct {
	mu sync.Mutex

	// SpeakResult is returned from Speak when SpeakErr is nil.
	SpeakResult tts.Speech

	// SpeakErr, if non-nil, is returned from Speak.
	SpeakErr error

	// SpeakFunc, if non-nil, handles Speak entirely, overriding SpeakResult
	// and SpeakErr.
	SpeakFunc func(ctx context.Context, req tts.SpeakRequest) (tts.Speech, error)

	// ValidateErr, if non-nil, is returned from ValidateConfig.
	ValidateErr error

	// SpeakCalls records all invocations of Speak.
	SpeakCalls []SpeakCall
}

var _ tts.Provider = (*Provider)(nil)

// Speak implements tts.Provider.
func (p *Provider) Speak(ctx context.Context, req tts.SpeakRequest) (tts.Speech, error) {
	p.mu.Lock()
	p.SpeakCalls = append(p.SpeakCalls, SpeakCall{Ctx: ctx, Req: req})
	fn := p.SpeakFunc
	result, err := p.SpeakResult, p.SpeakErr
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	return result, err
}

// ValidateConfig implements tts.Provider.
func (p *Provider) ValidateConfig() error {
	return p.ValidateErr
}

// CallCount returns the number of recorded Speak invocations.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.SpeakCalls)
}
