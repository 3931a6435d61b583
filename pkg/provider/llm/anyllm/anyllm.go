// Package anyllm provides an LLM provider backed by
// github.com/mozilla-ai/any-llm-go, a unified multi-provider client covering
// OpenAI, Anthropic, Ollama, Groq, and more.
//
// Usage:
//
//	p, err := anyllm.New("openai", "gpt-4o-mini", anyllmlib.WithAPIKey("sk-..."))
//	p, err := anyllm.New("ollama", "llama3.1", anyllmlib.WithBaseURL("http://localhost:11434"))
package anyllm

import (
	"context"
	"fmt"
	"strings"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/anthropic"
	"github.com/mozilla-ai/any-llm-go/providers/groq"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
	anyllmoai "github.com/mozilla-ai/any-llm-go/providers/openai"

	"github.com/hkuriyama/hanako/pkg/provider/llm"
)

// Compile-time interface check.
var _ llm.Provider = (*Provider)(nil)

// Provider implements [llm.Provider] by wrapping an any-llm-go backend.
type Provider struct {
	backend anyllmlib.Provider
	model   string
}

// New creates a Provider backed by the given backend name.
//
// backendName is one of: "openai", "anthropic", "ollama", "groq".
// model is the model identifier (e.g., "gpt-4o-mini", "llama3.1").
// opts are any-llm-go options such as anyllmlib.WithAPIKey and
// anyllmlib.WithBaseURL; without an API key option the backend falls back to
// its environment variable (OPENAI_API_KEY, ANTHROPIC_API_KEY, ...).
func New(backendName, model string, opts ...anyllmlib.Option) (*Provider, error) {
	if model == "" {
		return nil, fmt.Errorf("anyllm: model must not be empty")
	}
	backend, err := createBackend(backendName, opts...)
	if err != nil {
		return nil, fmt.Errorf("anyllm: create %q backend: %w", backendName, err)
	}
	return &Provider{backend: backend, model: model}, nil
}

func createBackend(name string, opts ...anyllmlib.Option) (anyllmlib.Provider, error) {
	switch strings.ToLower(name) {
	case "openai":
		return anyllmoai.New(opts...)
	case "anthropic":
		return anthropic.New(opts...)
	case "ollama":
		return ollama.New(opts...)
	case "groq":
		return groq.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported backend %q; supported: openai, anthropic, ollama, groq", name)
	}
}

// Chat implements [llm.Provider].
func (p *Provider) Chat(ctx context.Context, messages []llm.Message) (llm.Reply, error) {
	resp, err := p.backend.Completion(ctx, p.buildParams(messages))
	if err != nil {
		return llm.Reply{}, fmt.Errorf("anyllm: completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return llm.Reply{}, fmt.Errorf("anyllm: empty choices in response")
	}
	return llm.Reply{Content: resp.Choices[0].Message.ContentString()}, nil
}

// buildParams converts the chat history into any-llm-go completion params.
// Role strings pass through unchanged; the backends share the OpenAI role
// vocabulary.
func (p *Provider) buildParams(messages []llm.Message) anyllmlib.CompletionParams {
	params := anyllmlib.CompletionParams{
		Model:    p.model,
		Messages: make([]anyllmlib.Message, 0, len(messages)),
	}
	for _, m := range messages {
		params.Messages = append(params.Messages, anyllmlib.Message{
			Role:    m.Role,
			Content: m.Content,
		})
	}
	return params
}

// ValidateConfig implements [llm.Provider].
func (p *Provider) ValidateConfig() error {
	if p.model == "" {
		return fmt.Errorf("anyllm: model must not be empty")
	}
	return nil
}
