// Package lmstudio provides an LLM provider for LM Studio and other
// OpenAI-compatible local inference servers. It talks to the server's
// /v1/chat/completions endpoint via the official OpenAI client with an
// overridden base URL.
package lmstudio

import (
	"context"
	"fmt"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/hkuriyama/hanako/pkg/provider/llm"
)

const (
	// defaultModel is sent when no model is configured. LM Studio ignores
	// the field and answers with whatever model is loaded.
	defaultModel = "local-model"

	defaultTimeout = 60 * time.Second
)

// Compile-time interface check.
var _ llm.Provider = (*Provider)(nil)

// Provider implements [llm.Provider] against an OpenAI-compatible endpoint.
type Provider struct {
	client   oai.Client
	endpoint string
	model    string
}

// Option is a functional option for Provider.
type Option func(*settings)

type settings struct {
	timeout time.Duration
}

// WithTimeout overrides the per-request HTTP timeout (default 60s).
func WithTimeout(d time.Duration) Option {
	return func(s *settings) {
		s.timeout = d
	}
}

// New constructs a Provider for the OpenAI-compatible server at endpoint.
// apiKey may be any non-empty placeholder for local servers; model may be
// empty for single-model backends.
func New(endpoint, apiKey, model string, opts ...Option) (*Provider, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("lmstudio: endpoint must not be empty")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("lmstudio: apiKey must not be empty")
	}
	s := &settings{timeout: defaultTimeout}
	for _, o := range opts {
		o(s)
	}
	if model == "" {
		model = defaultModel
	}

	client := oai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(endpoint),
		option.WithHTTPClient(&http.Client{Timeout: s.timeout}),
	)
	return &Provider{client: client, endpoint: endpoint, model: model}, nil
}

// Chat implements [llm.Provider].
func (p *Provider) Chat(ctx context.Context, messages []llm.Message) (llm.Reply, error) {
	params := oai.ChatCompletionNewParams{
		Model:    p.model,
		Messages: make([]oai.ChatCompletionMessageParamUnion, 0, len(messages)),
	}
	for _, m := range messages {
		switch m.Role {
		case llm.RoleSystem:
			params.Messages = append(params.Messages, oai.SystemMessage(m.Content))
		case llm.RoleAssistant:
			params.Messages = append(params.Messages, oai.AssistantMessage(m.Content))
		default:
			params.Messages = append(params.Messages, oai.UserMessage(m.Content))
		}
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return llm.Reply{}, fmt.Errorf("lmstudio: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return llm.Reply{}, fmt.Errorf("lmstudio: empty choices in response")
	}
	return llm.Reply{
		Content: resp.Choices[0].Message.Content,
		Raw:     []byte(resp.RawJSON()),
	}, nil
}

// ValidateConfig implements [llm.Provider].
func (p *Provider) ValidateConfig() error {
	if p.endpoint == "" {
		return fmt.Errorf("lmstudio: endpoint must not be empty")
	}
	return nil
}
