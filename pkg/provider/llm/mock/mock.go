// Package mock provides a test double for the llm.Provider interface.
//
// Use Provider in unit tests to verify the messages the orchestrator sends
// and to feed controlled replies without a live backend. Zero values for
// response fields cause methods to return zero values and nil errors; set
// ChatErr to inject failures.
//
// Example:
//
//	p := &mock.Provider{ChatReply: llm.Reply{Content: "Hello!"}}
//	reply, err := p.Chat(ctx, msgs)
package mock

import (
	"context"
	"sync"

	"github.com/hkuriyama/hanako/pkg/provider/llm"
)

// ChatCall records a single invocation of Chat.
type ChatCall struct {
	// Ctx is the context passed to Chat.
	Ctx context.Context
	// Messages is a copy of the message slice passed to Chat.
	Messages []llm.Message
}

// Provider is a mock implementation of llm.Provider.
type Provider struct {
	mu sync.Mutex

	// ChatReply is returned from Chat when ChatErr is nil.
	ChatReply llm.Reply

	// ChatErr, if non-nil, is returned from Chat.
	ChatErr error

	// ChatFunc, if non-nil, handles Chat entirely, overriding ChatReply and
	// ChatErr.
	ChatFunc func(ctx context.Context, messages []llm.Message) (llm.Reply, error)

	// ValidateErr, if non-nil, is returned from ValidateConfig.
	ValidateErr error

	// ChatCalls records all invocations of Chat.
	ChatCalls []ChatCall
}

var _ llm.Provider = (*Provider)(nil)

// Chat implements llm.Provider.
func (p *Provider) Chat(ctx context.Context, messages []llm.Message) (llm.Reply, error) {
	p.mu.Lock()
	p.ChatCalls = append(p.ChatCalls, ChatCall{
		Ctx:      ctx,
		Messages: append([]llm.Message(nil), messages...),
	})
	fn := p.ChatFunc
	reply, err := p.ChatReply, p.ChatErr
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx, messages)
	}
	return reply, err
}

// ValidateConfig implements llm.Provider.
func (p *Provider) ValidateConfig() error {
	return p.ValidateErr
}

// CallCount returns the number of recorded Chat invocations.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.ChatCalls)
}

// LastMessages returns the messages of the most recent Chat call, or nil if
// Chat has not been called.
func (p *Provider) LastMessages() []llm.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.ChatCalls) == 0 {
		return nil
	}
	return p.ChatCalls[len(p.ChatCalls)-1].Messages
}
