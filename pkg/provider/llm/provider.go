// Package llm defines the Provider interface for chat-completion backends.
//
// An LLM provider wraps a remote or local model API (e.g., LM Studio, OpenAI,
// or a local Ollama instance) and exposes a single Chat verb the orchestrator
// calls with the assembled context window. Providers normalise every backend
// failure — network error, non-2xx status, unparsable payload — into an error
// return so that callers can branch on the value without knowing which SDK or
// wire protocol sits behind it.
//
// Implementations must be safe for concurrent use.
package llm

import (
	"context"
	"encoding/json"
)

// Role values for [Message.Role]. These match the OpenAI-style chat roles
// that every supported backend understands.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single entry of the conversation context sent to the model.
type Message struct {
	// Role is one of [RoleSystem], [RoleUser], or [RoleAssistant].
	Role string `json:"role"`

	// Content is the message text.
	Content string `json:"content"`
}

// Reply is the normalised result of a successful chat completion.
type Reply struct {
	// Content is the full text of the assistant's reply.
	Content string

	// Raw is the unmodified backend response body, kept for diagnostics.
	// May be nil for backends that do not expose it.
	Raw json.RawMessage
}

// Provider is the abstraction over any chat-completion backend.
//
// Implementations must be safe for concurrent use. Chat must respect ctx
// cancellation and must bound every network round trip with a timeout so a
// stalled backend cannot hang the pipeline.
type Provider interface {
	// Chat sends the ordered conversation context to the model and returns its
	// reply. messages must be non-empty; the last entry is typically the
	// user's utterance.
	//
	// All failure modes (unreachable backend, non-success status, malformed
	// payload) surface as an error whose message is suitable for forwarding to
	// the caller verbatim.
	Chat(ctx context.Context, messages []Message) (Reply, error)

	// ValidateConfig checks that the provider has everything it needs to make
	// requests (credentials, endpoint). Called by the registry at construction
	// time so misconfiguration fails fast rather than on first use.
	ValidateConfig() error
}
