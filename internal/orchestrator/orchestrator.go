// Package orchestrator runs the chat turn pipeline: persist the user
// message, assemble a bounded context window, call the chat model, persist
// the reply, and optionally synthesise speech for it.
//
// Failure handling is deliberately asymmetric. The user's message is
// persisted before the model is called, so a model failure loses nothing:
// the turn comes back with OK=false and the backend's error text, and the
// next turn retries against the full history. Speech synthesis failures
// degrade the turn to text-only and never fail it.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hkuriyama/hanako/internal/config"
	"github.com/hkuriyama/hanako/internal/observe"
	"github.com/hkuriyama/hanako/internal/store"
	"github.com/hkuriyama/hanako/pkg/provider/llm"
	"github.com/hkuriyama/hanako/pkg/provider/tts"
)

// defaultPersona is used when the requested character cannot be loaded.
const defaultPersona = "You are a friendly anime companion. Keep replies short and warm."

// ErrEmptyMessage is returned when a chat turn carries no text. Nothing is
// persisted in that case.
var ErrEmptyMessage = errors.New("orchestrator: message text must not be empty")

// LLMResolver builds the chat adapter for the given settings. Registry.LLM
// satisfies this signature.
type LLMResolver func(cfg config.LLMConfig) (llm.Provider, error)

// Speaker synthesises speech with failover. resilience.SpeechChain satisfies
// this interface.
type Speaker interface {
	Speak(ctx context.Context, cfg config.TTSConfig, primary string, req tts.SpeakRequest) (tts.Speech, error)
}

// ChatRequest is one user turn.
type ChatRequest struct {
	// SessionID selects the conversation; values < 1 select the default
	// session (id 1), which is created on first use.
	SessionID int64 `json:"session_id"`

	// CharacterID selects the persona; values < 1 select the default
	// character.
	CharacterID int64 `json:"character_id"`

	// Text is the user's message.
	Text string `json:"text"`

	// Speak requests speech synthesis for the reply.
	Speak bool `json:"speak"`
}

// ChatResponse is the outcome of one turn. OK=false means the model call
// failed; Error then carries the backend's message and Reply is empty.
type ChatResponse struct {
	OK        bool   `json:"ok"`
	SessionID int64  `json:"session_id"`
	Reply     string `json:"reply,omitempty"`
	Error     string `json:"error,omitempty"`

	// AudioFile is the synthesised artifact filename, set only when speech
	// was requested and some provider in the chain succeeded.
	AudioFile string `json:"audio_file,omitempty"`

	// AudioProvider names the TTS provider that produced AudioFile.
	AudioProvider string `json:"audio_provider,omitempty"`
}

// Option is a functional option for [New].
type Option func(*Orchestrator)

// WithMetrics attaches metric instruments. Without it, metrics go to the
// package default instance.
func WithMetrics(m *observe.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// Orchestrator coordinates the store, the chat model, and the speech chain
// for chat turns. Providers are resolved per turn so configuration changes
// apply immediately.
type Orchestrator struct {
	cfg        *config.Store
	store      store.Store
	resolveLLM LLMResolver
	speech     Speaker
	metrics    *observe.Metrics
}

// New creates an Orchestrator.
func New(cfg *config.Store, st store.Store, resolveLLM LLMResolver, speech Speaker, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:        cfg,
		store:      st,
		resolveLLM: resolveLLM,
		speech:     speech,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.metrics == nil {
		o.metrics = observe.DefaultMetrics()
	}
	return o
}

// HandleChatTurn runs one full turn. The returned error is reserved for
// infrastructure failures (storage, invalid input); model failures come back
// as a ChatResponse with OK=false.
func (o *Orchestrator) HandleChatTurn(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		o.metrics.RecordChatTurn(ctx, "invalid")
		return ChatResponse{}, ErrEmptyMessage
	}

	sessionID := req.SessionID
	if sessionID < 1 {
		sessionID = 1
	}
	if err := o.store.EnsureSession(ctx, sessionID, fmt.Sprintf("Session %d", sessionID)); err != nil {
		return ChatResponse{}, fmt.Errorf("orchestrator: ensure session: %w", err)
	}
	if _, err := o.store.AppendMessage(ctx, sessionID, store.RoleUser, text); err != nil {
		return ChatResponse{}, fmt.Errorf("orchestrator: persist user message: %w", err)
	}

	cfg := o.cfg.Snapshot()
	character := o.loadCharacter(ctx, req.CharacterID)
	messages, err := o.contextWindow(ctx, sessionID, character, cfg.Memory.MaxHistory)
	if err != nil {
		return ChatResponse{}, err
	}

	reply, err := o.complete(ctx, cfg.LLM, messages)
	if err != nil {
		slog.Warn("chat completion failed",
			"session_id", sessionID, "provider", cfg.LLM.Provider, "error", err)
		o.metrics.RecordChatTurn(ctx, "llm_error")
		return ChatResponse{
			OK:        false,
			SessionID: sessionID,
			Error:     err.Error(),
		}, nil
	}

	if _, err := o.store.AppendMessage(ctx, sessionID, store.RoleAssistant, reply.Content); err != nil {
		return ChatResponse{}, fmt.Errorf("orchestrator: persist reply: %w", err)
	}

	resp := ChatResponse{
		OK:        true,
		SessionID: sessionID,
		Reply:     reply.Content,
	}

	if req.Speak {
		o.speak(ctx, cfg.TTS, character, reply.Content, &resp)
	}

	o.metrics.RecordChatTurn(ctx, "ok")
	return resp, nil
}

// loadCharacter returns the requested character, or a built-in persona when
// it cannot be loaded. A missing character must not fail the turn.
func (o *Orchestrator) loadCharacter(ctx context.Context, id int64) store.Character {
	if id < 1 {
		id = store.DefaultCharacterID
	}
	character, err := o.store.GetCharacter(ctx, id)
	if err != nil {
		slog.Warn("character not found, using default persona",
			"character_id", id, "error", err)
		return store.Character{
			ID:           store.DefaultCharacterID,
			Name:         "Hanako",
			SystemPrompt: defaultPersona,
		}
	}
	if character.SystemPrompt == "" {
		character.SystemPrompt = defaultPersona
	}
	return character
}

// contextWindow builds the message list for the model: the character's
// system prompt followed by the most recent history, which already includes
// the just-persisted user message. limit values below 1 are clamped to 1 so
// the current message always reaches the model.
func (o *Orchestrator) contextWindow(ctx context.Context, sessionID int64, character store.Character, limit int) ([]llm.Message, error) {
	if limit < 1 {
		limit = 1
	}
	history, err := o.store.RecentMessages(ctx, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: load history: %w", err)
	}

	messages := make([]llm.Message, 0, len(history)+1)
	messages = append(messages, llm.Message{
		Role:    llm.RoleSystem,
		Content: character.SystemPrompt,
	})
	for _, m := range history {
		if m.Role == store.RoleSystem {
			continue
		}
		messages = append(messages, llm.Message{Role: m.Role, Content: m.Text})
	}
	return messages, nil
}

// complete resolves the chat adapter and runs the completion, recording
// latency and outcome.
func (o *Orchestrator) complete(ctx context.Context, cfg config.LLMConfig, messages []llm.Message) (llm.Reply, error) {
	p, err := o.resolveLLM(cfg)
	if err != nil {
		o.metrics.RecordProviderError(ctx, cfg.Provider, "llm")
		return llm.Reply{}, err
	}

	start := time.Now()
	reply, err := p.Chat(ctx, messages)
	o.metrics.LLMDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		o.metrics.RecordProviderRequest(ctx, cfg.Provider, "llm", "error")
		o.metrics.RecordProviderError(ctx, cfg.Provider, "llm")
		return llm.Reply{}, err
	}
	o.metrics.RecordProviderRequest(ctx, cfg.Provider, "llm", "ok")
	return reply, nil
}

// speak runs the TTS chain for the reply. The character's voice and provider
// overrides take precedence over the configured defaults. Failure is logged
// and the turn stays text-only.
func (o *Orchestrator) speak(ctx context.Context, cfg config.TTSConfig, character store.Character, text string, resp *ChatResponse) {
	start := time.Now()
	speech, err := o.speech.Speak(ctx, cfg, character.TTSProvider, tts.SpeakRequest{
		Text:    text,
		VoiceID: character.VoiceID,
	})
	o.metrics.TTSDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		slog.Warn("speech synthesis failed, returning text only",
			"session_id", resp.SessionID, "error", err)
		o.metrics.RecordProviderError(ctx, cfg.Provider, "tts")
		return
	}
	resp.AudioFile = speech.Filename
	resp.AudioProvider = speech.Provider
	o.metrics.TTSFallbackDepth.Record(ctx, fallbackDepth(cfg, character.TTSProvider, speech.Provider))
}

// fallbackDepth returns the chain position of the provider that produced
// audio: 0 for the primary, 1 for the first fallback, and so on.
func fallbackDepth(cfg config.TTSConfig, primary, winner string) int64 {
	if primary == "" {
		primary = cfg.Provider
	}
	order := append([]string{primary}, cfg.FallbackChain...)
	for i, name := range order {
		if name == winner {
			return int64(i)
		}
	}
	return 0
}
