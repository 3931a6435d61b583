// Package registry resolves configured provider names into live adapter
// instances for each capability (LLM, TTS, ASR).
//
// Resolution semantics differ per capability and are load-bearing for the
// rest of the server:
//
//   - LLM: an unrecognised provider name is a hard error. Chat cannot
//     degrade, so misconfiguration must surface immediately.
//   - TTS: an unrecognised provider name falls back to fish_audio. Speech is
//     an enhancement; a typo in the config should not mute the companion.
//   - ASR: a disabled capability resolves to (nil, nil) — no adapter, no
//     error. An unrecognised name with the capability enabled is a hard
//     error.
package registry

import (
	"fmt"
	"sort"
	"strings"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/hkuriyama/hanako/internal/config"
	"github.com/hkuriyama/hanako/pkg/audio"
	"github.com/hkuriyama/hanako/pkg/provider/asr"
	"github.com/hkuriyama/hanako/pkg/provider/asr/whisperapi"
	"github.com/hkuriyama/hanako/pkg/provider/asr/whisperlocal"
	"github.com/hkuriyama/hanako/pkg/provider/llm"
	"github.com/hkuriyama/hanako/pkg/provider/llm/anyllm"
	"github.com/hkuriyama/hanako/pkg/provider/llm/lmstudio"
	"github.com/hkuriyama/hanako/pkg/provider/tts"
	"github.com/hkuriyama/hanako/pkg/provider/tts/elevenlabs"
	"github.com/hkuriyama/hanako/pkg/provider/tts/fishaudio"
	"github.com/hkuriyama/hanako/pkg/provider/tts/piper"
	"github.com/hkuriyama/hanako/pkg/provider/tts/xtts"
)

// DefaultTTSProvider is used when the configured TTS provider name is not
// recognised.
const DefaultTTSProvider = "fish_audio"

// ConfigurationError reports an unrecognised provider name together with the
// names that would have been accepted.
type ConfigurationError struct {
	Capability string
	Given      string
	Valid      []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("registry: unknown %s provider %q (valid: %s)",
		e.Capability, e.Given, strings.Join(e.Valid, ", "))
}

// Registry builds provider adapters from configuration sections. TTS
// adapters share the registry's audio sink.
type Registry struct {
	sink *audio.Sink
}

// New returns a Registry whose TTS adapters write into sink.
func New(sink *audio.Sink) *Registry {
	return &Registry{sink: sink}
}

// LLM resolves the chat-completion adapter for cfg. Provider names are
// matched case-insensitively; an unknown name returns a [ConfigurationError].
func (r *Registry) LLM(cfg config.LLMConfig) (llm.Provider, error) {
	var (
		p   llm.Provider
		err error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "lmstudio":
		p, err = lmstudio.New(cfg.Endpoint, cfg.APIKey, cfg.Model)
	case "openai", "anthropic", "ollama", "groq":
		name := strings.ToLower(strings.TrimSpace(cfg.Provider))
		opts := []anyllmlib.Option{}
		if cfg.APIKey != "" {
			opts = append(opts, anyllmlib.WithAPIKey(cfg.APIKey))
		}
		if cfg.Endpoint != "" {
			opts = append(opts, anyllmlib.WithBaseURL(cfg.Endpoint))
		}
		p, err = anyllm.New(name, cfg.Model, opts...)
	default:
		return nil, &ConfigurationError{
			Capability: "llm",
			Given:      cfg.Provider,
			Valid:      validNames("llm"),
		}
	}
	if err != nil {
		return nil, fmt.Errorf("registry: build llm provider %q: %w", cfg.Provider, err)
	}
	if err := p.ValidateConfig(); err != nil {
		return nil, fmt.Errorf("registry: validate llm provider %q: %w", cfg.Provider, err)
	}
	return p, nil
}

// TTS resolves the speech-synthesis adapter named name using the settings in
// cfg. An empty name selects cfg.Provider; a name outside the known set
// silently resolves to [DefaultTTSProvider].
func (r *Registry) TTS(cfg config.TTSConfig, name string) (tts.Provider, error) {
	if name == "" {
		name = cfg.Provider
	}
	name = strings.ToLower(strings.TrimSpace(name))

	var (
		p   tts.Provider
		err error
	)
	switch name {
	case "elevenlabs":
		opts := []elevenlabs.Option{}
		if cfg.Endpoint != "" && cfg.Provider == "elevenlabs" {
			opts = append(opts, elevenlabs.WithEndpoint(cfg.Endpoint))
		}
		p, err = elevenlabs.New(cfg.APIKey, cfg.VoiceID, r.sink, opts...)
	case "piper_local":
		p, err = piper.New(cfg.PiperPath, cfg.PiperVoice, r.sink)
	case "xtts_server":
		endpoint := cfg.Endpoint
		if cfg.Provider != "xtts_server" || endpoint == "" {
			endpoint = "http://127.0.0.1:8020"
		}
		p, err = xtts.New(endpoint, cfg.VoiceID, r.sink)
	case "fish_audio":
		p, err = r.fishAudio(cfg)
	default:
		// Unknown names resolve to the default provider rather than failing.
		name = DefaultTTSProvider
		p, err = r.fishAudio(cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("registry: build tts provider %q: %w", name, err)
	}
	if err := p.ValidateConfig(); err != nil {
		return nil, fmt.Errorf("registry: validate tts provider %q: %w", name, err)
	}
	return p, nil
}

func (r *Registry) fishAudio(cfg config.TTSConfig) (tts.Provider, error) {
	opts := []fishaudio.Option{
		fishaudio.WithFormat(cfg.Format),
		fishaudio.WithSampleRate(cfg.SampleRate),
	}
	if cfg.Endpoint != "" && cfg.Provider == "fish_audio" {
		opts = append(opts, fishaudio.WithEndpoint(cfg.Endpoint))
	}
	return fishaudio.New(cfg.APIKey, cfg.VoiceID, r.sink, opts...)
}

// ASR resolves the transcription adapter for cfg. A disabled capability
// returns (nil, nil); callers must treat a nil provider as "ASR off".
func (r *Registry) ASR(cfg config.ASRConfig) (asr.Provider, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	var (
		p   asr.Provider
		err error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "whisper_api":
		opts := []whisperapi.Option{}
		if cfg.Endpoint != "" {
			opts = append(opts, whisperapi.WithEndpoint(cfg.Endpoint))
		}
		p, err = whisperapi.New(cfg.APIKey, cfg.Model, cfg.Language, opts...)
	case "whisper_local":
		endpoint := cfg.Endpoint
		if endpoint == "" {
			endpoint = "http://127.0.0.1:8080"
		}
		p, err = whisperlocal.New(endpoint,
			whisperlocal.WithModel(cfg.Model),
			whisperlocal.WithLanguage(cfg.Language),
		)
	default:
		return nil, &ConfigurationError{
			Capability: "asr",
			Given:      cfg.Provider,
			Valid:      validNames("asr"),
		}
	}
	if err != nil {
		return nil, fmt.Errorf("registry: build asr provider %q: %w", cfg.Provider, err)
	}
	if err := p.ValidateConfig(); err != nil {
		return nil, fmt.Errorf("registry: validate asr provider %q: %w", cfg.Provider, err)
	}
	return p, nil
}

// validNames returns the sorted accepted names for a capability, sourced
// from the same table the config validator warns against.
func validNames(capability string) []string {
	names := append([]string(nil), config.ValidProviderNames[capability]...)
	sort.Strings(names)
	return names
}
