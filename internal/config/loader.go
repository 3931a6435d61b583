package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per capability. Used by
// [Validate] to warn about unrecognised names; the registries reject them
// with hard errors at adapter-construction time.
var ValidProviderNames = map[string][]string{
	"llm": {"lmstudio", "openai", "ollama", "anthropic", "groq"},
	"tts": {"fish_audio", "elevenlabs", "piper_local", "xtts_server"},
	"asr": {"whisper_api", "whisper_local"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Provider name validation — warn for unknown names. A typo here will
	// still fail hard in the registry, but the warning points at the config.
	validateProviderName("llm", cfg.LLM.Provider)
	validateProviderName("tts", cfg.TTS.Provider)
	for _, name := range cfg.TTS.FallbackChain {
		validateProviderName("tts", name)
	}
	if cfg.ASR.Enabled {
		validateProviderName("asr", cfg.ASR.Provider)
	}

	if cfg.Memory.MaxHistory < 0 {
		errs = append(errs, fmt.Errorf("memory.max_history %d must not be negative", cfg.Memory.MaxHistory))
	}
	if cfg.TTS.SampleRate < 0 {
		errs = append(errs, fmt.Errorf("tts.sample_rate %d must not be negative", cfg.TTS.SampleRate))
	}
	if cfg.LLM.Provider == "" {
		slog.Warn("llm.provider is empty; chat turns will fail until one is configured")
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given capability.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
