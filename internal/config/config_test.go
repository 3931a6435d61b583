package config

import (
	"strings"
	"testing"
)

func TestLoadFromReader_FullConfig(t *testing.T) {
	const doc = `
server:
  listen_addr: ":9001"
  log_level: debug
llm:
  provider: lmstudio
  endpoint: http://127.0.0.1:1234/v1
  api_key: lm-studio
  model: qwen2.5-7b
tts:
  provider: fish_audio
  endpoint: https://api.fish.audio/v1
  voice_id: abc123
  format: mp3
  sample_rate: 24000
  fallback_chain: [piper_local, elevenlabs]
asr:
  enabled: true
  provider: whisper_api
  endpoint: https://api.openai.com/v1
  api_key: sk-test
  model: whisper-1
  language: en
memory:
  max_history: 8
storage:
  audio_dir: /tmp/audio
  avatar_dir: /tmp/avatars
`
	cfg, err := LoadFromReader(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Server.ListenAddr != ":9001" {
		t.Errorf("ListenAddr = %q, want :9001", cfg.Server.ListenAddr)
	}
	if cfg.LLM.Model != "qwen2.5-7b" {
		t.Errorf("LLM.Model = %q", cfg.LLM.Model)
	}
	if got := cfg.TTS.FallbackChain; len(got) != 2 || got[0] != "piper_local" || got[1] != "elevenlabs" {
		t.Errorf("FallbackChain = %v", got)
	}
	if !cfg.ASR.Enabled {
		t.Error("ASR.Enabled = false, want true")
	}
	if cfg.Memory.MaxHistory != 8 {
		t.Errorf("MaxHistory = %d, want 8", cfg.Memory.MaxHistory)
	}
}

func TestLoadFromReader_RejectsUnknownFields(t *testing.T) {
	const doc = `
llm:
  provider: lmstudio
  flavour: vanilla
`
	if _, err := LoadFromReader(strings.NewReader(doc)); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestValidate_BadLogLevel(t *testing.T) {
	cfg := Default()
	cfg.Server.LogLevel = "loud"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for invalid log level")
	}
}

func TestValidate_NegativeHistory(t *testing.T) {
	cfg := Default()
	cfg.Memory.MaxHistory = -1
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for negative max_history")
	}
}

func TestDefault_Shape(t *testing.T) {
	cfg := Default()
	if cfg.LLM.Provider != "lmstudio" {
		t.Errorf("default llm provider = %q", cfg.LLM.Provider)
	}
	if cfg.TTS.Provider != "fish_audio" {
		t.Errorf("default tts provider = %q", cfg.TTS.Provider)
	}
	if cfg.ASR.Enabled {
		t.Error("ASR should be disabled by default")
	}
	if cfg.Memory.MaxHistory != 12 {
		t.Errorf("default max_history = %d, want 12", cfg.Memory.MaxHistory)
	}
	if len(cfg.TTS.FallbackChain) == 0 {
		t.Error("default fallback chain should not be empty")
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}
