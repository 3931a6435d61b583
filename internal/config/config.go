// Package config provides the configuration schema, loader, and mutable
// on-disk store for the hanako companion server.
package config

// LogLevel controls log verbosity for the server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure. It is loaded from a YAML file
// via [Load] or managed at runtime by a [Store].
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	LLM     LLMConfig     `yaml:"llm"`
	TTS     TTSConfig     `yaml:"tts"`
	ASR     ASRConfig     `yaml:"asr"`
	Memory  MemoryConfig  `yaml:"memory"`
	Storage StorageConfig `yaml:"storage"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the HTTP server listens on (e.g., ":8900").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// LLMConfig selects and configures the chat-completion backend.
type LLMConfig struct {
	// Provider selects the registered LLM implementation (e.g., "lmstudio").
	Provider string `yaml:"provider"`

	// Endpoint is the backend's base URL (e.g., "http://127.0.0.1:1234/v1").
	Endpoint string `yaml:"endpoint"`

	// APIKey authenticates against the backend. Local backends accept any
	// non-empty placeholder.
	APIKey string `yaml:"api_key"`

	// Model is the model identifier to request. Empty lets server-side
	// single-model backends pick their loaded model.
	Model string `yaml:"model"`
}

// TTSConfig selects and configures the speech-synthesis backend and its
// fallback ordering.
type TTSConfig struct {
	// Provider is the primary TTS provider name (e.g., "fish_audio").
	Provider string `yaml:"provider"`

	// Endpoint overrides the provider's default API endpoint.
	Endpoint string `yaml:"endpoint"`

	// APIKey authenticates against the provider, where required.
	APIKey string `yaml:"api_key"`

	// VoiceID is the provider-specific voice identifier.
	VoiceID string `yaml:"voice_id"`

	// Format is the requested audio format ("mp3", "wav", "opus").
	Format string `yaml:"format"`

	// SampleRate is the requested sample rate in Hz.
	SampleRate int `yaml:"sample_rate"`

	// FallbackChain lists provider names tried in order when the primary
	// (and each predecessor) fails.
	FallbackChain []string `yaml:"fallback_chain"`

	// PiperPath optionally points at the piper executable for the
	// "piper_local" provider. Empty means look it up on PATH.
	PiperPath string `yaml:"piper_path"`

	// PiperVoice is the path to the piper voice model (.onnx) for the
	// "piper_local" provider.
	PiperVoice string `yaml:"piper_voice"`
}

// ASRConfig selects and configures the optional speech-recognition backend.
type ASRConfig struct {
	// Enabled gates the whole capability. When false no adapter is built and
	// transcription endpoints report the capability as disabled.
	Enabled bool `yaml:"enabled"`

	// Provider selects the registered ASR implementation
	// ("whisper_api" or "whisper_local").
	Provider string `yaml:"provider"`

	// Endpoint is the backend base URL.
	Endpoint string `yaml:"endpoint"`

	// APIKey authenticates against the backend, where required.
	APIKey string `yaml:"api_key"`

	// Model is the transcription model (e.g., "whisper-1", "base.en").
	Model string `yaml:"model"`

	// Language is the default language hint (e.g., "en").
	Language string `yaml:"language"`
}

// MemoryConfig bounds the conversation context window.
type MemoryConfig struct {
	// MaxHistory is the number of most-recent messages sent to the LLM.
	// Older context is silently dropped, not summarised.
	MaxHistory int `yaml:"max_history"`
}

// StorageConfig holds filesystem and database locations.
type StorageConfig struct {
	// AudioDir receives synthesised audio artifacts.
	AudioDir string `yaml:"audio_dir"`

	// AvatarDir holds uploaded avatar model files (.vrm/.glb/.gltf).
	AvatarDir string `yaml:"avatar_dir"`

	// PostgresDSN is the PostgreSQL connection string for the session store.
	// Empty selects the in-memory store (state lost on restart).
	PostgresDSN string `yaml:"postgres_dsn"`
}

// Default returns the documented default configuration shape. A fresh
// deployment writes this to disk on first start.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr: ":8900",
			LogLevel:   LogInfo,
		},
		LLM: LLMConfig{
			Provider: "lmstudio",
			Endpoint: "http://127.0.0.1:1234/v1",
			APIKey:   "lm-studio",
		},
		TTS: TTSConfig{
			Provider:      "fish_audio",
			Endpoint:      "https://api.fish.audio/v1",
			VoiceID:       "8ef4a238714b45718ce04243307c57a7",
			Format:        "mp3",
			SampleRate:    24000,
			FallbackChain: []string{"piper_local", "xtts_server", "elevenlabs"},
		},
		ASR: ASRConfig{
			Enabled:  false,
			Provider: "whisper_api",
			Model:    "whisper-1",
			Language: "en",
		},
		Memory: MemoryConfig{
			MaxHistory: 12,
		},
		Storage: StorageConfig{
			AudioDir:  "storage/audio",
			AvatarDir: "storage/avatars",
		},
	}
}
