// Package asr defines the Provider interface for speech-recognition backends.
//
// An ASR provider wraps a transcription service (the OpenAI Whisper API or a
// local whisper.cpp server) behind a single Transcribe verb with a normalised
// result shape. The capability is optional: when disabled in configuration
// the registry yields no adapter at all rather than an error.
//
// Implementations must be safe for concurrent use.
package asr

import "context"

// Transcription is the normalised result of a transcription.
type Transcription struct {
	// Text is the transcribed text.
	Text string `json:"text"`

	// Language is the detected or requested language code (e.g. "en").
	Language string `json:"language"`

	// Confidence is the backend's confidence in [0.0, 1.0]. Backends that do
	// not report confidence use 1.0.
	Confidence float64 `json:"confidence"`

	// Duration is the audio duration in seconds, or 0 when unknown.
	Duration float64 `json:"duration"`
}

// Provider is the abstraction over any speech-recognition backend.
type Provider interface {
	// Transcribe converts audio (any container the backend accepts — webm,
	// wav, mp3) to text. langOverride, when non-empty, replaces the configured
	// language for this call.
	//
	// Network failure, non-success status, and unparsable payloads all
	// surface as an error.
	Transcribe(ctx context.Context, audio []byte, langOverride string) (Transcription, error)

	// ValidateConfig checks credentials and endpoint reachability
	// requirements. Called by the registry at construction time.
	ValidateConfig() error
}
