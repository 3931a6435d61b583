// Package tts defines the Provider interface for speech-synthesis backends.
//
// A TTS provider wraps a synthesis service (e.g., Fish Audio, ElevenLabs, a
// local Piper binary, or an XTTS server) and presents a single Speak verb.
// Adapters write the synthesised audio into a shared [audio.Sink] and return
// only the generated filename plus metadata — never raw bytes — which keeps
// the contract storage-agnostic for callers: the HTTP layer turns the
// filename into a URL, tests assert on it directly.
//
// Implementations must be safe for concurrent use.
package tts

import "context"

// SpeakRequest carries the text to synthesise plus optional per-call
// overrides. Zero-value override fields mean "use the provider's configured
// default" (the voice, format, and sample rate it was constructed with).
type SpeakRequest struct {
	// Text is the text to synthesise. Must be non-empty.
	Text string

	// VoiceID optionally overrides the configured voice for this call.
	// Used when a character carries its own voice.
	VoiceID string
}

// Speech is the normalised result of a successful synthesis.
type Speech struct {
	// Filename is the name of the audio artifact written into the shared sink.
	// It is a bare filename (no directory component).
	Filename string

	// Provider is the name of the provider that produced the artifact.
	Provider string

	// VoiceID is the voice the artifact was synthesised with, if any.
	VoiceID string

	// Format is the audio container/codec, e.g. "mp3" or "wav".
	Format string

	// SampleRate is the sample rate in Hz, or 0 when the provider does not
	// report one.
	SampleRate int
}

// Provider is the abstraction over any speech-synthesis backend.
//
// Implementations must be safe for concurrent use and must bound every
// network round trip or subprocess run with a timeout.
type Provider interface {
	// Speak synthesises req.Text, writes the audio artifact into the shared
	// sink, and returns its filename plus metadata. All failure modes surface
	// as an error; callers (the fallback chain in particular) treat any error
	// as a failed attempt and move on.
	Speak(ctx context.Context, req SpeakRequest) (Speech, error)

	// ValidateConfig checks that the provider has everything it needs
	// (credentials, voice, endpoint or executable). Called by the registry at
	// construction time.
	ValidateConfig() error
}
