// Package audio provides the shared artifact sink TTS providers write into.
//
// Every successful synthesis produces exactly one file in the sink directory.
// Filenames are derived from a hash of (provider, voice, text) plus the
// current Unix timestamp, so identical requests within the same second map to
// the same name (idempotent-looking) while repeats across time never collide.
package audio

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Sink is a directory that receives synthesised audio artifacts.
// All methods are safe for concurrent use; concurrent writers produce
// distinct files unless their names collide, in which case the later write
// overwrites byte-identical content.
type Sink struct {
	dir string
	now func() time.Time
}

// NewSink creates a Sink rooted at dir, creating the directory (and parents)
// if needed.
func NewSink(dir string) (*Sink, error) {
	if dir == "" {
		return nil, fmt.Errorf("audio: sink dir must not be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("audio: create sink dir %q: %w", dir, err)
	}
	return &Sink{dir: dir, now: time.Now}, nil
}

// Dir returns the sink's root directory.
func (s *Sink) Dir() string { return s.dir }

// FileName derives the artifact filename for the given synthesis key parts
// and extension: "<unix-ts>_<sha1(key)[:16]>.<ext>". keyParts are joined with
// "|" before hashing; callers pass (provider, voice, text).
func (s *Sink) FileName(ext string, keyParts ...string) string {
	h := sha1.Sum([]byte(strings.Join(keyParts, "|")))
	return fmt.Sprintf("%d_%s.%s", s.now().Unix(), hex.EncodeToString(h[:])[:16], ext)
}

// Write stores data under name (a bare filename, no directory component) and
// returns name unchanged for convenient chaining into a [tts.Speech] result.
func (s *Sink) Write(name string, data []byte) (string, error) {
	if name != filepath.Base(name) {
		return "", fmt.Errorf("audio: artifact name %q must not contain a path", name)
	}
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("audio: write artifact %q: %w", name, err)
	}
	return name, nil
}

// Path returns the absolute location of an artifact inside the sink.
// It does not check that the file exists.
func (s *Sink) Path(name string) string {
	return filepath.Join(s.dir, filepath.Base(name))
}
