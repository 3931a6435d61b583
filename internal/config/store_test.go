package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestOpenStore_CreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hanako.yaml")
	s, err := OpenStore(path)
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file should exist after first open: %v", err)
	}
	if got := s.Snapshot().LLM.Provider; got != "lmstudio" {
		t.Fatalf("fresh store provider = %q, want lmstudio", got)
	}

	// Reopen reads the persisted file rather than re-creating defaults.
	s2, err := OpenStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if got := s2.Snapshot().Memory.MaxHistory; got != 12 {
		t.Fatalf("reopened max_history = %d, want 12", got)
	}
}

func TestMerge_DeepMergesNestedMaps(t *testing.T) {
	s := NewStoreFromConfig("", Default())

	cfg, err := s.Merge(map[string]any{
		"llm": map[string]any{"model": "llama-3.1-8b"},
	})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if cfg.LLM.Model != "llama-3.1-8b" {
		t.Errorf("merged model = %q", cfg.LLM.Model)
	}
	// Sibling keys inside the merged section survive.
	if cfg.LLM.Endpoint != "http://127.0.0.1:1234/v1" {
		t.Errorf("endpoint clobbered by merge: %q", cfg.LLM.Endpoint)
	}
	// Untouched sections survive.
	if cfg.TTS.Provider != "fish_audio" {
		t.Errorf("tts section clobbered by merge: %q", cfg.TTS.Provider)
	}
}

func TestMerge_ListsOverwrite(t *testing.T) {
	s := NewStoreFromConfig("", Default())
	cfg, err := s.Merge(map[string]any{
		"tts": map[string]any{"fallback_chain": []any{"elevenlabs"}},
	})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if len(cfg.TTS.FallbackChain) != 1 || cfg.TTS.FallbackChain[0] != "elevenlabs" {
		t.Fatalf("fallback_chain = %v, want [elevenlabs]", cfg.TTS.FallbackChain)
	}
}

func TestMerge_RejectsUnknownKeys(t *testing.T) {
	s := NewStoreFromConfig("", Default())
	if _, err := s.Merge(map[string]any{"turbo": true}); err == nil {
		t.Fatal("expected error for unknown top-level key")
	}
	// Stored config unchanged after a rejected merge.
	if got := s.Snapshot().LLM.Provider; got != "lmstudio" {
		t.Fatalf("config mutated by failed merge: %q", got)
	}
}

func TestMerge_RejectsInvalidResult(t *testing.T) {
	s := NewStoreFromConfig("", Default())
	if _, err := s.Merge(map[string]any{
		"memory": map[string]any{"max_history": -3},
	}); err == nil {
		t.Fatal("expected validation error")
	}
	if got := s.Snapshot().Memory.MaxHistory; got != 12 {
		t.Fatalf("max_history mutated by failed merge: %d", got)
	}
}

func TestMerge_PersistsToDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hanako.yaml")
	s, err := OpenStore(path)
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	if _, err := s.Merge(map[string]any{
		"memory": map[string]any{"max_history": 20},
	}); err != nil {
		t.Fatalf("Merge: %v", err)
	}

	s2, err := OpenStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if got := s2.Snapshot().Memory.MaxHistory; got != 20 {
		t.Fatalf("persisted max_history = %d, want 20", got)
	}
}
