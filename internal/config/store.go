package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// Store owns the on-disk configuration file and the current in-memory value.
// It supports the partial-update semantics of the config API: nested maps are
// deep-merged, scalars and lists are overwritten.
//
// Store is safe for concurrent use. Snapshot returns a copy, so callers can
// read fields without holding any lock while a Merge is in flight.
type Store struct {
	path string

	mu  sync.RWMutex
	cfg *Config
}

// OpenStore loads the config file at path, creating it with [Default] values
// when it does not exist yet.
func OpenStore(path string) (*Store, error) {
	cfg, err := Load(path)
	switch {
	case err == nil:
		return &Store{path: path, cfg: cfg}, nil
	case errors.Is(err, os.ErrNotExist):
		s := &Store{path: path, cfg: Default()}
		if err := s.Save(); err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, err
	}
}

// NewStoreFromConfig wraps an existing config value without touching disk.
// Save still writes to path; pass an empty path in tests to keep the store
// memory-only.
func NewStoreFromConfig(path string, cfg *Config) *Store {
	return &Store{path: path, cfg: cfg}
}

// Snapshot returns a deep copy of the current configuration.
func (s *Store) Snapshot() *Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := *s.cfg
	cp.TTS.FallbackChain = append([]string(nil), s.cfg.TTS.FallbackChain...)
	return &cp
}

// Merge applies a partial update to the configuration and persists the
// result. Nested maps are merged key-by-key; scalar and list values
// overwrite. Unknown keys and invalid resulting values are rejected without
// modifying the stored config.
func (s *Store) Merge(partial map[string]any) (*Config, error) {
	if len(partial) == 0 {
		return s.Snapshot(), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	base, err := toMap(s.cfg)
	if err != nil {
		return nil, err
	}
	merged := deepMerge(base, partial)

	out, err := yaml.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("config: encode merged config: %w", err)
	}
	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(out))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: merged config is invalid: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}

	s.cfg = cfg
	if err := s.saveLocked(); err != nil {
		return nil, err
	}
	cp := *cfg
	cp.TTS.FallbackChain = append([]string(nil), cfg.TTS.FallbackChain...)
	return &cp, nil
}

// Save writes the current configuration to the store's path. A no-op when
// the store was created without a path.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

func (s *Store) saveLocked() error {
	if s.path == "" {
		return nil
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: create config dir: %w", err)
		}
	}
	data, err := yaml.Marshal(s.cfg)
	if err != nil {
		return fmt.Errorf("config: encode config: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("config: write %q: %w", s.path, err)
	}
	return nil
}

// toMap round-trips cfg through YAML into a generic map for merging.
func toMap(cfg *Config) (map[string]any, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("config: encode config: %w", err)
	}
	m := map[string]any{}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("config: decode config map: %w", err)
	}
	return m, nil
}

// deepMerge merges src into dst and returns dst. Map values are merged
// recursively; any other value in src overwrites the value in dst.
func deepMerge(dst, src map[string]any) map[string]any {
	for k, v := range src {
		sm, srcIsMap := asStringMap(v)
		dm, dstIsMap := asStringMap(dst[k])
		if srcIsMap && dstIsMap {
			dst[k] = deepMerge(dm, sm)
			continue
		}
		dst[k] = v
	}
	return dst
}

// asStringMap normalises the two map shapes YAML decoding can produce.
func asStringMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			ks, ok := k.(string)
			if !ok {
				return nil, false
			}
			out[ks] = val
		}
		return out, true
	}
	return nil, false
}
