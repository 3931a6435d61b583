package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hkuriyama/hanako/internal/config"
	"github.com/hkuriyama/hanako/pkg/provider/tts"
)

// ErrAllFailed is returned by [SpeechChain.Speak] when every provider in the
// chain failed. It wraps the error of the last attempted provider; earlier
// failures are logged but not reported.
var ErrAllFailed = errors.New("all tts providers failed")

// ResolveFunc builds the TTS adapter for a provider name using the supplied
// settings. Registry.TTS satisfies this signature.
type ResolveFunc func(cfg config.TTSConfig, name string) (tts.Provider, error)

// SpeechChain synthesises speech with automatic failover: the primary
// provider is tried first, then each entry of the configured fallback chain
// in order. The first produced audio wins.
//
// Providers are resolved per call so configuration changes take effect
// without a restart. Each provider name keeps a dedicated circuit breaker
// across calls, so a backend that keeps failing is skipped for a while
// instead of adding its timeout to every turn.
type SpeechChain struct {
	resolve ResolveFunc
	breaker BreakerConfig

	mu       sync.Mutex
	breakers map[string]*CircuitBreaker
}

// NewSpeechChain creates a chain that resolves providers through resolve.
// breaker configures the per-provider circuit breakers; its Name field is
// overwritten per provider.
func NewSpeechChain(resolve ResolveFunc, breaker BreakerConfig) *SpeechChain {
	return &SpeechChain{
		resolve:  resolve,
		breaker:  breaker,
		breakers: make(map[string]*CircuitBreaker),
	}
}

// Speak synthesises req, starting with primary (cfg.Provider when empty) and
// walking cfg.FallbackChain on failure. A provider that cannot be resolved,
// returns an error, or panics counts as a failed attempt and the chain moves
// on. When every attempt fails the returned error wraps [ErrAllFailed]
// around the last failure only.
func (c *SpeechChain) Speak(ctx context.Context, cfg config.TTSConfig, primary string, req tts.SpeakRequest) (tts.Speech, error) {
	order := c.order(cfg, primary)
	if len(order) == 0 {
		return tts.Speech{}, fmt.Errorf("%w: no providers configured", ErrAllFailed)
	}

	var lastErr error
	for _, name := range order {
		if err := ctx.Err(); err != nil {
			return tts.Speech{}, err
		}

		var speech tts.Speech
		err := c.breakerFor(name).Execute(func() error {
			p, err := c.resolve(cfg, name)
			if err != nil {
				return err
			}
			speech, err = speakSafely(ctx, p, req)
			return err
		})
		if err == nil {
			return speech, nil
		}
		lastErr = err
		if errors.Is(err, ErrCircuitOpen) {
			slog.Debug("skipping tts provider (circuit open)", "provider", name)
		} else {
			slog.Warn("tts provider failed, trying next", "provider", name, "error", err)
		}
	}
	return tts.Speech{}, fmt.Errorf("%w: %v", ErrAllFailed, lastErr)
}

// order returns the provider names to try: primary first, then the fallback
// chain, with duplicates removed.
func (c *SpeechChain) order(cfg config.TTSConfig, primary string) []string {
	if primary == "" {
		primary = cfg.Provider
	}
	seen := make(map[string]bool, 1+len(cfg.FallbackChain))
	order := make([]string, 0, 1+len(cfg.FallbackChain))
	for _, name := range append([]string{primary}, cfg.FallbackChain...) {
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		order = append(order, name)
	}
	return order
}

func (c *SpeechChain) breakerFor(name string) *CircuitBreaker {
	c.mu.Lock()
	defer c.mu.Unlock()
	cb, ok := c.breakers[name]
	if !ok {
		cfg := c.breaker
		cfg.Name = "tts/" + name
		cb = NewCircuitBreaker(cfg)
		c.breakers[name] = cb
	}
	return cb
}

// speakSafely converts a provider panic into an error so one misbehaving
// adapter cannot take the chain down.
func speakSafely(ctx context.Context, p tts.Provider, req tts.SpeakRequest) (speech tts.Speech, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tts provider panic: %v", r)
		}
	}()
	return p.Speak(ctx, req)
}
