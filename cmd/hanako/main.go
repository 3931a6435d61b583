// Command hanako is the entry point for the hanako companion server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/hkuriyama/hanako/internal/config"
	"github.com/hkuriyama/hanako/internal/httpapi"
	"github.com/hkuriyama/hanako/internal/observe"
	"github.com/hkuriyama/hanako/internal/orchestrator"
	"github.com/hkuriyama/hanako/internal/registry"
	"github.com/hkuriyama/hanako/internal/resilience"
	"github.com/hkuriyama/hanako/internal/store"
	"github.com/hkuriyama/hanako/internal/store/memstore"
	"github.com/hkuriyama/hanako/internal/store/postgres"
	"github.com/hkuriyama/hanako/pkg/audio"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "hanako.yaml", "path to the YAML configuration file (created with defaults when missing)")
	flag.Parse()

	// ── Configuration store ───────────────────────────────────────────────────
	cfgStore, err := config.OpenStore(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hanako: %v\n", err)
		return 1
	}
	cfg := cfgStore.Snapshot()

	// ── Logger ────────────────────────────────────────────────────────────────
	slog.SetDefault(newLogger(cfg.Server.LogLevel))
	slog.Info("hanako starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "hanako"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			slog.Warn("telemetry shutdown", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Session store ─────────────────────────────────────────────────────────
	var sessions store.Store
	if dsn := cfg.Storage.PostgresDSN; dsn != "" {
		pg, err := postgres.New(ctx, dsn)
		if err != nil {
			slog.Error("failed to connect to postgres", "err", err)
			return 1
		}
		defer pg.Close()
		sessions = pg
		slog.Info("using postgres session store")
	} else {
		sessions = memstore.New()
		slog.Warn("storage.postgres_dsn is empty — sessions are in-memory and lost on restart")
	}

	// ── Audio sink and providers ──────────────────────────────────────────────
	sink, err := audio.NewSink(cfg.Storage.AudioDir)
	if err != nil {
		slog.Error("failed to create audio directory", "err", err)
		return 1
	}
	reg := registry.New(sink)
	speech := resilience.NewSpeechChain(reg.TTS, resilience.BreakerConfig{})
	orch := orchestrator.New(cfgStore, sessions, reg.LLM, speech,
		orchestrator.WithMetrics(metrics))

	preflight(cfg, reg)

	// ── HTTP server ───────────────────────────────────────────────────────────
	server := httpapi.New(httpapi.Options{
		Config:  cfgStore,
		Store:   sessions,
		Orch:    orch,
		Reg:     reg,
		Speech:  speech,
		Sink:    sink,
		Metrics: metrics,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start(gctx, cfg.Server.ListenAddr)
	})

	slog.Info("server ready — press Ctrl+C to shut down")
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("server error", "err", err)
		return 1
	}
	slog.Info("shutdown complete")
	return 0
}

// preflight resolves the configured providers once at startup so obvious
// misconfiguration shows up in the log immediately instead of on the first
// request. Failures are warnings: the config can be fixed at runtime via the
// API.
func preflight(cfg *config.Config, reg *registry.Registry) {
	if _, err := reg.LLM(cfg.LLM); err != nil {
		slog.Warn("llm provider not usable yet", "provider", cfg.LLM.Provider, "err", err)
	} else {
		slog.Info("llm provider configured", "provider", cfg.LLM.Provider, "model", cfg.LLM.Model)
	}
	if _, err := reg.TTS(cfg.TTS, ""); err != nil {
		slog.Warn("tts provider not usable yet", "provider", cfg.TTS.Provider, "err", err)
	} else {
		slog.Info("tts provider configured",
			"provider", cfg.TTS.Provider, "fallback_chain", cfg.TTS.FallbackChain)
	}
	p, err := reg.ASR(cfg.ASR)
	switch {
	case err != nil:
		slog.Warn("asr provider not usable yet", "provider", cfg.ASR.Provider, "err", err)
	case p == nil:
		slog.Info("asr disabled")
	default:
		slog.Info("asr provider configured", "provider", cfg.ASR.Provider)
	}
}

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
