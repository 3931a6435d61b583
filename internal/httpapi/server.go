// Package httpapi exposes the companion server over HTTP: the chat turn
// endpoint, standalone TTS and ASR endpoints, session and character CRUD,
// avatar management, runtime configuration, and health/metrics.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hkuriyama/hanako/internal/config"
	"github.com/hkuriyama/hanako/internal/observe"
	"github.com/hkuriyama/hanako/internal/orchestrator"
	"github.com/hkuriyama/hanako/internal/registry"
	"github.com/hkuriyama/hanako/internal/resilience"
	"github.com/hkuriyama/hanako/internal/store"
	"github.com/hkuriyama/hanako/pkg/audio"
)

// shutdownTimeout bounds graceful shutdown so a stuck connection cannot hold
// the process open.
const shutdownTimeout = 10 * time.Second

// Server wires the orchestrator, stores, and provider plumbing into an echo
// instance. Use [New] then [Server.Start].
type Server struct {
	echo    *echo.Echo
	cfg     *config.Store
	store   store.Store
	orch    *orchestrator.Orchestrator
	reg     *registry.Registry
	speech  *resilience.SpeechChain
	sink    *audio.Sink
	metrics *observe.Metrics
}

// Options carries the dependencies for [New]. All fields except Metrics are
// required.
type Options struct {
	Config  *config.Store
	Store   store.Store
	Orch    *orchestrator.Orchestrator
	Reg     *registry.Registry
	Speech  *resilience.SpeechChain
	Sink    *audio.Sink
	Metrics *observe.Metrics
}

// New builds the server and registers all routes.
func New(opts Options) *Server {
	s := &Server{
		cfg:     opts.Config,
		store:   opts.Store,
		orch:    opts.Orch,
		reg:     opts.Reg,
		speech:  opts.Speech,
		sink:    opts.Sink,
		metrics: opts.Metrics,
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(observe.EchoMiddleware(s.metrics))

	api := e.Group("/api")

	api.POST("/chat", s.handleChat)
	api.POST("/tts", s.handleTTS)
	api.POST("/asr", s.handleASR)

	api.GET("/config", s.handleGetConfig)
	api.PUT("/config", s.handleMergeConfig)

	api.GET("/sessions", s.handleListSessions)
	api.POST("/sessions", s.handleCreateSession)
	api.PUT("/sessions/:id", s.handleRenameSession)
	api.DELETE("/sessions/:id", s.handleDeleteSession)
	api.GET("/sessions/:id/messages", s.handleSessionMessages)

	api.GET("/characters", s.handleListCharacters)
	api.POST("/characters", s.handleCreateCharacter)
	api.GET("/characters/:id", s.handleGetCharacter)
	api.PUT("/characters/:id", s.handleUpdateCharacter)
	api.DELETE("/characters/:id", s.handleDeleteCharacter)

	api.GET("/avatars", s.handleListAvatars)
	api.POST("/avatars", s.handleUploadAvatar)
	api.DELETE("/avatars/:name", s.handleDeleteAvatar)

	api.GET("/healthcheck", s.handleHealthcheck)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Serve synthesised audio and uploaded avatars as static files.
	snapshot := s.cfg.Snapshot()
	e.Static("/storage/audio", snapshot.Storage.AudioDir)
	e.Static("/storage/avatars", snapshot.Storage.AvatarDir)

	s.echo = e
	return s
}

// Start listens on addr until the context is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	slog.Info("http server listening", "addr", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return s.echo.Shutdown(shutdownCtx)
	}
}

// Handler exposes the underlying handler for tests.
func (s *Server) Handler() http.Handler { return s.echo }

// errJSON writes a uniform error payload.
func errJSON(c echo.Context, code int, msg string) error {
	return c.JSON(code, map[string]string{"error": msg})
}
