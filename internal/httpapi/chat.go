package httpapi

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/hkuriyama/hanako/internal/orchestrator"
	"github.com/hkuriyama/hanako/internal/resilience"
	"github.com/hkuriyama/hanako/pkg/provider/tts"
)

// maxUploadBytes bounds ASR audio uploads (25 MiB, matching the OpenAI
// transcription limit).
const maxUploadBytes = 25 << 20

// handleChat runs one chat turn.
// POST /api/chat
func (s *Server) handleChat(c echo.Context) error {
	var req orchestrator.ChatRequest
	if err := c.Bind(&req); err != nil {
		return errJSON(c, http.StatusBadRequest, "invalid request body")
	}

	resp, err := s.orch.HandleChatTurn(c.Request().Context(), req)
	if err != nil {
		if errors.Is(err, orchestrator.ErrEmptyMessage) {
			return errJSON(c, http.StatusBadRequest, "text is required")
		}
		slog.Error("chat turn failed", "error", err)
		return errJSON(c, http.StatusInternalServerError, "chat turn failed")
	}
	return c.JSON(http.StatusOK, resp)
}

// ttsRequest is the payload for the standalone synthesis endpoint.
type ttsRequest struct {
	Text     string `json:"text"`
	VoiceID  string `json:"voice_id"`
	Provider string `json:"provider"`
}

// handleTTS synthesises speech without a chat turn.
// POST /api/tts
func (s *Server) handleTTS(c echo.Context) error {
	var req ttsRequest
	if err := c.Bind(&req); err != nil {
		return errJSON(c, http.StatusBadRequest, "invalid request body")
	}
	if req.Text == "" {
		return errJSON(c, http.StatusBadRequest, "text is required")
	}

	cfg := s.cfg.Snapshot()
	speech, err := s.speech.Speak(c.Request().Context(), cfg.TTS, req.Provider, tts.SpeakRequest{
		Text:    req.Text,
		VoiceID: req.VoiceID,
	})
	if err != nil {
		if errors.Is(err, resilience.ErrAllFailed) {
			return errJSON(c, http.StatusBadGateway, err.Error())
		}
		slog.Error("tts failed", "error", err)
		return errJSON(c, http.StatusInternalServerError, "synthesis failed")
	}
	return c.JSON(http.StatusOK, speech)
}

// handleASR transcribes an uploaded audio file.
// POST /api/asr (multipart: file, optional language)
func (s *Server) handleASR(c echo.Context) error {
	cfg := s.cfg.Snapshot()
	provider, err := s.reg.ASR(cfg.ASR)
	if err != nil {
		return errJSON(c, http.StatusBadRequest, err.Error())
	}
	if provider == nil {
		return errJSON(c, http.StatusBadRequest, "asr is disabled")
	}

	fh, err := c.FormFile("file")
	if err != nil {
		return errJSON(c, http.StatusBadRequest, "file is required")
	}
	if fh.Size > maxUploadBytes {
		return errJSON(c, http.StatusRequestEntityTooLarge, "audio file too large")
	}
	f, err := fh.Open()
	if err != nil {
		return errJSON(c, http.StatusBadRequest, "cannot read upload")
	}
	defer f.Close()
	audioData, err := io.ReadAll(io.LimitReader(f, maxUploadBytes))
	if err != nil {
		return errJSON(c, http.StatusBadRequest, "cannot read upload")
	}

	start := time.Now()
	result, err := provider.Transcribe(c.Request().Context(), audioData, c.FormValue("language"))
	s.metrics.ASRDuration.Record(c.Request().Context(), time.Since(start).Seconds())
	if err != nil {
		slog.Warn("transcription failed", "provider", cfg.ASR.Provider, "error", err)
		s.metrics.RecordProviderError(c.Request().Context(), cfg.ASR.Provider, "asr")
		return errJSON(c, http.StatusBadGateway, err.Error())
	}
	s.metrics.RecordProviderRequest(c.Request().Context(), cfg.ASR.Provider, "asr", "ok")
	return c.JSON(http.StatusOK, result)
}
