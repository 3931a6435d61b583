package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/hkuriyama/hanako/internal/store"
)

func pathID(c echo.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id < 1 {
		return 0, false
	}
	return id, true
}

// handleListSessions returns all sessions, newest first.
// GET /api/sessions
func (s *Server) handleListSessions(c echo.Context) error {
	sessions, err := s.store.ListSessions(c.Request().Context())
	if err != nil {
		slog.Error("list sessions failed", "error", err)
		return errJSON(c, http.StatusInternalServerError, "failed to list sessions")
	}
	return c.JSON(http.StatusOK, map[string]any{"sessions": sessions})
}

type sessionRequest struct {
	Title string `json:"title"`
}

// handleCreateSession creates a new conversation thread.
// POST /api/sessions
func (s *Server) handleCreateSession(c echo.Context) error {
	var req sessionRequest
	if err := c.Bind(&req); err != nil {
		return errJSON(c, http.StatusBadRequest, "invalid request body")
	}
	sess, err := s.store.CreateSession(c.Request().Context(), req.Title)
	if err != nil {
		slog.Error("create session failed", "error", err)
		return errJSON(c, http.StatusInternalServerError, "failed to create session")
	}
	return c.JSON(http.StatusOK, sess)
}

// handleRenameSession updates a session title.
// PUT /api/sessions/:id
func (s *Server) handleRenameSession(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return errJSON(c, http.StatusBadRequest, "invalid session id")
	}
	var req sessionRequest
	if err := c.Bind(&req); err != nil {
		return errJSON(c, http.StatusBadRequest, "invalid request body")
	}
	err := s.store.RenameSession(c.Request().Context(), id, req.Title)
	if errors.Is(err, store.ErrSessionNotFound) {
		return errJSON(c, http.StatusNotFound, "session not found")
	}
	if err != nil {
		slog.Error("rename session failed", "error", err)
		return errJSON(c, http.StatusInternalServerError, "failed to rename session")
	}
	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}

// handleDeleteSession removes a session and its messages.
// DELETE /api/sessions/:id
func (s *Server) handleDeleteSession(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return errJSON(c, http.StatusBadRequest, "invalid session id")
	}
	err := s.store.DeleteSession(c.Request().Context(), id)
	if errors.Is(err, store.ErrSessionNotFound) {
		return errJSON(c, http.StatusNotFound, "session not found")
	}
	if err != nil {
		slog.Error("delete session failed", "error", err)
		return errJSON(c, http.StatusInternalServerError, "failed to delete session")
	}
	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}

// handleSessionMessages returns a session's full history.
// GET /api/sessions/:id/messages
func (s *Server) handleSessionMessages(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return errJSON(c, http.StatusBadRequest, "invalid session id")
	}
	msgs, err := s.store.Messages(c.Request().Context(), id)
	if err != nil {
		slog.Error("load messages failed", "error", err)
		return errJSON(c, http.StatusInternalServerError, "failed to load messages")
	}
	return c.JSON(http.StatusOK, map[string]any{"messages": msgs})
}
