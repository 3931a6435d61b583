package httpapi

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hkuriyama/hanako/internal/store"
)

// characterRequest is the payload for character create and update. Pointer
// fields distinguish "absent" from "set to empty" on update.
type characterRequest struct {
	Name              *string   `json:"name"`
	SystemPrompt      *string   `json:"system_prompt"`
	AvatarURL         *string   `json:"avatar_url"`
	VoiceID           *string   `json:"voice_id"`
	TTSProvider       *string   `json:"tts_provider"`
	PersonalityTraits *[]string `json:"personality_traits"`
}

// handleListCharacters returns all characters.
// GET /api/characters
func (s *Server) handleListCharacters(c echo.Context) error {
	chars, err := s.store.ListCharacters(c.Request().Context())
	if err != nil {
		slog.Error("list characters failed", "error", err)
		return errJSON(c, http.StatusInternalServerError, "failed to list characters")
	}
	return c.JSON(http.StatusOK, map[string]any{"characters": chars})
}

// handleCreateCharacter creates a persona.
// POST /api/characters
func (s *Server) handleCreateCharacter(c echo.Context) error {
	var req characterRequest
	if err := c.Bind(&req); err != nil {
		return errJSON(c, http.StatusBadRequest, "invalid request body")
	}
	if req.Name == nil || *req.Name == "" {
		return errJSON(c, http.StatusBadRequest, "name is required")
	}

	ch := store.Character{Name: *req.Name}
	if req.SystemPrompt != nil {
		ch.SystemPrompt = *req.SystemPrompt
	}
	if req.AvatarURL != nil {
		ch.AvatarURL = *req.AvatarURL
	}
	if req.VoiceID != nil {
		ch.VoiceID = *req.VoiceID
	}
	if req.TTSProvider != nil {
		ch.TTSProvider = *req.TTSProvider
	}
	if req.PersonalityTraits != nil {
		ch.PersonalityTraits = *req.PersonalityTraits
	}

	created, err := s.store.CreateCharacter(c.Request().Context(), ch)
	if err != nil {
		slog.Error("create character failed", "error", err)
		return errJSON(c, http.StatusInternalServerError, "failed to create character")
	}
	return c.JSON(http.StatusOK, created)
}

// handleGetCharacter returns one character.
// GET /api/characters/:id
func (s *Server) handleGetCharacter(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return errJSON(c, http.StatusBadRequest, "invalid character id")
	}
	ch, err := s.store.GetCharacter(c.Request().Context(), id)
	if errors.Is(err, store.ErrCharacterNotFound) {
		return errJSON(c, http.StatusNotFound, "character not found")
	}
	if err != nil {
		slog.Error("get character failed", "error", err)
		return errJSON(c, http.StatusInternalServerError, "failed to load character")
	}
	return c.JSON(http.StatusOK, ch)
}

// handleUpdateCharacter applies a partial edit.
// PUT /api/characters/:id
func (s *Server) handleUpdateCharacter(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return errJSON(c, http.StatusBadRequest, "invalid character id")
	}
	var req characterRequest
	if err := c.Bind(&req); err != nil {
		return errJSON(c, http.StatusBadRequest, "invalid request body")
	}

	err := s.store.UpdateCharacter(c.Request().Context(), id, store.CharacterUpdate{
		Name:              req.Name,
		SystemPrompt:      req.SystemPrompt,
		AvatarURL:         req.AvatarURL,
		VoiceID:           req.VoiceID,
		TTSProvider:       req.TTSProvider,
		PersonalityTraits: req.PersonalityTraits,
	})
	if errors.Is(err, store.ErrCharacterNotFound) {
		return errJSON(c, http.StatusNotFound, "character not found")
	}
	if err != nil {
		slog.Error("update character failed", "error", err)
		return errJSON(c, http.StatusInternalServerError, "failed to update character")
	}
	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}

// handleDeleteCharacter removes a persona. The default character is
// protected here, at the API boundary.
// DELETE /api/characters/:id
func (s *Server) handleDeleteCharacter(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return errJSON(c, http.StatusBadRequest, "invalid character id")
	}
	if id == store.DefaultCharacterID {
		return errJSON(c, http.StatusForbidden, "the default character cannot be deleted")
	}
	err := s.store.DeleteCharacter(c.Request().Context(), id)
	if errors.Is(err, store.ErrCharacterNotFound) {
		return errJSON(c, http.StatusNotFound, "character not found")
	}
	if err != nil {
		slog.Error("delete character failed", "error", err)
		return errJSON(c, http.StatusInternalServerError, "failed to delete character")
	}
	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}
