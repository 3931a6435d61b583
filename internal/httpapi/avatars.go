package httpapi

import (
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"
)

// avatarExtensions lists the accepted 3D model formats.
var avatarExtensions = map[string]bool{
	".vrm":  true,
	".glb":  true,
	".gltf": true,
}

// safeAvatarName rejects names that could escape the avatar directory and
// names with an unsupported extension.
func safeAvatarName(name string) bool {
	if name == "" || name != filepath.Base(name) {
		return false
	}
	if strings.Contains(name, "..") || strings.ContainsAny(name, "/\\") {
		return false
	}
	return avatarExtensions[strings.ToLower(filepath.Ext(name))]
}

func (s *Server) avatarDir() string {
	return s.cfg.Snapshot().Storage.AvatarDir
}

// handleListAvatars lists uploaded avatar model files.
// GET /api/avatars
func (s *Server) handleListAvatars(c echo.Context) error {
	entries, err := os.ReadDir(s.avatarDir())
	if err != nil {
		if os.IsNotExist(err) {
			return c.JSON(http.StatusOK, map[string]any{"avatars": []string{}})
		}
		slog.Error("list avatars failed", "error", err)
		return errJSON(c, http.StatusInternalServerError, "failed to list avatars")
	}
	names := []string{}
	for _, e := range entries {
		if !e.IsDir() && avatarExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			names = append(names, e.Name())
		}
	}
	return c.JSON(http.StatusOK, map[string]any{"avatars": names})
}

// handleUploadAvatar stores an uploaded model file.
// POST /api/avatars (multipart: file)
func (s *Server) handleUploadAvatar(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return errJSON(c, http.StatusBadRequest, "file is required")
	}
	name := filepath.Base(fh.Filename)
	if !safeAvatarName(name) {
		return errJSON(c, http.StatusBadRequest, "file must be a .vrm, .glb, or .gltf model")
	}

	dir := s.avatarDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		slog.Error("create avatar dir failed", "error", err)
		return errJSON(c, http.StatusInternalServerError, "failed to store avatar")
	}

	src, err := fh.Open()
	if err != nil {
		return errJSON(c, http.StatusBadRequest, "cannot read upload")
	}
	defer src.Close()

	dst, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		slog.Error("create avatar file failed", "error", err)
		return errJSON(c, http.StatusInternalServerError, "failed to store avatar")
	}
	defer dst.Close()
	if _, err := io.Copy(dst, src); err != nil {
		slog.Error("write avatar file failed", "error", err)
		return errJSON(c, http.StatusInternalServerError, "failed to store avatar")
	}

	return c.JSON(http.StatusOK, map[string]string{
		"name": name,
		"url":  "/storage/avatars/" + name,
	})
}

// handleDeleteAvatar removes an uploaded model file.
// DELETE /api/avatars/:name
func (s *Server) handleDeleteAvatar(c echo.Context) error {
	name := c.Param("name")
	if !safeAvatarName(name) {
		return errJSON(c, http.StatusBadRequest, "invalid avatar name")
	}
	if err := os.Remove(filepath.Join(s.avatarDir(), name)); err != nil {
		if os.IsNotExist(err) {
			return errJSON(c, http.StatusNotFound, "avatar not found")
		}
		slog.Error("delete avatar failed", "error", err)
		return errJSON(c, http.StatusInternalServerError, "failed to delete avatar")
	}
	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}
