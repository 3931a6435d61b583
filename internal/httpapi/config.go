package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// handleGetConfig returns the current configuration.
// GET /api/config
func (s *Server) handleGetConfig(c echo.Context) error {
	return c.JSON(http.StatusOK, s.cfg.Snapshot())
}

// handleMergeConfig deep-merges a partial configuration into the stored one
// and persists the result. Unknown keys and invalid values reject the whole
// update without mutating anything.
// PUT /api/config
func (s *Server) handleMergeConfig(c echo.Context) error {
	var partial map[string]any
	if err := c.Bind(&partial); err != nil {
		return errJSON(c, http.StatusBadRequest, "invalid request body")
	}
	merged, err := s.cfg.Merge(partial)
	if err != nil {
		return errJSON(c, http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, merged)
}
