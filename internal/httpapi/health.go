package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

// healthClient probes the LLM backend with a short timeout so a dead backend
// cannot hang the healthcheck.
var healthClient = &http.Client{Timeout: 5 * time.Second}

// handleHealthcheck reports server liveness and whether the configured LLM
// endpoint answers its /models listing. A degraded LLM still returns 200 —
// the server itself is up; the payload says what is not.
// GET /api/healthcheck
func (s *Server) handleHealthcheck(c echo.Context) error {
	cfg := s.cfg.Snapshot()
	payload := map[string]any{
		"status":       "ok",
		"llm_provider": cfg.LLM.Provider,
		"llm":          "unconfigured",
	}

	if cfg.LLM.Endpoint != "" {
		url := strings.TrimRight(cfg.LLM.Endpoint, "/") + "/models"
		req, err := http.NewRequestWithContext(c.Request().Context(), http.MethodGet, url, nil)
		if err == nil {
			if cfg.LLM.APIKey != "" {
				req.Header.Set("Authorization", "Bearer "+cfg.LLM.APIKey)
			}
			resp, err := healthClient.Do(req)
			if err != nil {
				payload["llm"] = "unreachable"
				payload["llm_error"] = err.Error()
			} else {
				resp.Body.Close()
				if resp.StatusCode == http.StatusOK {
					payload["llm"] = "reachable"
				} else {
					payload["llm"] = "unreachable"
					payload["llm_error"] = resp.Status
				}
			}
		}
	}

	return c.JSON(http.StatusOK, payload)
}
