// handlers_health.go - Health check handlers
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// HealthHandlerImpl implements the HealthHandler interface
type HealthHandlerImpl struct {
	version  string
	backend  string
	sessions SessionManager
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(version, backendURL string, sessions SessionManager) HealthHandler {
	return &HealthHandlerImpl{
		version:  version,
		backend:  backendURL,
		sessions: sessions,
	}
}

// HandleHealth returns server health status
func (h *HealthHandlerImpl) HandleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"version":  h.version,
		"backend":  h.backend,
		"sessions": h.sessions.Count(),
	})
}
