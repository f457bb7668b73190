package httpserver

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Leks2000/NinyMark/internal/platform/version"
)

func (s *Server) registerHealthRoutes() {
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/version", s.handleVersion)
	s.echo.GET("/api/errors/last", s.handleLastError)
}

// handleLastError drains the session's last-error surface. Reading clears
// it, so a polling client sees each error at most once.
func (s *Server) handleLastError(c echo.Context) error {
	lastErr := s.session.LastError()
	if lastErr == nil {
		return c.NoContent(http.StatusNoContent)
	}
	if err := c.JSON(http.StatusOK, lastErr.ToResponse()); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleLiveness(c echo.Context) error {
	uptime := time.Since(s.startTime).Seconds()

	response := map[string]any{
		"status": "ok",
		"uptime": uptime,
	}
	if err := c.JSON(http.StatusOK, response); err != nil {
		return fmt.Errorf("failed to write liveness response: %w", err)
	}
	return nil
}

// handleReadiness reports the daemon and its processing service. The daemon
// stays ready while the processor is down; the flag lets the UI degrade.
func (s *Server) handleReadiness(c echo.Context) error {
	response := map[string]any{
		"status":       "ready",
		"processor_up": s.session.ProcessorUp(),
		"clients":      s.hub.ClientCount(),
	}
	if err := c.JSON(http.StatusOK, response); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleVersion(c echo.Context) error {
	if err := c.JSON(http.StatusOK, version.Get()); err != nil {
		return fmt.Errorf("failed to write version response: %w", err)
	}
	return nil
}
