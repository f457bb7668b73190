package httpserver

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Leks2000/NinyMark/internal/domain"
	apperrors "github.com/Leks2000/NinyMark/internal/errors"
)

func (s *Server) registerSettingsRoutes() {
	s.echo.GET("/api/settings", s.handleGetSettings)
	s.echo.PATCH("/api/settings", s.handleUpdateSettings)
	s.echo.POST("/api/settings/undo", s.handleUndo)
	s.echo.POST("/api/settings/redo", s.handleRedo)
	s.echo.POST("/api/settings/reset", s.handleResetSettings)
}

// settingsView is the settings response shape, shared by every settings route.
type settingsView struct {
	Settings domain.Snapshot `json:"settings"`
	CanUndo  bool            `json:"can_undo"`
	CanRedo  bool            `json:"can_redo"`
}

func (s *Server) settingsView() settingsView {
	return settingsView{
		Settings: s.session.Settings(),
		CanUndo:  s.session.CanUndo(),
		CanRedo:  s.session.CanRedo(),
	}
}

func (s *Server) handleGetSettings(c echo.Context) error {
	if err := c.JSON(http.StatusOK, s.settingsView()); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleUpdateSettings(c echo.Context) error {
	var patch domain.SnapshotPatch
	if err := c.Bind(&patch); err != nil {
		return apperrors.ValidationError("invalid settings patch")
	}

	s.session.UpdateSettings(patch)

	if err := c.JSON(http.StatusOK, s.settingsView()); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleUndo(c echo.Context) error {
	applied := s.session.Undo()

	response := map[string]any{"applied": applied, "state": s.settingsView()}
	if err := c.JSON(http.StatusOK, response); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleRedo(c echo.Context) error {
	applied := s.session.Redo()

	response := map[string]any{"applied": applied, "state": s.settingsView()}
	if err := c.JSON(http.StatusOK, response); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleResetSettings(c echo.Context) error {
	s.session.ResetDefaults()

	if err := c.JSON(http.StatusOK, s.settingsView()); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}
