package httpserver

import (
	"fmt"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	apperrors "github.com/Leks2000/NinyMark/internal/errors"
)

func (s *Server) registerPresetRoutes() {
	s.echo.GET("/api/presets", s.handleListPresets)
	s.echo.POST("/api/presets", s.handleSavePreset)
	s.echo.POST("/api/presets/:name/apply", s.handleApplyPreset)
	s.echo.DELETE("/api/presets/:name", s.handleDeletePreset)

	s.echo.GET("/api/fonts", s.handleListFonts)
	s.echo.POST("/api/fonts", s.handleUploadFont)
}

type savePresetRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleListPresets(c echo.Context) error {
	presets, err := s.session.ListPresets(c.Request().Context())
	if err != nil {
		return err
	}

	if err := c.JSON(http.StatusOK, presets); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleSavePreset(c echo.Context) error {
	var req savePresetRequest
	if err := c.Bind(&req); err != nil || req.Name == "" {
		return apperrors.ValidationError("preset name is required")
	}

	if err := s.session.SavePreset(c.Request().Context(), req.Name); err != nil {
		return err
	}
	return c.NoContent(http.StatusCreated)
}

func (s *Server) handleApplyPreset(c echo.Context) error {
	name := c.Param("name")
	if name == "" {
		return apperrors.ValidationError("preset name is required")
	}

	if err := s.session.ApplyPreset(c.Request().Context(), name); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleDeletePreset(c echo.Context) error {
	name := c.Param("name")
	if name == "" {
		return apperrors.ValidationError("preset name is required")
	}

	if err := s.session.DeletePreset(c.Request().Context(), name); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleListFonts(c echo.Context) error {
	fonts, err := s.session.ListFonts(c.Request().Context())
	if err != nil {
		return err
	}

	if err := c.JSON(http.StatusOK, fonts); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleUploadFont(c echo.Context) error {
	file, err := c.FormFile("file")
	if err != nil {
		return apperrors.ValidationError("expected multipart form with a font file")
	}

	src, err := file.Open()
	if err != nil {
		return apperrors.InternalError("failed to open uploaded font", err)
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return apperrors.InternalError("failed to read uploaded font", err)
	}

	path, err := s.session.UploadFont(c.Request().Context(), file.Filename, data)
	if err != nil {
		return err
	}

	if err := c.JSON(http.StatusCreated, map[string]string{"path": path}); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}
