package httpserver

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Leks2000/NinyMark/internal/domain"
	apperrors "github.com/Leks2000/NinyMark/internal/errors"
)

func (s *Server) registerConfigRoutes() {
	s.echo.GET("/api/config", s.handleGetConfig)
	s.echo.POST("/api/config", s.handleUpdateConfig)
}

func (s *Server) handleGetConfig(c echo.Context) error {
	cfg, err := s.session.Config(c.Request().Context())
	if err != nil {
		return err
	}

	if err := c.JSON(http.StatusOK, cfg); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

// handleUpdateConfig forwards a partial update of the invisible-watermark
// settings; absent fields stay unchanged.
func (s *Server) handleUpdateConfig(c echo.Context) error {
	var update domain.ProcessorConfigUpdate
	if err := c.Bind(&update); err != nil {
		return apperrors.ValidationError("invalid config request")
	}
	if update.WatermarkString == nil && update.EmbedInvisible == nil {
		return apperrors.ValidationError("config update requires watermark_string or embed_invisible")
	}

	if err := s.session.UpdateConfig(c.Request().Context(), update); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
