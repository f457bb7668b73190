package httpserver

import (
	"encoding/base64"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	apperrors "github.com/Leks2000/NinyMark/internal/errors"
)

func (s *Server) registerProcessRoutes() {
	s.echo.POST("/api/process", s.handleProcess)
	s.echo.DELETE("/api/process", s.handleCancelProcess)
	s.echo.GET("/api/results", s.handleResults)
	s.echo.GET("/results/:id", s.handleResultPayload)
	s.echo.POST("/api/verify", s.handleVerify)
}

type processRequest struct {
	Export bool `json:"export"`
}

func (s *Server) handleProcess(c echo.Context) error {
	var req processRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid process request")
	}

	if err := s.session.ProcessAll(req.Export); err != nil {
		return err
	}

	// Completion arrives through progress and results events on /ws.
	return c.NoContent(http.StatusAccepted)
}

func (s *Server) handleCancelProcess(c echo.Context) error {
	s.session.CancelProcessing()
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleResults(c echo.Context) error {
	if err := c.JSON(http.StatusOK, s.session.Results()); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

// handleResultPayload serves the watermarked bytes for one source image,
// so clients can download a finished result without going through the
// JSON results listing.
func (s *Server) handleResultPayload(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperrors.ValidationError("invalid result id").WithContext("id", c.Param("id"))
	}

	result := s.session.Result(id)
	if result == nil {
		return apperrors.NotFoundError("result not found").WithContext("id", id.String())
	}

	data, err := base64.StdEncoding.DecodeString(result.ResultPayload)
	if err != nil {
		return apperrors.InternalError("result payload is not valid base64", err)
	}

	c.Response().Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.DisplayName))
	return c.Blob(http.StatusOK, http.DetectContentType(data), data)
}

func (s *Server) handleVerify(c echo.Context) error {
	file, err := c.FormFile("file")
	if err != nil {
		return apperrors.ValidationError("expected multipart form with a file")
	}

	src, err := file.Open()
	if err != nil {
		return apperrors.InternalError("failed to open uploaded file", err)
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return apperrors.InternalError("failed to read uploaded file", err)
	}

	result, err := s.session.Verify(c.Request().Context(), base64.StdEncoding.EncodeToString(data))
	if err != nil {
		return err
	}

	if err := c.JSON(http.StatusOK, result); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}
