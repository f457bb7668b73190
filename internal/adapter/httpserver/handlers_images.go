package httpserver

import (
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Leks2000/NinyMark/internal/domain"
	apperrors "github.com/Leks2000/NinyMark/internal/errors"
	"github.com/Leks2000/NinyMark/internal/imagestore"
)

// maxUploadBytes caps one multipart upload request.
const maxUploadBytes = 256 << 20

func (s *Server) registerImageRoutes() {
	s.echo.POST("/api/images", s.handleAddImages)
	s.echo.GET("/api/images", s.handleListImages)
	s.echo.DELETE("/api/images/:id", s.handleRemoveImage)
	s.echo.DELETE("/api/images", s.handleClearImages)
	s.echo.GET("/api/images/:id/faces", s.handleDetectFaces)
	s.echo.POST("/api/images/:id/faces", s.handleRefreshFaces)
	s.echo.GET("/previews/:id", s.handlePreview)
}

// imageView is the client-facing shape of one stored image.
type imageView struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	PreviewURL  string `json:"preview_url"`
}

func toImageViews(records []*domain.ImageRecord) []imageView {
	views := make([]imageView, 0, len(records))
	for _, r := range records {
		views = append(views, imageView{
			ID:          r.ID.String(),
			DisplayName: r.DisplayName,
			PreviewURL:  r.Preview.URL(),
		})
	}
	return views
}

func (s *Server) handleAddImages(c echo.Context) error {
	c.Request().Body = http.MaxBytesReader(c.Response(), c.Request().Body, maxUploadBytes)

	form, err := c.MultipartForm()
	if err != nil {
		return apperrors.ValidationError("expected multipart form with files")
	}

	fileHeaders := form.File["files"]
	if len(fileHeaders) == 0 {
		return apperrors.ValidationError("no files provided")
	}

	files := make([]imagestore.File, 0, len(fileHeaders))
	for _, fh := range fileHeaders {
		src, err := fh.Open()
		if err != nil {
			return apperrors.InternalError("failed to open uploaded file", err).WithContext("file", fh.Filename)
		}
		data, err := io.ReadAll(src)
		src.Close()
		if err != nil {
			return apperrors.InternalError("failed to read uploaded file", err).WithContext("file", fh.Filename)
		}
		files = append(files, imagestore.File{Name: fh.Filename, Data: data})
	}

	accepted := s.session.AddFiles(files)

	response := map[string]any{
		"accepted": toImageViews(accepted),
		"rejected": len(files) - len(accepted),
	}
	if err := c.JSON(http.StatusCreated, response); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleListImages(c echo.Context) error {
	if err := c.JSON(http.StatusOK, toImageViews(s.session.Images())); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleRemoveImage(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperrors.ValidationError("invalid image id").WithContext("id", c.Param("id"))
	}

	s.session.RemoveImage(id)
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleClearImages(c echo.Context) error {
	s.session.ClearImages()
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleDetectFaces(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperrors.ValidationError("invalid image id").WithContext("id", c.Param("id"))
	}

	detection, err := s.session.DetectFaces(c.Request().Context(), id)
	if err != nil {
		return err
	}

	if err := c.JSON(http.StatusOK, detection); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

// handleRefreshFaces recomputes the detection, replacing the cached result.
func (s *Server) handleRefreshFaces(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperrors.ValidationError("invalid image id").WithContext("id", c.Param("id"))
	}

	detection, err := s.session.RefreshFaces(c.Request().Context(), id)
	if err != nil {
		return err
	}

	if err := c.JSON(http.StatusOK, detection); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handlePreview(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperrors.ValidationError("invalid preview id").WithContext("id", c.Param("id"))
	}

	data, ok := s.session.PreviewBytes(id)
	if !ok {
		return apperrors.NotFoundError("preview not found").WithContext("id", id.String())
	}

	return c.Blob(http.StatusOK, http.DetectContentType(data), data)
}
