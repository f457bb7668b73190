package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	apperrors "github.com/Leks2000/NinyMark/internal/errors"
	"github.com/Leks2000/NinyMark/internal/placement"
)

func (s *Server) registerPlacementRoutes(limiter echo.MiddlewareFunc) {
	s.echo.PUT("/api/placement/mode", s.handlePlacementMode)
	s.echo.POST("/api/placement/drag/start", s.handleDragStart, limiter)
	s.echo.POST("/api/placement/drag/move", s.handleDragMove, limiter)
	s.echo.POST("/api/placement/drag/end", s.handleDragEnd, limiter)
	s.echo.POST("/api/placement/click", s.handlePlacementClick, limiter)
	s.echo.POST("/api/placement", s.handlePlacementCommit, limiter)
}

type placementCommitRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type placementModeRequest struct {
	Enabled    bool `json:"enabled"`
	SnapToGrid bool `json:"snap_to_grid"`
}

type pointerRequest struct {
	Surface struct {
		Width  float64 `json:"width"`
		Height float64 `json:"height"`
	} `json:"surface"`
	Point struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	} `json:"point"`
	Offset struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	} `json:"offset"`
}

func (s *Server) handlePlacementMode(c echo.Context) error {
	var req placementModeRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid placement mode request")
	}

	ctrl := s.session.Placement()
	ctrl.SetEnabled(req.Enabled)
	ctrl.SetSnapToGrid(req.SnapToGrid)

	return c.NoContent(http.StatusNoContent)
}

// handlePlacementCommit places the watermark at an already normalized
// position, skipping the pointer translation the drag handlers do.
func (s *Server) handlePlacementCommit(c echo.Context) error {
	var req placementCommitRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid placement request")
	}
	if req.X < 0 || req.X > 1 || req.Y < 0 || req.Y > 1 {
		return apperrors.ValidationError("placement coordinates must be within [0, 1]").
			WithContext("x", req.X).
			WithContext("y", req.Y)
	}

	s.session.CommitPlacement(req.X, req.Y)
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleDragStart(c echo.Context) error {
	var req pointerRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid pointer request")
	}

	s.session.Placement().BeginDrag(
		placement.Surface{Width: req.Surface.Width, Height: req.Surface.Height},
		placement.Point{X: req.Point.X, Y: req.Point.Y},
		placement.Point{X: req.Offset.X, Y: req.Offset.Y},
	)
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleDragMove(c echo.Context) error {
	var req pointerRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid pointer request")
	}

	s.session.Placement().MoveTo(placement.Point{X: req.Point.X, Y: req.Point.Y})
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleDragEnd(c echo.Context) error {
	s.session.Placement().EndDrag()
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handlePlacementClick(c echo.Context) error {
	var req pointerRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid pointer request")
	}

	s.session.Placement().Click(
		placement.Surface{Width: req.Surface.Width, Height: req.Surface.Height},
		placement.Point{X: req.Point.X, Y: req.Point.Y},
	)
	return c.NoContent(http.StatusNoContent)
}
