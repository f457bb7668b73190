package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/Leks2000/NinyMark/internal/domain"
	apperrors "github.com/Leks2000/NinyMark/internal/errors"
	"github.com/Leks2000/NinyMark/internal/imagestore"
	"github.com/Leks2000/NinyMark/internal/placement"
	"github.com/Leks2000/NinyMark/internal/platform/config"
)

// sessionService is the slice of the session controller the HTTP surface needs.
type sessionService interface {
	AddFiles(files []imagestore.File) []*domain.ImageRecord
	RemoveImage(id uuid.UUID)
	ClearImages()
	Images() []*domain.ImageRecord
	PreviewBytes(id uuid.UUID) ([]byte, bool)

	Settings() domain.Snapshot
	UpdateSettings(patch domain.SnapshotPatch) domain.Snapshot
	Undo() bool
	Redo() bool
	CanUndo() bool
	CanRedo() bool
	ResetDefaults()

	Placement() *placement.Controller
	CommitPlacement(x, y float64)

	ProcessAll(export bool) error
	CancelProcessing()
	Results() []domain.ProcessedResult
	Result(id uuid.UUID) *domain.ProcessedResult
	LastError() *apperrors.Error

	DetectFaces(ctx context.Context, id uuid.UUID) (*domain.FaceDetection, error)
	RefreshFaces(ctx context.Context, id uuid.UUID) (*domain.FaceDetection, error)
	Verify(ctx context.Context, imageB64 string) (*domain.VerifyResult, error)

	ListPresets(ctx context.Context) ([]domain.Preset, error)
	SavePreset(ctx context.Context, name string) error
	ApplyPreset(ctx context.Context, name string) error
	DeletePreset(ctx context.Context, name string) error

	ListFonts(ctx context.Context) ([]domain.FontInfo, error)
	UploadFont(ctx context.Context, filename string, data []byte) (string, error)

	Config(ctx context.Context) (*domain.ProcessorConfig, error)
	UpdateConfig(ctx context.Context, update domain.ProcessorConfigUpdate) error

	ProcessorUp() bool
}

// clientHub is the WebSocket fan-out the server attaches clients to.
type clientHub interface {
	Register(conn *websocket.Conn) error
	Unregister(conn *websocket.Conn)
	ClientCount() int
}

type Server struct {
	echo   *echo.Echo
	config *config.Config

	session sessionService
	hub     clientHub

	upgrader  websocket.Upgrader
	startTime time.Time
}

func NewServer(cfg *config.Config, session sessionService, hub clientHub) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		echo:    e,
		config:  cfg,
		session: session,
		hub:     hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// The daemon serves the local UI only.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		startTime: time.Now(),
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}
