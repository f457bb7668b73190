package httpserver

import (
	"log/slog"

	"github.com/labstack/echo/v4"
)

// handleWebSocket upgrades the connection and attaches it to the event hub.
// The read loop only drains control frames; clients talk to the daemon over
// the HTTP API and listen here.
func (s *Server) handleWebSocket(c echo.Context) error {
	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Warn("WebSocket upgrade failed", "error", err)
		return nil
	}

	if err := s.hub.Register(conn); err != nil {
		slog.Warn("WebSocket registration rejected", "error", err)
		return nil
	}

	go func() {
		defer s.hub.Unregister(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	return nil
}
