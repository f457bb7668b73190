package broadcast

import (
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
)

const (
	sendBufferSize = 64
	writeDeadline  = 10 * time.Second
	pingInterval   = 30 * time.Second
	pongDeadline   = 60 * time.Second
)

// clientWriter owns a single WebSocket connection. All frames go out through
// its goroutine, never directly from the hub.
type clientWriter struct {
	conn        *websocket.Conn
	clock       clockwork.Clock
	sendChannel chan []byte
	stopChannel chan string
	done        chan struct{}
}

func newClientWriter(conn *websocket.Conn, clock clockwork.Clock) *clientWriter {
	cw := &clientWriter{
		conn:        conn,
		clock:       clock,
		sendChannel: make(chan []byte, sendBufferSize),
		stopChannel: make(chan string, 1),
		done:        make(chan struct{}),
	}
	cw.configurePongHandler()
	go cw.run()
	return cw
}

// stop terminates the writer without a close handshake.
func (cw *clientWriter) stop() {
	select {
	case cw.stopChannel <- "":
	default:
	}
	<-cw.done
}

// stopGraceful sends a close frame with the given reason before closing.
func (cw *clientWriter) stopGraceful(reason string) {
	select {
	case cw.stopChannel <- reason:
	default:
	}
	<-cw.done
}

func (cw *clientWriter) run() {
	defer close(cw.done)
	defer cw.conn.Close()

	ticker := cw.clock.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case data := <-cw.sendChannel:
			cw.updateWriteDeadline()
			if err := cw.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				slog.Debug("Client write failed", "error", err)
				return
			}

		case <-ticker.Chan():
			cw.updateWriteDeadline()
			if err := cw.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				slog.Debug("Client ping failed", "error", err)
				return
			}

		case reason := <-cw.stopChannel:
			if reason != "" {
				message := websocket.FormatCloseMessage(websocket.CloseGoingAway, reason)
				cw.updateWriteDeadline()
				if err := cw.conn.WriteMessage(websocket.CloseMessage, message); err != nil {
					slog.Debug("Client close frame failed", "error", err)
				}
			}
			return
		}
	}
}

func (cw *clientWriter) configurePongHandler() {
	cw.updateReadDeadline()
	cw.conn.SetPongHandler(func(string) error {
		cw.updateReadDeadline()
		return nil
	})
}

func (cw *clientWriter) updateWriteDeadline() {
	_ = cw.conn.SetWriteDeadline(cw.clock.Now().Add(writeDeadline))
}

func (cw *clientWriter) updateReadDeadline() {
	_ = cw.conn.SetReadDeadline(cw.clock.Now().Add(pongDeadline))
}
