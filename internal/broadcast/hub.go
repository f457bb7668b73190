package broadcast

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/Leks2000/NinyMark/internal/domain"
	"github.com/Leks2000/NinyMark/internal/metrics"
)

const (
	commandTimeout = 5 * time.Second
	stopTimeout    = 10 * time.Second
)

// hubCmd is the command interface for the Hub actor.
type hubCmd interface{ isHubCmd() }

type baseHubCmd struct{}

func (baseHubCmd) isHubCmd() {}

type registerCmd struct {
	baseHubCmd
	connection   *websocket.Conn
	errorChannel chan error
}

type unregisterCmd struct {
	baseHubCmd
	connection *websocket.Conn
}

type publishCmd struct {
	baseHubCmd
	event domain.Event
}

type clientCountCmd struct {
	baseHubCmd
	replyChannel chan int
}

type stopCmd struct {
	baseHubCmd
}

// Hub delivers session events to all connected presentation clients.
type Hub struct {
	cmdCh      chan hubCmd
	clock      clockwork.Clock
	clients    map[*websocket.Conn]*clientWriter
	maxClients int
	done       chan struct{}
}

var _ domain.EventPublisher = (*Hub)(nil)

// NewHub creates a hub and starts its actor goroutine.
// maxClients limits concurrent presentation clients.
func NewHub(clock clockwork.Clock, maxClients int) *Hub {
	h := &Hub{
		cmdCh:      make(chan hubCmd, 256),
		clock:      clock,
		clients:    make(map[*websocket.Conn]*clientWriter),
		maxClients: maxClients,
		done:       make(chan struct{}),
	}
	go h.run()
	return h
}

// Publish queues an event for delivery to every connected client.
// It never blocks the session: when the command channel is full the event
// is dropped and counted.
func (h *Hub) Publish(event domain.Event) {
	select {
	case h.cmdCh <- publishCmd{event: event}:
	default:
		metrics.EventsDroppedTotal.Inc()
		slog.Warn("Event dropped, hub command channel full", "kind", event.Kind)
	}
}

// Register attaches a client connection.
func (h *Hub) Register(conn *websocket.Conn) error {
	errCh := make(chan error, 1)
	h.cmdCh <- registerCmd{connection: conn, errorChannel: errCh}

	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case err := <-errCh:
		return err
	case <-timer.Chan():
		return fmt.Errorf("register command timed out after %v", commandTimeout)
	}
}

// Unregister detaches a client connection.
func (h *Hub) Unregister(conn *websocket.Conn) {
	h.cmdCh <- unregisterCmd{connection: conn}
}

// ClientCount returns the number of connected clients, -1 on timeout.
func (h *Hub) ClientCount() int {
	replyCh := make(chan int, 1)
	h.cmdCh <- clientCountCmd{replyChannel: replyCh}

	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case count := <-replyCh:
		return count
	case <-timer.Chan():
		slog.Warn("ClientCount timed out", "timeout", commandTimeout)
		return -1
	}
}

// Stop closes every client connection and shuts the actor down.
func (h *Hub) Stop() {
	h.cmdCh <- stopCmd{}

	timer := h.clock.NewTimer(stopTimeout)
	defer timer.Stop()

	select {
	case <-h.done:
		slog.Info("Event hub stopped")
	case <-timer.Chan():
		slog.Warn("Event hub stop timeout exceeded", "timeout", stopTimeout)
	}
}

func (h *Hub) run() {
	defer close(h.done)

	for cmd := range h.cmdCh {
		switch c := cmd.(type) {
		case registerCmd:
			h.handleRegister(c)
		case unregisterCmd:
			h.handleUnregister(c.connection)
		case publishCmd:
			h.handlePublish(c.event)
		case clientCountCmd:
			c.replyChannel <- len(h.clients)
		case stopCmd:
			h.handleStop()
			return
		default:
			slog.Warn("Event hub received unknown command type", "command_type", fmt.Sprintf("%T", cmd))
		}
	}
}

func (h *Hub) handleRegister(c registerCmd) {
	if len(h.clients) >= h.maxClients {
		slog.Warn("Rejecting client: max clients reached", "max_clients", h.maxClients)
		c.connection.Close()
		c.errorChannel <- fmt.Errorf("max clients (%d) reached", h.maxClients)
		return
	}

	h.clients[c.connection] = newClientWriter(c.connection, h.clock)
	metrics.ConnectedClients.Set(float64(len(h.clients)))

	slog.Debug("Client registered", "total_clients", len(h.clients))
	c.errorChannel <- nil
}

func (h *Hub) handleUnregister(conn *websocket.Conn) {
	cw, exists := h.clients[conn]
	if !exists {
		return
	}

	cw.stop()
	delete(h.clients, conn)
	metrics.ConnectedClients.Set(float64(len(h.clients)))

	slog.Debug("Client unregistered", "remaining_clients", len(h.clients))
}

func (h *Hub) handlePublish(event domain.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		slog.Error("Failed to marshal event", "kind", event.Kind, "error", err)
		return
	}

	var slow []*websocket.Conn
	for conn, writer := range h.clients {
		select {
		case writer.sendChannel <- data:
		default:
			slow = append(slow, conn)
		}
	}

	for _, conn := range slow {
		slog.Warn("Disconnecting slow client")
		metrics.EventsDroppedTotal.Inc()
		h.handleUnregister(conn)
	}
}

func (h *Hub) handleStop() {
	slog.Info("Event hub shutting down", "clients", len(h.clients))

	for conn, cw := range h.clients {
		cw.stopGraceful("session shutting down")
		delete(h.clients, conn)
	}
	metrics.ConnectedClients.Set(0)
}
