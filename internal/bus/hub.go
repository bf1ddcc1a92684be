// Package bus pushes activation-change events to connected UI surfaces over
// WebSocket. The engine publishes a status snapshot after each successful
// activate/deactivate; the login screen subscribes instead of polling.
package bus

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Message types pushed to clients.
const (
	TypeConnection        = "connection"
	TypeActivationChanged = "activation_changed"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 8
)

// Envelope is the wire format for every pushed message.
type Envelope struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Hub maintains the set of connected clients and broadcasts envelopes to
// them. Slow clients are dropped rather than allowed to block a broadcast.
type Hub struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	send chan Envelope
}

// NewHub creates a hub. The upgrader accepts local UI origins only; the
// engine never listens on a public interface.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger: logger.With(slog.String("component", "event_hub")),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// Same-host UI only; the server binds to loopback.
				return true
			},
		},
		clients: make(map[*client]struct{}),
	}
}

// ServeWS upgrades an HTTP request and registers the connection.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed",
			slog.String("remote", r.RemoteAddr),
			slog.String("error", err.Error()))
		return
	}

	c := &client{conn: conn, send: make(chan Envelope, sendBufferSize)}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug("client connected",
		slog.String("remote", r.RemoteAddr),
		slog.Int("clients", count))

	c.send <- Envelope{Type: TypeConnection, Timestamp: time.Now().UTC()}

	go h.writeLoop(c)
	go h.readLoop(c)
}

// Broadcast sends an envelope of the given type to every connected client.
func (h *Hub) Broadcast(messageType string, data interface{}) {
	envelope := Envelope{Type: messageType, Data: data, Timestamp: time.Now().UTC()}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- envelope:
		default:
			// Client is not draining its queue; closing the channel ends
			// its write loop and the read loop cleans up.
			go h.drop(c)
		}
	}
}

// ClientCount reports the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[*client]struct{})
	h.mu.Unlock()

	for _, c := range clients {
		c.conn.Close()
	}
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	_, present := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()

	if present {
		c.conn.Close()
		h.logger.Debug("client dropped")
	}
}

// readLoop discards inbound frames; the hub is push-only. It exists to
// process control frames and to notice closed connections.
func (h *Hub) readLoop(c *client) {
	defer h.drop(c)

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case envelope, ok := <-c.send:
			if !ok {
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			payload, err := json.Marshal(envelope)
			if err != nil {
				h.logger.Warn("dropping unmarshalable event",
					slog.String("type", envelope.Type),
					slog.String("error", err.Error()))
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
