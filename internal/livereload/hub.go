// Package livereload tells connected browsers which output was rebuilt.
//
// Browsers connect over WebSocket to /livereload and receive one JSON
// message per successful watch mode rebuild:
//
//	{"type":"reload","path":"dist/index.html"}
package livereload

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/conneroisu/torx/internal/logging"
)

const writeTimeout = 5 * time.Second

// Message represents a message sent to the browser
type Message struct {
	Type string `json:"type"`
	Path string `json:"path"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub accepts WebSocket clients and broadcasts reload messages to them.
type Hub struct {
	clients map[*client]struct{}
	closed  bool
	mutex   sync.RWMutex
	logger  logging.Logger
}

// NewHub creates an empty hub.
func NewHub(logger logging.Logger) *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		logger:  logger.WithComponent("livereload"),
	}
}

// ServeHTTP upgrades the request and holds the connection until the client
// goes away or the hub is closed.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:  []string{"*"},
		CompressionMode: websocket.CompressionDisabled,
	})
	if err != nil {
		h.logger.Debug(r.Context(), "WebSocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, 16)}
	if !h.register(c) {
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	defer h.unregister(c)

	h.logger.Debug(r.Context(), "Client connected", "remote", r.RemoteAddr)

	// Clients never send anything; CloseRead handles control frames and
	// cancels ctx once the connection is gone.
	ctx := conn.CloseRead(context.Background())

	for {
		select {
		case <-ctx.Done():
			return
		case message, ok := <-c.send:
			if !ok {
				_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
				return
			}

			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Write(writeCtx, websocket.MessageText, message)
			cancel()
			if err != nil {
				h.logger.Debug(ctx, "WebSocket write failed", "error", err)
				return
			}
		}
	}
}

// Notify broadcasts a reload message for outputPath to every client. Clients
// that cannot keep up are dropped.
func (h *Hub) Notify(ctx context.Context, outputPath string) {
	message, err := json.Marshal(Message{Type: "reload", Path: outputPath})
	if err != nil {
		h.logger.Error(ctx, err, "Encoding reload message failed")
		return
	}

	h.mutex.RLock()
	var slow []*client
	for c := range h.clients {
		select {
		case c.send <- message:
		default:
			slow = append(slow, c)
		}
	}
	count := len(h.clients)
	h.mutex.RUnlock()

	for _, c := range slow {
		h.unregister(c)
	}

	h.logger.Debug(ctx, "Sent reload", "path", outputPath, "clients", count)
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	return len(h.clients)
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) register(c *client) bool {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

func (h *Hub) unregister(c *client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}
