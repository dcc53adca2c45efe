package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/erazemk/cargocheck/internal/export"
	"github.com/erazemk/cargocheck/internal/model"
)

// Export event types sent over /api/exports/events.
const (
	EventConnected      = "connected"
	EventExportStarted  = "export.started"
	EventExportProgress = "export.progress"
	EventExportDone     = "export.completed"
	EventExportFailed   = "export.failed"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	sendBuffer = 64
)

// Envelope wraps every event message.
type Envelope struct {
	Type      string `json:"type"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// Hub fans export progress out to websocket clients.
type Hub struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[string]*client
}

// NewHub creates a Hub accepting connections from allowedOrigins ("*" for any).
func NewHub(allowedOrigins []string) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || slices.Contains(allowedOrigins, "*") || slices.Contains(allowedOrigins, origin)
			},
		},
		clients: make(map[string]*client),
	}
}

// PublishProgress broadcasts an export progress change. It never blocks;
// clients that fall behind are dropped.
func (h *Hub) PublishProgress(p export.Progress) {
	typ := EventExportProgress
	switch p.State {
	case model.ExportPreparing:
		typ = EventExportStarted
	case model.ExportCompleted:
		typ = EventExportDone
	case model.ExportFailed:
		typ = EventExportFailed
	}
	h.broadcast(Envelope{Type: typ, Data: p, Timestamp: time.Now().Unix()})
}

func (h *Hub) broadcast(env Envelope) {
	msg, err := json.Marshal(env)
	if err != nil {
		slog.Error("encoding event", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		select {
		case c.send <- msg:
		default:
			close(c.send)
			delete(h.clients, id)
			slog.Warn("event client too slow, dropped", "client", id)
		}
	}
}

// ServeHTTP upgrades the request and streams events until the client leaves.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an error response.
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &client{id: uuid.New().String(), conn: conn, send: make(chan []byte, sendBuffer)}
	hello, _ := json.Marshal(Envelope{Type: EventConnected, Timestamp: time.Now().Unix()})
	c.send <- hello

	h.mu.Lock()
	h.clients[c.id] = c
	n := len(h.clients)
	h.mu.Unlock()
	slog.Info("event client connected", "client", c.id, "clients", n)

	go c.writePump()
	c.readPump()

	h.mu.Lock()
	if _, ok := h.clients[c.id]; ok {
		delete(h.clients, c.id)
		close(c.send)
	}
	h.mu.Unlock()
	slog.Info("event client disconnected", "client", c.id)
}

// readPump discards client messages and returns when the connection closes.
func (c *client) readPump() {
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("event client read error", "client", c.id, "error", err)
			}
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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
