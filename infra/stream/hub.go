// Package stream broadcasts job events to WebSocket clients.
package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kilianp07/shopflow/core/events"
	"github.com/kilianp07/shopflow/infra/logger"
)

const (
	sendBuffer   = 256
	writeTimeout = 5 * time.Second
)

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub manages WebSocket clients and fans JSON messages out to them. Slow
// clients lose messages instead of blocking the broadcaster.
type Hub struct {
	mu       sync.Mutex
	clients  map[*client]struct{}
	closed   bool
	dropped  atomic.Uint64
	upgrader websocket.Upgrader
	log      logger.Logger
}

// NewHub creates an empty Hub accepting any origin.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		log: logger.New("stream"),
	}
}

// ServeHTTP upgrades the request and registers the connection.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Errorf("websocket upgrade: %v", err)
		return
	}
	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	go h.writePump(c)
	go h.readPump(c)
}

// writePump owns all writes to the connection.
func (h *Hub) writePump(c *client) {
	defer func() { _ = c.conn.Close() }()
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.log.Warnf("websocket write: %v", err)
			h.remove(c)
			for range c.send {
			}
			return
		}
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// readPump discards client messages and detects disconnects.
func (h *Hub) readPump(c *client) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			h.remove(c)
			return
		}
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Dropped returns how many messages were skipped for slow clients.
func (h *Hub) Dropped() uint64 { return h.dropped.Load() }

// WaitClients blocks until at least n clients are connected.
func (h *Hub) WaitClients(ctx context.Context, n int) error {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for h.Clients() < n {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// Broadcast sends v, encoded as JSON, to every client.
func (h *Hub) Broadcast(v any) error {
	msg, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.dropped.Add(1)
		}
	}
	return nil
}

// Run broadcasts events until the channel is closed or ctx is done.
func (h *Hub) Run(ctx context.Context, evs <-chan events.JobEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-evs:
			if !ok {
				return
			}
			if err := h.Broadcast(ev); err != nil {
				h.log.Errorf("broadcast %s: %v", ev.Type, err)
			}
		}
	}
}

// Close disconnects every client after its pending messages are written.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}
