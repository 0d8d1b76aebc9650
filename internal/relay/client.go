package relay

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 4096

	// Outbound frame buffer per connection
	sendBufferSize = 256
)

// Client is the transport-level handle for one websocket connection.
// One read pump and one write pump run per client; everything else
// reaches the connection only through the buffered send channel.
type Client struct {
	id     string
	hub    *Hub
	router *Router
	conn   *websocket.Conn
	send   chan []byte

	ctx    context.Context
	cancel context.CancelFunc

	closed     atomic.Bool
	sendClosed atomic.Bool
}

func newClient(hub *Hub, router *Router, conn *websocket.Conn) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		id:     uuid.New().String(),
		hub:    hub,
		router: router,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		ctx:    ctx,
		cancel: cancel,
	}
}

func (c *Client) ID() string {
	return c.id
}

// close marks the client as closed and cancels its context.
func (c *Client) close() {
	if c.closed.CompareAndSwap(false, true) {
		c.cancel()
	}
}

func (c *Client) closeSend() {
	if c.sendClosed.CompareAndSwap(false, true) {
		close(c.send)
	}
}

// enqueue offers a frame to the client's send buffer without blocking.
// A full buffer drops the client: a reader that slow is not worth
// stalling a broadcast for.
func (c *Client) enqueue(data []byte) (ok bool) {
	// The send channel may be closed concurrently by another failed
	// enqueue; recover keeps a broadcast pass alive.
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()

	if c.closed.Load() || c.sendClosed.Load() {
		return false
	}

	select {
	case c.send <- data:
		return true
	case <-c.ctx.Done():
		return false
	default:
		slog.Warn("Send buffer full, dropping client", "clientId", c.id)
		c.closeSend()
		return false
	}
}

// sendFrame marshals and enqueues a single frame for this client only.
func (c *Client) sendFrame(frame any) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	if !c.enqueue(data) {
		return ErrClientDisconnected
	}
	return nil
}

func (c *Client) readPump() {
	defer func() {
		// Remove from the registry before the next presence broadcast
		// can be computed, then tear the transport down.
		c.hub.Disconnect(c)
		c.close()
		if err := c.conn.Close(); err != nil {
			slog.Debug("Error closing connection", "clientId", c.id, "error", err)
		}
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Error("WebSocket error", "clientId", c.id, "error", err)
			} else {
				slog.Debug("WebSocket connection closed", "clientId", c.id, "error", err)
			}
			return
		}

		c.router.HandleInbound(c, raw)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		// Connection teardown is owned by readPump.
	}()

	for {
		select {
		case message, ok := <-c.send:
			if c.closed.Load() {
				return
			}

			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				slog.Debug("Error writing message", "clientId", c.id, "error", err)
				return
			}

		case <-ticker.C:
			if c.closed.Load() {
				return
			}

			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				slog.Debug("Error sending ping", "clientId", c.id, "error", err)
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

// NewUpgrader builds a websocket upgrader that accepts the configured
// origins, localhost variants, and requests without an Origin header
// (non-browser clients).
func NewUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			for _, allowed := range allowedOrigins {
				if origin == allowed {
					return true
				}
			}
			return strings.Contains(origin, "localhost") || strings.Contains(origin, "127.0.0.1")
		},
	}
}

// ServeWS upgrades an HTTP request, registers the client and starts its
// pumps.
func ServeWS(hub *Hub, router *Router, upgrader *websocket.Upgrader, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade WebSocket connection", "error", err)
		return
	}

	client := newClient(hub, router, conn)
	hub.Register(client)

	go client.writePump()
	go client.readPump()
}
