// Package relay implements the real-time message relay core: the
// connection registry, per-connection session lifecycle, broadcast
// engine and inbound message router.
package relay

import (
	"encoding/json"
	"log/slog"
	"sync/atomic"
)

// Hub is the broadcast engine. It recomputes the recipient set against
// the registry on every pass and delivers best-effort: a recipient that
// is closed or backed up is skipped, never waited on.
type Hub struct {
	registry *Registry
	logger   *slog.Logger

	// Process-wide chat message sequence. Incremented exactly once per
	// accepted send, before fan-out, so every recipient sees the same id.
	messageID atomic.Uint64
}

func NewHub(registry *Registry, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		registry: registry,
		logger:   logger,
	}
}

// Registry exposes the hub's connection registry to the HTTP surface.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// NextMessageID reserves the next chat message id. Ids start at 1 and
// are never reused within the process lifetime.
func (h *Hub) NextMessageID() uint64 {
	return h.messageID.Add(1)
}

// Register adds the client to the registry, sends its welcome frame and
// publishes the updated presence count.
func (h *Hub) Register(c *Client) Connection {
	conn := h.registry.Register(c)
	h.logger.Info("Client connected", "clientId", conn.ID)

	if err := c.sendFrame(NewConnectionFrame(conn.ID)); err != nil {
		h.logger.Debug("Failed to send welcome frame", "clientId", conn.ID, "error", err)
	}
	h.PublishPresence()
	return conn
}

// Disconnect removes the client from the registry and publishes the
// updated presence count. Safe to call more than once.
func (h *Hub) Disconnect(c *Client) {
	removed, _ := h.registry.Remove(c)
	if !removed {
		return
	}
	h.logger.Info("Client disconnected", "clientId", c.ID())
	h.PublishPresence()
}

// BroadcastToAll delivers a frame to every open connection regardless
// of authentication. Used for presence counts, which pre-auth UIs show.
func (h *Hub) BroadcastToAll(frame any) {
	h.deliver(h.registry.SnapshotAll(), frame, nil)
}

// BroadcastToEligible delivers a frame to every broadcast-eligible
// connection.
func (h *Hub) BroadcastToEligible(frame any) {
	h.deliver(h.registry.SnapshotEligible(), frame, nil)
}

// BroadcastToEligibleExcept is BroadcastToEligible minus one client, so
// a typer never receives its own typing echo.
func (h *Hub) BroadcastToEligibleExcept(frame any, except *Client) {
	h.deliver(h.registry.SnapshotEligible(), frame, except)
}

// PublishPresence counts the eligible connections and pushes the count
// to every open connection.
func (h *Hub) PublishPresence() {
	count := h.registry.CountEligible()
	h.logger.Debug("Broadcasting user count", "count", count)
	h.BroadcastToAll(NewUserCountFrame(count))
}

func (h *Hub) deliver(targets []*Client, frame any, except *Client) {
	data, err := json.Marshal(frame)
	if err != nil {
		h.logger.Error("Failed to marshal broadcast frame", "error", err)
		return
	}

	delivered := 0
	for _, c := range targets {
		if c == except {
			continue
		}
		if c.enqueue(data) {
			delivered++
		}
	}
	h.logger.Debug("Broadcast delivered", "targets", len(targets), "delivered", delivered)
}

// Stop closes every live connection. Their read pumps then unwind
// through Disconnect as usual.
func (h *Hub) Stop() {
	clients := h.registry.SnapshotAll()
	h.logger.Info("Shutting down client connections", "count", len(clients))

	for _, c := range clients {
		c.close()
		if c.conn != nil {
			c.conn.Close()
		}
	}
}
