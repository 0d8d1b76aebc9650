package handlers

import (
	"net/http"
	"time"

	"chat-relay/internal/relay"

	"github.com/gin-gonic/gin"
)

// HealthHandler serves the liveness endpoint with the current
// connection count.
type HealthHandler struct {
	registry *relay.Registry
}

func NewHealthHandler(registry *relay.Registry) *HealthHandler {
	return &HealthHandler{registry: registry}
}

func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":           "WebSocket relay is running",
		"timestamp":        time.Now(),
		"connectedClients": h.registry.Len(),
	})
}
