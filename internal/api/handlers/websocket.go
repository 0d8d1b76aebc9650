package handlers

import (
	"chat-relay/internal/relay"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// WSHandler upgrades HTTP requests into relay connections.
type WSHandler struct {
	hub      *relay.Hub
	router   *relay.Router
	upgrader websocket.Upgrader
}

func NewWSHandler(hub *relay.Hub, router *relay.Router, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		hub:      hub,
		router:   router,
		upgrader: relay.NewUpgrader(allowedOrigins),
	}
}

func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	relay.ServeWS(h.hub, h.router, &h.upgrader, c.Writer, c.Request)
}
