package routes

import (
	"chat-relay/internal/api/handlers"
	"chat-relay/internal/api/middleware"
	"chat-relay/internal/auth"
	"chat-relay/internal/config"
	"chat-relay/internal/relay"

	"github.com/gin-gonic/gin"
)

type Router struct {
	engine        *gin.Engine
	healthHandler *handlers.HealthHandler
	verifyHandler *handlers.VerifyHandler
	wsHandler     *handlers.WSHandler
}

// NewRouter assembles the auxiliary HTTP surface around the relay core.
// verifier is nil in the no-auth variant; the verification endpoint is
// then not registered at all.
func NewRouter(hub *relay.Hub, relayRouter *relay.Router, verifier auth.TokenVerifier, cfg *config.Config) *Router {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	engine.Use(gin.Recovery())
	engine.Use(middleware.CORS(cfg.Server.AllowedOrigins))
	engine.Use(middleware.LogAPI())

	r := &Router{
		engine:        engine,
		healthHandler: handlers.NewHealthHandler(hub.Registry()),
		wsHandler:     handlers.NewWSHandler(hub, relayRouter, cfg.Server.AllowedOrigins),
	}
	if verifier != nil {
		r.verifyHandler = handlers.NewVerifyHandler(verifier)
	}
	return r
}

func (r *Router) SetupRoutes() {
	r.engine.GET("/health", r.healthHandler.Health)
	r.engine.GET("/ws", r.wsHandler.HandleWebSocket)

	if r.verifyHandler != nil {
		r.engine.POST("/auth/verify", r.verifyHandler.VerifyToken)
	}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
