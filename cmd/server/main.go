package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"chat-relay/internal/api/routes"
	"chat-relay/internal/auth"
	"chat-relay/internal/config"
	"chat-relay/internal/relay"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting chat relay", "authRequired", cfg.Auth.Required)

	var verifier auth.TokenVerifier
	if cfg.Auth.Required {
		if cfg.Auth.JWTSecret == "" {
			slog.Error("RELAY_JWT_SECRET must be set when authentication is required")
			os.Exit(1)
		}
		verifier = auth.NewJWTVerifier(cfg.Auth.JWTSecret)
	}

	registry := relay.NewRegistry(cfg.Auth.Required)
	hub := relay.NewHub(registry, slog.Default())
	relayRouter := relay.NewRouter(hub, verifier, cfg.Auth.VerifyTimeout, slog.Default())

	router := routes.NewRouter(hub, relayRouter, verifier, cfg)
	router.SetupRoutes()

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		slog.Info("Server starting", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Server shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	hub.Stop()

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	slog.Info("Server stopped")
}
