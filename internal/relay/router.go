package relay

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"chat-relay/internal/auth"
)

const (
	msgInvalidFormat = "Invalid message format"
	msgAuthRequired  = "Authentication required. Please sign in to send messages."
	msgAuthFailed    = "Authentication failed: invalid or expired token"
	msgAuthRejected  = "Authentication not accepted in the current state"

	defaultVerifyTimeout = 10 * time.Second
)

// Router dispatches decoded inbound frames to their handlers. Side
// effects are confined to registry mutation, broadcast calls, and at
// most one direct reply to the originating client.
type Router struct {
	hub      *Hub
	registry *Registry
	verifier auth.TokenVerifier

	// Upper bound on credential verification, so a hung identity
	// provider fails the attempt instead of pinning the session in
	// the authenticating state.
	verifyTimeout time.Duration

	logger *slog.Logger
}

// NewRouter wires the dispatch table. verifier may be nil only when the
// registry does not require authentication; the authenticate frame then
// falls through to the unknown-type path, as in the legacy protocol.
func NewRouter(hub *Hub, verifier auth.TokenVerifier, verifyTimeout time.Duration, logger *slog.Logger) *Router {
	if verifyTimeout <= 0 {
		verifyTimeout = defaultVerifyTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		hub:           hub,
		registry:      hub.Registry(),
		verifier:      verifier,
		verifyTimeout: verifyTimeout,
		logger:        logger,
	}
}

// HandleInbound parses one raw frame from the client and dispatches it.
// A parse failure earns the sender an error reply and nothing else; the
// connection stays open.
func (rt *Router) HandleInbound(c *Client, raw []byte) {
	rt.registry.Touch(c)

	var frame InboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		rt.logger.Debug("Failed to parse inbound frame", "clientId", c.ID(), "error", err)
		rt.reply(c, NewErrorFrame(msgInvalidFormat))
		return
	}

	switch frame.Type {
	case FrameAuthenticate:
		if rt.registry.AuthRequired() && rt.verifier != nil {
			rt.handleAuthenticate(c, frame.IDToken)
			return
		}
		// No identity provider configured: same silent drop as any
		// unknown type in the legacy variant.
		rt.logger.Warn("Unknown message type", "clientId", c.ID(), "type", frame.Type)

	case FrameChatMessage:
		rt.handleChatMessage(c, frame)

	case FrameTypingStart:
		rt.handleTyping(c, true)

	case FrameTypingStop:
		rt.handleTyping(c, false)

	case FrameUserInfo:
		rt.handleUserInfo(c, frame)

	default:
		rt.logger.Warn("Unknown message type", "clientId", c.ID(), "type", frame.Type)
	}
}

func (rt *Router) handleAuthenticate(c *Client, idToken string) {
	if err := rt.registry.BeginAuthentication(c); err != nil {
		rt.logger.Debug("Authenticate refused", "clientId", c.ID(), "error", err)
		rt.reply(c, NewAuthErrorFrame(msgAuthRejected))
		return
	}

	// Verification suspends only this connection's transition; the
	// registry and every other connection keep moving.
	go rt.verify(c, idToken)
}

func (rt *Router) verify(c *Client, idToken string) {
	ctx, cancel := context.WithTimeout(context.Background(), rt.verifyTimeout)
	defer cancel()

	identity, err := rt.verifier.Verify(ctx, idToken)
	if err != nil {
		rt.logger.Info("Authentication failed", "clientId", c.ID(), "error", err)
		rt.registry.FailAuthentication(c)
		rt.reply(c, NewAuthErrorFrame(msgAuthFailed))
		return
	}

	if err := rt.registry.CompleteAuthentication(c, identity); err != nil {
		// The connection closed while verification was in flight.
		rt.logger.Debug("Discarding verification result", "clientId", c.ID(), "error", err)
		return
	}

	rt.logger.Info("Client authenticated", "clientId", c.ID(), "uid", identity.UID)
	rt.reply(c, NewAuthSuccessFrame(identity))
	rt.hub.PublishPresence()
}

func (rt *Router) handleChatMessage(c *Client, frame InboundFrame) {
	conn, err := rt.registry.Lookup(c)
	if err != nil {
		return
	}
	if !rt.registry.Eligible(c) {
		rt.reply(c, NewErrorFrame(msgAuthRequired))
		return
	}

	// Sender fields come from the server-held identity; any
	// client-declared sender is ignored.
	name, email, uid := senderIdentity(conn)

	id := rt.hub.NextMessageID()
	rt.logger.Info("Broadcasting chat message", "clientId", c.ID(), "messageId", id)
	rt.hub.BroadcastToEligible(NewChatFrame(id, name, email, frame.Message, c.ID(), uid))
}

func (rt *Router) handleTyping(c *Client, isTyping bool) {
	conn, err := rt.registry.Lookup(c)
	if err != nil {
		return
	}
	if !rt.registry.Eligible(c) {
		rt.reply(c, NewErrorFrame(msgAuthRequired))
		return
	}

	name, _, _ := senderIdentity(conn)
	rt.hub.BroadcastToEligibleExcept(NewTypingStatusFrame(c.ID(), name, isTyping), c)
}

func (rt *Router) handleUserInfo(c *Client, frame InboundFrame) {
	if frame.UserInfo == nil {
		rt.logger.Debug("user_info frame without userInfo payload", "clientId", c.ID())
		return
	}
	if err := rt.registry.SetProfileName(c, frame.UserInfo.Name); err != nil {
		return
	}
	rt.logger.Info("Updated user info", "clientId", c.ID(), "name", frame.UserInfo.Name)
}

func (rt *Router) reply(c *Client, frame any) {
	if err := c.sendFrame(frame); err != nil {
		rt.logger.Debug("Failed to reply to client", "clientId", c.ID(), "error", err)
	}
}

// senderIdentity resolves the display name, email and uid the relay
// attributes to a connection's outbound events: the verified identity
// once bound, otherwise the profile override of the no-auth variant.
func senderIdentity(conn Connection) (name, email, uid string) {
	if conn.Identity != nil {
		return conn.Identity.Name, conn.Identity.Email, conn.Identity.UID
	}
	if conn.ProfileName != "" {
		return conn.ProfileName, "", ""
	}
	return "Anonymous", "", ""
}
