package handlers

import (
	"net/http"

	"chat-relay/internal/auth"

	"github.com/gin-gonic/gin"
)

// VerifyHandler serves one-shot credential verification for callers
// that want a normalized identity without opening a websocket.
type VerifyHandler struct {
	verifier auth.TokenVerifier
}

func NewVerifyHandler(verifier auth.TokenVerifier) *VerifyHandler {
	return &VerifyHandler{verifier: verifier}
}

type verifyRequest struct {
	IDToken string `json:"idToken" binding:"required"`
}

func (h *VerifyHandler) VerifyToken(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "idToken is required"})
		return
	}

	identity, err := h.verifier.Verify(c.Request.Context(), req.IDToken)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired credential"})
		return
	}

	c.JSON(http.StatusOK, identity)
}
