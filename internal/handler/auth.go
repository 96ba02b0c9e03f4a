package handler

import (
	"net/http"

	"attendance-cloud/internal/auth"
	"attendance-cloud/internal/model"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type AuthHandler struct {
	TokenConfig auth.TokenConfig
	Logger      zerolog.Logger
}

type customTokenBody struct {
	Token string `json:"token"`
}

// SessionResponse is returned by both sign-in endpoints.
type SessionResponse struct {
	Token     string `json:"token"`
	UID       string `json:"uid"`
	Anonymous bool   `json:"anonymous"`
}

func sessionResponse(s *model.Session) SessionResponse {
	return SessionResponse{Token: s.Token, UID: s.UID, Anonymous: s.Anonymous}
}

func (h *AuthHandler) Anonymous(c *gin.Context) {
	sess, err := auth.IssueAnonymousSession(h.TokenConfig)
	if err != nil {
		h.Logger.Error().Err(err).Msg("anonymous sign-in failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Token creation failed", "code": "unknown"})
		return
	}
	h.Logger.Info().Str("uid", sess.UID).Msg("anonymous sign-in")
	c.JSON(http.StatusOK, sessionResponse(sess))
}

func (h *AuthHandler) CustomToken(c *gin.Context) {
	var body customTokenBody
	if err := c.ShouldBindJSON(&body); err != nil || body.Token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "code": "invalid-argument"})
		return
	}

	sess, err := auth.ExchangeCustomToken(body.Token, h.TokenConfig)
	if err != nil {
		h.Logger.Warn().Err(err).Msg("custom token rejected")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid custom token", "code": "permission-denied"})
		return
	}
	h.Logger.Info().Str("uid", sess.UID).Msg("custom token sign-in")
	c.JSON(http.StatusOK, sessionResponse(sess))
}
