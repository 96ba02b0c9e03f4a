package middleware

import (
	"net/http"
	"strings"

	"attendance-cloud/internal/auth"
	"github.com/gin-gonic/gin"
)

const (
	userIDContextKey    = "userID"
	anonymousContextKey = "anonymous"
)

func UserIDFromContext(c *gin.Context) (string, bool) {
	userID, ok := c.Get(userIDContextKey)
	if !ok {
		return "", false
	}
	value, ok := userID.(string)
	return value, ok && value != ""
}

func AnonymousFromContext(c *gin.Context) bool {
	return c.GetBool(anonymousContextKey)
}

// BearerToken returns the token of an "Authorization: Bearer <token>" header.
func BearerToken(c *gin.Context) (string, bool) {
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// RequireAuth accepts session tokens only; custom sign-in tokens must be
// exchanged first.
func RequireAuth(cfg auth.TokenConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := BearerToken(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token", "code": "permission-denied"})
			c.Abort()
			return
		}

		claims, err := auth.VerifySessionToken(token, cfg)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token", "code": "permission-denied"})
			c.Abort()
			return
		}

		c.Set(userIDContextKey, claims.UserID)
		c.Set(anonymousContextKey, claims.Anonymous)
		c.Next()
	}
}
