package middleware

import (
	"net/http"
	"strings"

	"github.com/JackBerck/guyub-rukun-sub001/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Context keys set by AuthMiddleware
const (
	ContextClaims = "claims"
	ContextUserID = "user_id"
)

// TokenCookie is the HTTP-only cookie holding the access token
const TokenCookie = "token"

// AuthMiddleware accepts the token from the Authorization header, the
// token cookie, or a token query parameter (browsers cannot set headers
// on websocket upgrades).
func AuthMiddleware(tokens *utils.TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := extractToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "authentication required",
			})
			return
		}

		claims, err := tokens.Parse(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid or expired token",
			})
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextClaims, claims)

		c.Next()
	}
}

func extractToken(c *gin.Context) (string, bool) {
	if header := c.GetHeader("Authorization"); header != "" {
		token, found := strings.CutPrefix(header, "Bearer ")
		return token, found && token != ""
	}
	if cookie, err := c.Cookie(TokenCookie); err == nil && cookie != "" {
		return cookie, true
	}
	if token := c.Query("token"); token != "" {
		return token, true
	}
	return "", false
}

// ClaimsFrom returns the claims stored by AuthMiddleware
func ClaimsFrom(c *gin.Context) (*utils.Claims, bool) {
	v, exists := c.Get(ContextClaims)
	if !exists {
		return nil, false
	}
	claims, ok := v.(*utils.Claims)
	return claims, ok
}

// UserIDFrom returns the authenticated user's id
func UserIDFrom(c *gin.Context) (uuid.UUID, bool) {
	v, exists := c.Get(ContextUserID)
	if !exists {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}
