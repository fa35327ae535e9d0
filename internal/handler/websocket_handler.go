package handler

import (
	"net/http"
	"slices"

	"github.com/JackBerck/guyub-rukun-sub001/internal/middleware"
	"github.com/JackBerck/guyub-rukun-sub001/internal/realtime"
	"github.com/JackBerck/guyub-rukun-sub001/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type WebSocketHandler struct {
	hub      *realtime.Hub
	upgrader websocket.Upgrader
}

// NewWebSocketHandler accepts upgrades from allowedOrigins only.
// An empty list allows every origin.
func NewWebSocketHandler(hub *realtime.Hub, allowedOrigins []string) *WebSocketHandler {
	return &WebSocketHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || len(allowedOrigins) == 0 || slices.Contains(allowedOrigins, origin)
			},
		},
	}
}

// GET /api/ws
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Log.Warn("Failed to upgrade connection",
			zap.String("user_id", claims.UserID.String()),
			zap.Error(err),
		)
		return
	}

	session := realtime.Session{
		UserID: claims.UserID,
		Name:   claims.Name,
	}
	if claims.ExpiresAt != nil {
		session.ExpiresAt = claims.ExpiresAt.Time
	}

	h.hub.Serve(c.Request.Context(), conn, session)
}
