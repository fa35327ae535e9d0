package handler

import (
	"github.com/JackBerck/guyub-rukun-sub001/internal/middleware"
	"github.com/JackBerck/guyub-rukun-sub001/internal/utils"
	"github.com/gin-gonic/gin"
)

// Routes groups every handler the API serves
type Routes struct {
	Auth      *AuthHandler
	Messages  *MessageHandler
	Chats     *ChatHandler
	Broadcast *BroadcastHandler
	WebSocket *WebSocketHandler
	Health    *HealthHandler

	Tokens *utils.TokenIssuer

	// Optional, applied to message sending and login
	SendLimiter *middleware.RateLimiter
	AuthLimiter *middleware.RateLimiter
}

func limit(rl *middleware.RateLimiter) gin.HandlersChain {
	if rl == nil {
		return nil
	}
	return gin.HandlersChain{rl.Middleware()}
}

func Register(router *gin.Engine, r Routes) {
	useJSONFieldNames()

	if r.Health != nil {
		router.GET("/healthz", r.Health.Health)
	}

	// Public routes
	auth := router.Group("/api/auth", limit(r.AuthLimiter)...)
	{
		auth.POST("/register", r.Auth.Register)
		auth.POST("/login", r.Auth.Login)
		auth.POST("/logout", r.Auth.Logout)
	}

	// Protected routes (require JWT)
	protected := router.Group("/api")
	protected.Use(middleware.AuthMiddleware(r.Tokens))
	{
		protected.GET("/me", r.Auth.Me)

		protected.POST("/messages", append(limit(r.SendLimiter), r.Messages.Send)...)
		protected.GET("/messages/unread", r.Messages.Unread)
		protected.GET("/messages/unread/:userId", r.Messages.UnreadFrom)

		protected.GET("/chats", r.Chats.List)
		protected.GET("/chats/:userId", r.Chats.Open)
		protected.GET("/chats/:userId/history", r.Chats.History)
		protected.POST("/chats/:userId/read", r.Chats.MarkRead)

		protected.POST("/broadcasting/auth", r.Broadcast.Authorize)

		if r.WebSocket != nil {
			protected.GET("/ws", r.WebSocket.HandleWebSocket)
		}
	}
}
