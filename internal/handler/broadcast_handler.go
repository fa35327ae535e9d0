package handler

import (
	"net/http"

	"github.com/JackBerck/guyub-rukun-sub001/internal/notifier"
	"github.com/gin-gonic/gin"
)

type BroadcastHandler struct{}

func NewBroadcastHandler() *BroadcastHandler {
	return &BroadcastHandler{}
}

type ChannelAuthRequest struct {
	ChannelName string `json:"channel_name" form:"channel_name" binding:"required"`
	SocketID    string `json:"socket_id" form:"socket_id"`
}

// POST /api/broadcasting/auth
// Lets an external realtime gateway ask whether the caller may join a channel.
func (h *BroadcastHandler) Authorize(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req ChannelAuthRequest
	if err := c.ShouldBind(&req); err != nil {
		respondBindError(c, err)
		return
	}

	if err := notifier.AuthorizeChannel(userID, req.ChannelName); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"channel": req.ChannelName,
		"user_id": userID,
	})
}
