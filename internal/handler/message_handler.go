package handler

import (
	"net/http"

	"github.com/JackBerck/guyub-rukun-sub001/internal/dto"
	"github.com/JackBerck/guyub-rukun-sub001/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type MessageHandler struct {
	messageService *service.MessageService
	unreadService  *service.UnreadService
}

func NewMessageHandler(messageService *service.MessageService, unreadService *service.UnreadService) *MessageHandler {
	return &MessageHandler{
		messageService: messageService,
		unreadService:  unreadService,
	}
}

type SendMessageRequest struct {
	ReceiverID string `json:"receiver_id" binding:"required"`
	Message    string `json:"message"`
}

// POST /api/messages
func (h *MessageHandler) Send(c *gin.Context) {
	senderID, ok := currentUser(c)
	if !ok {
		return
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	receiverID, err := uuid.Parse(req.ReceiverID)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"message": "the given data was invalid",
			"errors":  gin.H{"receiver_id": []string{"receiver does not exist"}},
		})
		return
	}

	msg, err := h.messageService.Send(c.Request.Context(), senderID, receiverID, req.Message)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": dto.NewMessage(msg),
	})
}

// GET /api/messages/unread
func (h *MessageHandler) Unread(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	summary, err := h.unreadService.Summary(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	bySender := make(map[string]int64, len(summary.BySender))
	for id, n := range summary.BySender {
		bySender[id.String()] = n
	}

	c.JSON(http.StatusOK, gin.H{
		"total":     summary.Total,
		"by_sender": bySender,
	})
}

// GET /api/messages/unread/:userId
func (h *MessageHandler) UnreadFrom(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	senderID, ok := pathUserID(c)
	if !ok {
		return
	}

	count, err := h.unreadService.CountFrom(c.Request.Context(), userID, senderID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"fromUserId":  senderID,
		"unreadCount": count,
	})
}
