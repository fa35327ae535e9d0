package handler

import (
	"net/http"
	"strconv"

	"github.com/JackBerck/guyub-rukun-sub001/internal/dto"
	"github.com/JackBerck/guyub-rukun-sub001/internal/models"
	"github.com/JackBerck/guyub-rukun-sub001/internal/service"
	"github.com/gin-gonic/gin"
)

type ChatHandler struct {
	chatService    *service.ChatService
	messageService *service.MessageService
	avatarBaseURL  string
}

func NewChatHandler(chatService *service.ChatService, messageService *service.MessageService, avatarBaseURL string) *ChatHandler {
	return &ChatHandler{
		chatService:    chatService,
		messageService: messageService,
		avatarBaseURL:  avatarBaseURL,
	}
}

// GET /api/chats
func (h *ChatHandler) List(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	summaries, err := h.chatService.ListConversations(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"conversations": dto.NewConversations(summaries, h.avatarBaseURL),
	})
}

// GET /api/chats/:userId
// Opening a conversation marks the counterpart's messages as read.
func (h *ChatHandler) Open(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	counterpartID, ok := pathUserID(c)
	if !ok {
		return
	}
	q, ok := historyQuery(c)
	if !ok {
		return
	}

	page, err := h.chatService.OpenConversation(c.Request.Context(), userID, counterpartID, q)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewHistory(page))
}

// GET /api/chats/:userId/history
// Pages through a conversation without touching read state.
func (h *ChatHandler) History(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	counterpartID, ok := pathUserID(c)
	if !ok {
		return
	}
	q, ok := historyQuery(c)
	if !ok {
		return
	}

	page, err := h.messageService.History(c.Request.Context(), userID, counterpartID, q)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewHistory(page))
}

// POST /api/chats/:userId/read
func (h *ChatHandler) MarkRead(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	senderID, ok := pathUserID(c)
	if !ok {
		return
	}

	changed, err := h.messageService.MarkRead(c.Request.Context(), userID, senderID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"marked": changed})
}

// historyQuery reads ?after=, ?before= and ?limit=, answering 422 on bad values
func historyQuery(c *gin.Context) (models.HistoryQuery, bool) {
	var q models.HistoryQuery

	parse := func(name string) (uint64, bool) {
		raw := c.Query(name)
		if raw == "" {
			return 0, true
		}
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"message": "the given data was invalid",
				"errors":  gin.H{name: []string{name + " must be a positive integer"}},
			})
			return 0, false
		}
		return v, true
	}

	var ok bool
	if q.After, ok = parse("after"); !ok {
		return q, false
	}
	if q.Before, ok = parse("before"); !ok {
		return q, false
	}
	limit, ok := parse("limit")
	if !ok {
		return q, false
	}
	q.Limit = int(min(limit, service.MaxHistoryPageSize))

	return q, true
}
