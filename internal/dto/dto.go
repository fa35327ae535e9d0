package dto

import (
	"strings"
	"time"

	"github.com/JackBerck/guyub-rukun-sub001/internal/models"
	"github.com/google/uuid"
)

const dateLayout = "2006-01-02"

// Message is a chat bubble in an open conversation
type Message struct {
	ID         uint64    `json:"id"`
	SenderID   uuid.UUID `json:"senderId"`
	ReceiverID uuid.UUID `json:"receiverId"`
	Message    string    `json:"message"`
	IsRead     bool      `json:"isRead"`
	Timestamp  string    `json:"timestamp"` // RFC 3339, UTC
	Date       string    `json:"date"`      // day the bubble is grouped under
}

func NewMessage(m *models.Message) Message {
	at := m.CreatedAt.UTC()
	return Message{
		ID:         m.ID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Message:    m.Body,
		IsRead:     m.IsRead,
		Timestamp:  at.Format(time.RFC3339),
		Date:       at.Format(dateLayout),
	}
}

func NewMessages(messages []models.Message) []Message {
	out := make([]Message, len(messages))
	for i := range messages {
		out[i] = NewMessage(&messages[i])
	}
	return out
}

// LastMessage is the preview shown under a conversation
type LastMessage struct {
	Text      string    `json:"text"`
	Timestamp string    `json:"timestamp"`
	IsRead    bool      `json:"isRead"`
	SenderID  uuid.UUID `json:"senderId"`
}

// Conversation is one row of the chat list
type Conversation struct {
	ID          uuid.UUID   `json:"id"`
	Name        string      `json:"name"`
	Avatar      string      `json:"avatar"`
	IsOnline    bool        `json:"isOnline"`
	LastMessage LastMessage `json:"lastMessage"`
	UnreadCount int64       `json:"unreadCount"`
}

func NewConversations(summaries []models.ConversationSummary, avatarBaseURL string) []Conversation {
	out := make([]Conversation, len(summaries))
	for i, s := range summaries {
		out[i] = Conversation{
			ID:       s.Counterpart.ID,
			Name:     s.Counterpart.Name,
			Avatar:   AvatarURL(avatarBaseURL, s.Counterpart.Image),
			IsOnline: s.IsOnline,
			LastMessage: LastMessage{
				Text:      s.LastMessage.Body,
				Timestamp: s.LastMessage.CreatedAt.UTC().Format(time.RFC3339),
				IsRead:    s.LastMessage.IsRead,
				SenderID:  s.LastMessage.SenderID,
			},
			UnreadCount: s.UnreadCount,
		}
	}
	return out
}

// History is one page of an open conversation
type History struct {
	Messages   []Message `json:"messages"`
	HasMore    bool      `json:"has_more"`
	NextCursor uint64    `json:"next_cursor,omitempty"`
}

func NewHistory(page *models.HistoryPage) History {
	return History{
		Messages:   NewMessages(page.Messages),
		HasMore:    page.HasMore,
		NextCursor: page.NextCursor,
	}
}

// User is the public profile of a member
type User struct {
	ID     uuid.UUID `json:"id"`
	Name   string    `json:"name"`
	Email  string    `json:"email"`
	Avatar string    `json:"avatar"`
}

func NewUser(u *models.User, avatarBaseURL string) User {
	return User{
		ID:     u.ID,
		Name:   u.Name,
		Email:  u.Email,
		Avatar: AvatarURL(avatarBaseURL, u.Image),
	}
}

// AvatarURL resolves a stored image path against the file storage base URL.
// Absolute URLs and empty paths are returned as is.
func AvatarURL(baseURL, image string) string {
	if image == "" || baseURL == "" ||
		strings.HasPrefix(image, "http://") || strings.HasPrefix(image, "https://") {
		return image
	}
	return strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(image, "/")
}
