package notifier

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Event names published on private user channels
const (
	EventUnreadUpdated = "unread.updated"
	EventMessagesRead  = "messages.read"
)

// Event is the envelope every subscriber receives
type Event struct {
	Event   string          `json:"event"`
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
}

// UnreadUpdated tells a recipient how many unread messages one sender now has
type UnreadUpdated struct {
	FromUserID  uuid.UUID `json:"fromUserId"`
	UnreadCount int64     `json:"unreadCount"`
}

// MessagesRead tells a sender that the reader has read count of their messages
type MessagesRead struct {
	ReaderID uuid.UUID `json:"readerId"`
	Count    int64     `json:"count"`
}

func encode(name, channel string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Event{Event: name, Channel: channel, Data: raw})
}

// Decode parses an event envelope received from a channel
func Decode(payload []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}
