package realtime

import "github.com/JackBerck/guyub-rukun-sub001/internal/dto"

// Command types a client may send
const (
	CommandSubscribe   = "subscribe"
	CommandUnsubscribe = "unsubscribe"
	CommandSend        = "send_message"
)

// Command is a client -> server frame
type Command struct {
	Type       string `json:"type"`
	TempID     string `json:"temp_id,omitempty"`
	Channel    string `json:"channel,omitempty"`
	ReceiverID string `json:"receiver_id,omitempty"`
	Message    string `json:"message,omitempty"`
}

// Reply types sent by the server. Channel events are forwarded verbatim
// and carry an "event" field instead of "type".
const (
	ReplySubscribed     = "subscribed"
	ReplyUnsubscribed   = "unsubscribed"
	ReplyAck            = "ack"
	ReplyError          = "error"
	ReplySessionExpired = "session_expired"
)

// Reply is a server -> client frame answering a command
type Reply struct {
	Type    string              `json:"type"`
	TempID  string              `json:"temp_id,omitempty"`
	Channel string              `json:"channel,omitempty"`
	Status  string              `json:"status,omitempty"`
	Error   string              `json:"error,omitempty"`
	Fields  map[string][]string `json:"errors,omitempty"`
	Message *dto.Message        `json:"message,omitempty"`
}
