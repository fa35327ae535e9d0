package models

import (
	"time"

	"github.com/google/uuid"
)

// Message is a one-directional direct message.
// Rows are immutable except for the is_read flag, which only goes false -> true.
type Message struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	SenderID   uuid.UUID `gorm:"type:uuid;not null;index:idx_messages_pair_time,priority:1;index:idx_messages_unread,priority:2" json:"sender_id"`
	ReceiverID uuid.UUID `gorm:"type:uuid;not null;index:idx_messages_pair_time,priority:2;index:idx_messages_unread,priority:1" json:"receiver_id"`
	Body       string    `gorm:"type:text;not null" json:"body"`
	IsRead     bool      `gorm:"not null;default:false;index:idx_messages_unread,priority:3" json:"is_read"`
	CreatedAt  time.Time `gorm:"index:idx_messages_pair_time,priority:3" json:"created_at"`

	Sender   User `gorm:"foreignKey:SenderID;constraint:OnDelete:CASCADE" json:"-"`
	Receiver User `gorm:"foreignKey:ReceiverID;constraint:OnDelete:CASCADE" json:"-"`
}

// Counterpart returns the other participant relative to userID
func (m *Message) Counterpart(userID uuid.UUID) uuid.UUID {
	if m.SenderID == userID {
		return m.ReceiverID
	}
	return m.SenderID
}
