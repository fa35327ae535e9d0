package notifier

import (
	"context"

	"github.com/JackBerck/guyub-rukun-sub001/internal/apperror"
	"github.com/JackBerck/guyub-rukun-sub001/internal/broker"
	"github.com/JackBerck/guyub-rukun-sub001/internal/workerpool"
	"github.com/JackBerck/guyub-rukun-sub001/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Notifier pushes unread counters and read receipts to private user channels.
// Calls never block the caller and never report failure: publishing happens
// on the worker pool and errors are only logged.
type Notifier struct {
	broker broker.MessageBroker
	pool   *workerpool.Pool
	log    *zap.Logger
}

func New(b broker.MessageBroker, pool *workerpool.Pool) *Notifier {
	return &Notifier{broker: b, pool: pool, log: logger.Named("notifier")}
}

// pairKey routes every event about sender->recipient messages to one worker,
// which keeps them in call order.
func pairKey(senderID, recipientID uuid.UUID) string {
	return senderID.String() + ":" + recipientID.String()
}

// Notify publishes the new unread count of sender's messages to recipient
func (n *Notifier) Notify(recipientID, senderID uuid.UUID, newCount int64) {
	channel := broker.UserChannel(recipientID)
	n.enqueue(pairKey(senderID, recipientID), channel, EventUnreadUpdated, UnreadUpdated{
		FromUserID:  senderID,
		UnreadCount: newCount,
	})
}

// NotifyRead tells sender that reader has read count of their messages
func (n *Notifier) NotifyRead(senderID, readerID uuid.UUID, count int64) {
	channel := broker.UserChannel(senderID)
	n.enqueue(pairKey(senderID, readerID), channel, EventMessagesRead, MessagesRead{
		ReaderID: readerID,
		Count:    count,
	})
}

func (n *Notifier) enqueue(key, channel, event string, data any) {
	payload, err := encode(event, channel, data)
	if err != nil {
		n.log.Error("Failed to encode event",
			zap.String("event", event),
			zap.Error(err),
		)
		return
	}

	ok := n.pool.TrySubmit(key, func() {
		if err := n.broker.Publish(context.Background(), channel, payload); err != nil {
			n.log.Warn("Failed to publish event",
				zap.String("event", event),
				zap.String("channel", channel),
				zap.Error(err),
			)
			return
		}
		n.log.Debug("Event published",
			zap.String("event", event),
			zap.String("channel", channel),
		)
	})
	if !ok {
		n.log.Warn("Notifier queue full, event dropped",
			zap.String("event", event),
			zap.String("channel", channel),
		)
	}
}

// AuthorizeChannel allows a user to subscribe only to their own private channel
func AuthorizeChannel(userID uuid.UUID, channel string) error {
	owner, ok := broker.ParseUserChannel(channel)
	if !ok {
		return apperror.Authorization("unknown channel")
	}
	if owner != userID {
		return apperror.Authorization("cannot subscribe to another user's channel")
	}
	return nil
}
