package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/JackBerck/guyub-rukun-sub001/internal/apperror"
	"github.com/JackBerck/guyub-rukun-sub001/internal/models"
	"github.com/JackBerck/guyub-rukun-sub001/internal/repository"
	"github.com/JackBerck/guyub-rukun-sub001/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultMessageMaxLength = 2000
	DefaultHistoryPageSize  = 50
	MaxHistoryPageSize      = 100
)

// Notifier receives the events produced by message operations.
// Implementations must return immediately.
type Notifier interface {
	Notify(recipientID, senderID uuid.UUID, newCount int64)
	NotifyRead(senderID, readerID uuid.UUID, count int64)
}

type MessageService struct {
	messageRepo *repository.MessageRepository
	userRepo    *repository.UserRepository
	notifier    Notifier

	maxLength int
	pageSize  int
	locks     pairLocks
}

func NewMessageService(
	messageRepo *repository.MessageRepository,
	userRepo *repository.UserRepository,
	notifier Notifier,
	maxLength int,
	pageSize int,
) *MessageService {
	if maxLength <= 0 {
		maxLength = DefaultMessageMaxLength
	}
	if pageSize <= 0 || pageSize > MaxHistoryPageSize {
		pageSize = DefaultHistoryPageSize
	}

	return &MessageService{
		messageRepo: messageRepo,
		userRepo:    userRepo,
		notifier:    notifier,
		maxLength:   maxLength,
		pageSize:    pageSize,
	}
}

// Send stores a direct message and notifies the receiver of their new
// unread count for this sender.
func (s *MessageService) Send(ctx context.Context, senderID, receiverID uuid.UUID, body string) (*models.Message, error) {
	start := time.Now()

	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperror.Validation("message", "message cannot be empty")
	}
	if utf8.RuneCountInString(body) > s.maxLength {
		return nil, apperror.Validation("message", fmt.Sprintf("message must be at most %d characters", s.maxLength))
	}
	if receiverID == uuid.Nil {
		return nil, apperror.Validation("receiver_id", "receiver is required")
	}
	if receiverID == senderID {
		return nil, apperror.Validation("receiver_id", "cannot send a message to yourself")
	}

	exists, err := s.userRepo.Exists(ctx, receiverID)
	if err != nil {
		logger.Log.Error("Failed to check receiver existence",
			zap.String("receiver_id", receiverID.String()),
			zap.Error(err),
		)
		return nil, apperror.Internal(err)
	}
	if !exists {
		return nil, apperror.Validation("receiver_id", "receiver does not exist")
	}

	// Holding the pair lock across insert, count and enqueue keeps the
	// published counts in the same order as the inserts.
	unlock := s.locks.lock(senderID, receiverID)
	defer unlock()

	msg := &models.Message{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Body:       body,
	}
	if err := s.messageRepo.CreateMessage(ctx, msg); err != nil {
		logger.Log.Error("Failed to store message",
			zap.String("sender_id", senderID.String()),
			zap.String("receiver_id", receiverID.String()),
			zap.Error(err),
		)
		return nil, apperror.Internal(err)
	}

	count, err := s.messageRepo.CountUnreadFrom(ctx, receiverID, senderID)
	if err != nil {
		// The message is stored; the receiver picks the count up on the next fetch
		logger.Log.Warn("Failed to count unread messages, notification skipped",
			zap.Uint64("message_id", msg.ID),
			zap.Error(err),
		)
	} else {
		s.notifier.Notify(receiverID, senderID, count)
	}

	logger.Log.Info("Message sent",
		zap.Uint64("message_id", msg.ID),
		zap.String("sender_id", senderID.String()),
		zap.String("receiver_id", receiverID.String()),
		zap.Int64("unread_count", count),
		zap.Duration("duration", time.Since(start)),
	)

	return msg, nil
}

// MarkRead marks every unread message from senderID to recipientID as read
// and returns how many changed. Repeating it is a no-op.
func (s *MessageService) MarkRead(ctx context.Context, recipientID, senderID uuid.UUID) (int64, error) {
	changed, err := s.messageRepo.MarkRead(ctx, recipientID, senderID)
	if err != nil {
		logger.Log.Error("Failed to mark messages as read",
			zap.String("recipient_id", recipientID.String()),
			zap.String("sender_id", senderID.String()),
			zap.Error(err),
		)
		return 0, apperror.Internal(err)
	}

	if changed > 0 {
		s.notifier.NotifyRead(senderID, recipientID, changed)
		logger.Log.Debug("Messages marked as read",
			zap.String("recipient_id", recipientID.String()),
			zap.String("sender_id", senderID.String()),
			zap.Int64("count", changed),
		)
	}

	return changed, nil
}

// History returns one page of the conversation between a and b, oldest first.
// Without a cursor it is the newest page; After pages forward and Before
// pages backward.
func (s *MessageService) History(ctx context.Context, a, b uuid.UUID, q models.HistoryQuery) (*models.HistoryPage, error) {
	if q.After > 0 && q.Before > 0 {
		return nil, apperror.Validation("cursor", "after and before cannot be combined")
	}

	limit := q.Limit
	if limit <= 0 {
		limit = s.pageSize
	}
	if limit > MaxHistoryPageSize {
		limit = MaxHistoryPageSize
	}

	var (
		messages []models.Message
		err      error
	)
	if q.After > 0 {
		messages, err = s.messageRepo.GetMessagesAfter(ctx, a, b, q.After, limit+1)
	} else {
		messages, err = s.messageRepo.GetMessagesBefore(ctx, a, b, q.Before, limit+1)
	}
	if errors.Is(err, repository.ErrUnknownCursor) {
		return nil, apperror.Validation("cursor", "cursor is not a message of this conversation")
	}
	if err != nil {
		logger.Log.Error("Failed to load conversation history",
			zap.String("user_id", a.String()),
			zap.String("counterpart_id", b.String()),
			zap.Error(err),
		)
		return nil, apperror.Internal(err)
	}

	page := &models.HistoryPage{HasMore: len(messages) > limit}
	if page.HasMore {
		messages = messages[:limit]
	}

	if q.After == 0 {
		// Loaded newest first
		for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
			messages[i], messages[j] = messages[j], messages[i]
		}
	}

	if page.HasMore && len(messages) > 0 {
		if q.After > 0 {
			page.NextCursor = messages[len(messages)-1].ID
		} else {
			page.NextCursor = messages[0].ID
		}
	}

	page.Messages = messages
	return page, nil
}
