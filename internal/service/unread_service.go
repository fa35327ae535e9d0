package service

import (
	"context"

	"github.com/JackBerck/guyub-rukun-sub001/internal/apperror"
	"github.com/JackBerck/guyub-rukun-sub001/internal/models"
	"github.com/JackBerck/guyub-rukun-sub001/internal/repository"
	"github.com/JackBerck/guyub-rukun-sub001/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// UnreadService answers unread counters straight from the message table.
// Nothing is cached, so counts always agree with the read flags.
type UnreadService struct {
	messageRepo *repository.MessageRepository
}

func NewUnreadService(messageRepo *repository.MessageRepository) *UnreadService {
	return &UnreadService{messageRepo: messageRepo}
}

// CountFrom is the number of unread messages senderID has sent to recipientID
func (s *UnreadService) CountFrom(ctx context.Context, recipientID, senderID uuid.UUID) (int64, error) {
	count, err := s.messageRepo.CountUnreadFrom(ctx, recipientID, senderID)
	if err != nil {
		logger.Log.Error("Failed to count unread messages",
			zap.String("recipient_id", recipientID.String()),
			zap.String("sender_id", senderID.String()),
			zap.Error(err),
		)
		return 0, apperror.Internal(err)
	}
	return count, nil
}

// BySender groups the recipient's unread messages by sender
func (s *UnreadService) BySender(ctx context.Context, recipientID uuid.UUID) (map[uuid.UUID]int64, error) {
	counts, err := s.messageRepo.CountUnreadBySender(ctx, recipientID)
	if err != nil {
		logger.Log.Error("Failed to count unread messages by sender",
			zap.String("recipient_id", recipientID.String()),
			zap.Error(err),
		)
		return nil, apperror.Internal(err)
	}
	return counts, nil
}

// TotalUnread is the sum of CountFrom over every sender
func (s *UnreadService) TotalUnread(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	summary, err := s.Summary(ctx, recipientID)
	if err != nil {
		return 0, err
	}
	return summary.Total, nil
}

// Summary returns the total and per-sender counts from a single query
func (s *UnreadService) Summary(ctx context.Context, recipientID uuid.UUID) (*models.UnreadSummary, error) {
	counts, err := s.BySender(ctx, recipientID)
	if err != nil {
		return nil, err
	}

	summary := &models.UnreadSummary{BySender: counts}
	for _, n := range counts {
		summary.Total += n
	}
	return summary, nil
}
