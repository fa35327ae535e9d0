package repository

import (
	"context"
	"errors"

	"github.com/JackBerck/guyub-rukun-sub001/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) CreateMessage(ctx context.Context, message *models.Message) error {
	return r.db.WithContext(ctx).Create(message).Error
}

// pair restricts a query to the messages exchanged between a and b, both directions
func pair(db *gorm.DB, a, b uuid.UUID) *gorm.DB {
	return db.Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)", a, b, b, a)
}

// ErrUnknownCursor is returned when a history cursor is not a message of the conversation
var ErrUnknownCursor = errors.New("cursor is not a message of this conversation")

// Conversations are ordered by (created_at, id). The cursor is a message id;
// its position is looked up so ids that disagree with timestamps page correctly.
const (
	afterCursor  = "created_at > (SELECT created_at FROM messages WHERE id = ?) OR (created_at = (SELECT created_at FROM messages WHERE id = ?) AND id > ?)"
	beforeCursor = "created_at < (SELECT created_at FROM messages WHERE id = ?) OR (created_at = (SELECT created_at FROM messages WHERE id = ?) AND id < ?)"
)

func (r *MessageRepository) checkCursor(ctx context.Context, a, b uuid.UUID, id uint64) error {
	var n int64
	err := pair(r.db.WithContext(ctx).Model(&models.Message{}), a, b).
		Where("id = ?", id).
		Count(&n).Error
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrUnknownCursor
	}
	return nil
}

// GetMessagesAfter returns up to limit messages positioned after the cursor
// message (from the start when zero), oldest first
func (r *MessageRepository) GetMessagesAfter(ctx context.Context, a, b uuid.UUID, afterID uint64, limit int) ([]models.Message, error) {
	q := pair(r.db.WithContext(ctx).Model(&models.Message{}), a, b)
	if afterID > 0 {
		if err := r.checkCursor(ctx, a, b, afterID); err != nil {
			return nil, err
		}
		q = q.Where(afterCursor, afterID, afterID, afterID)
	}

	var messages []models.Message
	err := q.Order("created_at ASC").Order("id ASC").
		Limit(limit).
		Find(&messages).Error

	return messages, err
}

// GetMessagesBefore returns up to limit messages positioned before the cursor
// message (no bound when zero), newest first. Callers reverse the slice for display.
func (r *MessageRepository) GetMessagesBefore(ctx context.Context, a, b uuid.UUID, beforeID uint64, limit int) ([]models.Message, error) {
	q := pair(r.db.WithContext(ctx).Model(&models.Message{}), a, b)
	if beforeID > 0 {
		if err := r.checkCursor(ctx, a, b, beforeID); err != nil {
			return nil, err
		}
		q = q.Where(beforeCursor, beforeID, beforeID, beforeID)
	}

	var messages []models.Message
	err := q.Order("created_at DESC").Order("id DESC").
		Limit(limit).
		Find(&messages).Error

	return messages, err
}

// MarkRead flips every unread message from sender to recipient. Returns rows changed.
func (r *MessageRepository) MarkRead(ctx context.Context, recipientID, senderID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("receiver_id = ? AND sender_id = ? AND is_read = ?", recipientID, senderID, false).
		Update("is_read", true)
	return res.RowsAffected, res.Error
}

func (r *MessageRepository) CountUnreadFrom(ctx context.Context, recipientID, senderID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("receiver_id = ? AND sender_id = ? AND is_read = ?", recipientID, senderID, false).
		Count(&count).Error
	return count, err
}

type unreadRow struct {
	SenderID uuid.UUID
	Count    int64
}

// CountUnreadBySender groups the recipient's unread messages by sender.
// Senders with nothing unread are absent.
func (r *MessageRepository) CountUnreadBySender(ctx context.Context, recipientID uuid.UUID) (map[uuid.UUID]int64, error) {
	var rows []unreadRow
	err := r.db.WithContext(ctx).Model(&models.Message{}).
		Select("sender_id, COUNT(*) AS count").
		Where("receiver_id = ? AND is_read = ?", recipientID, false).
		Group("sender_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[uuid.UUID]int64, len(rows))
	for _, row := range rows {
		counts[row.SenderID] = row.Count
	}
	return counts, nil
}

// GetLastMessagePerCounterpart returns, for every user userID has exchanged
// messages with, the conversation's last message by (created_at, id). Unordered.
func (r *MessageRepository) GetLastMessagePerCounterpart(ctx context.Context, userID uuid.UUID) ([]models.Message, error) {
	var lastIDs []uint64
	err := r.db.WithContext(ctx).Raw(`
		SELECT id FROM (
			SELECT id, ROW_NUMBER() OVER (
				PARTITION BY CASE WHEN sender_id = ? THEN receiver_id ELSE sender_id END
				ORDER BY created_at DESC, id DESC
			) AS rn
			FROM messages
			WHERE sender_id = ? OR receiver_id = ?
		) ranked
		WHERE rn = 1`,
		userID, userID, userID,
	).Scan(&lastIDs).Error
	if err != nil {
		return nil, err
	}
	if len(lastIDs) == 0 {
		return []models.Message{}, nil
	}

	var messages []models.Message
	err = r.db.WithContext(ctx).Where("id IN ?", lastIDs).Find(&messages).Error
	return messages, err
}
