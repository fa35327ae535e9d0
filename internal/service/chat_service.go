package service

import (
	"context"
	"sort"

	"github.com/JackBerck/guyub-rukun-sub001/internal/apperror"
	"github.com/JackBerck/guyub-rukun-sub001/internal/models"
	"github.com/JackBerck/guyub-rukun-sub001/internal/repository"
	"github.com/JackBerck/guyub-rukun-sub001/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OnlineChecker reports which users currently have a live session
type OnlineChecker interface {
	OnlineAmong(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]bool, error)
}

// ChatService builds the chat screens: the conversation list and an open conversation
type ChatService struct {
	messageRepo *repository.MessageRepository
	userRepo    *repository.UserRepository
	messages    *MessageService
	presence    OnlineChecker
}

func NewChatService(
	messageRepo *repository.MessageRepository,
	userRepo *repository.UserRepository,
	messages *MessageService,
	presence OnlineChecker,
) *ChatService {
	return &ChatService{
		messageRepo: messageRepo,
		userRepo:    userRepo,
		messages:    messages,
		presence:    presence,
	}
}

// ListConversations returns one summary per user that userID has exchanged
// messages with, most recent conversation first.
func (s *ChatService) ListConversations(ctx context.Context, userID uuid.UUID) ([]models.ConversationSummary, error) {
	lastMessages, err := s.messageRepo.GetLastMessagePerCounterpart(ctx, userID)
	if err != nil {
		logger.Log.Error("Failed to load last messages",
			zap.String("user_id", userID.String()),
			zap.Error(err),
		)
		return nil, apperror.Internal(err)
	}
	if len(lastMessages) == 0 {
		return []models.ConversationSummary{}, nil
	}

	counterpartIDs := make([]uuid.UUID, 0, len(lastMessages))
	for i := range lastMessages {
		counterpartIDs = append(counterpartIDs, lastMessages[i].Counterpart(userID))
	}

	users, err := s.userRepo.GetUsersByIDs(ctx, counterpartIDs)
	if err != nil {
		logger.Log.Error("Failed to load counterparts",
			zap.String("user_id", userID.String()),
			zap.Error(err),
		)
		return nil, apperror.Internal(err)
	}

	unread, err := s.messageRepo.CountUnreadBySender(ctx, userID)
	if err != nil {
		logger.Log.Error("Failed to count unread messages",
			zap.String("user_id", userID.String()),
			zap.Error(err),
		)
		return nil, apperror.Internal(err)
	}

	online := map[uuid.UUID]bool{}
	if s.presence != nil {
		if online, err = s.presence.OnlineAmong(ctx, counterpartIDs); err != nil {
			// Presence is decoration; show everyone offline rather than fail
			logger.Log.Warn("Failed to load presence",
				zap.String("user_id", userID.String()),
				zap.Error(err),
			)
			online = map[uuid.UUID]bool{}
		}
	}

	summaries := make([]models.ConversationSummary, 0, len(lastMessages))
	for _, last := range lastMessages {
		counterpartID := last.Counterpart(userID)
		user, ok := users[counterpartID]
		if !ok {
			continue
		}
		summaries = append(summaries, models.ConversationSummary{
			Counterpart: user,
			LastMessage: last,
			UnreadCount: unread[counterpartID],
			IsOnline:    online[counterpartID],
		})
	}

	SortConversations(summaries)
	return summaries, nil
}

// SortConversations orders by last message time descending, then by
// counterpart id ascending so equal timestamps list deterministically.
func SortConversations(summaries []models.ConversationSummary) {
	sort.SliceStable(summaries, func(i, j int) bool {
		ti, tj := summaries[i].LastMessage.CreatedAt, summaries[j].LastMessage.CreatedAt
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return summaries[i].Counterpart.ID.String() < summaries[j].Counterpart.ID.String()
	})
}

// OpenConversation returns a page of the conversation with counterpartID
// and marks everything counterpartID sent to userID as read.
func (s *ChatService) OpenConversation(ctx context.Context, userID, counterpartID uuid.UUID, q models.HistoryQuery) (*models.HistoryPage, error) {
	if counterpartID == userID {
		return nil, apperror.Validation("user_id", "cannot open a conversation with yourself")
	}

	exists, err := s.userRepo.Exists(ctx, counterpartID)
	if err != nil {
		logger.Log.Error("Failed to check counterpart existence",
			zap.String("counterpart_id", counterpartID.String()),
			zap.Error(err),
		)
		return nil, apperror.Internal(err)
	}
	if !exists {
		return nil, apperror.NotFound("user not found")
	}

	page, err := s.messages.History(ctx, userID, counterpartID, q)
	if err != nil {
		return nil, err
	}

	changed, err := s.messages.MarkRead(ctx, userID, counterpartID)
	if err != nil {
		return nil, err
	}

	if changed > 0 {
		for i := range page.Messages {
			if page.Messages[i].ReceiverID == userID {
				page.Messages[i].IsRead = true
			}
		}
	}

	logger.Log.Debug("Conversation opened",
		zap.String("user_id", userID.String()),
		zap.String("counterpart_id", counterpartID.String()),
		zap.Int("messages", len(page.Messages)),
		zap.Int64("marked_read", changed),
	)

	return page, nil
}
