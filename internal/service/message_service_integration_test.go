package service_test

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/JackBerck/guyub-rukun-sub001/internal/apperror"
	"github.com/JackBerck/guyub-rukun-sub001/internal/models"
	"github.com/JackBerck/guyub-rukun-sub001/internal/repository"
	"github.com/JackBerck/guyub-rukun-sub001/internal/service"
	"github.com/JackBerck/guyub-rukun-sub001/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
)

type MessageServiceIntegrationTestSuite struct {
	suite.Suite
	testDB   *testutil.TestDatabase
	notifier *recordingNotifier
	messages *service.MessageService
	unread   *service.UnreadService
	ctx      context.Context

	alice, bob, carol *models.User
}

func (s *MessageServiceIntegrationTestSuite) SetupSuite() {
	s.testDB = testutil.SetupTestDatabase(s.T())
	s.notifier = &recordingNotifier{}
	s.ctx = context.Background()

	messageRepo := repository.NewMessageRepository(s.testDB.DB)
	userRepo := repository.NewUserRepository(s.testDB.DB)
	s.messages = service.NewMessageService(messageRepo, userRepo, s.notifier, 20, 3)
	s.unread = service.NewUnreadService(messageRepo)
}

func (s *MessageServiceIntegrationTestSuite) TearDownSuite() {
	s.testDB.Teardown(s.T())
}

func (s *MessageServiceIntegrationTestSuite) SetupTest() {
	testutil.CleanDatabase(s.T(), s.testDB.DB)
	s.notifier.Reset()

	s.alice = testutil.CreateTestUser(s.T(), s.testDB.DB, "Alice", "alice@example.com")
	s.bob = testutil.CreateTestUser(s.T(), s.testDB.DB, "Bob", "bob@example.com")
	s.carol = testutil.CreateTestUser(s.T(), s.testDB.DB, "Carol", "carol@example.com")
}

func (s *MessageServiceIntegrationTestSuite) send(from, to *models.User, body string) *models.Message {
	msg, err := s.messages.Send(s.ctx, from.ID, to.ID, body)
	s.Require().NoError(err)
	return msg
}

func (s *MessageServiceIntegrationTestSuite) countFrom(recipient, sender *models.User) int64 {
	n, err := s.unread.CountFrom(s.ctx, recipient.ID, sender.ID)
	s.Require().NoError(err)
	return n
}

func (s *MessageServiceIntegrationTestSuite) TestSend_AppearsInHistoryOfBothParticipants() {
	msg := s.send(s.alice, s.bob, "Halo")

	s.NotZero(msg.ID)
	s.False(msg.IsRead)

	for _, viewer := range []*models.User{s.alice, s.bob} {
		other := s.bob
		if viewer == s.bob {
			other = s.alice
		}
		page, err := s.messages.History(s.ctx, viewer.ID, other.ID, models.HistoryQuery{})
		s.Require().NoError(err)
		s.Require().Len(page.Messages, 1)
		s.Equal("Halo", page.Messages[0].Body)
		s.Equal(s.alice.ID, page.Messages[0].SenderID)
	}
}

func (s *MessageServiceIntegrationTestSuite) TestSend_IncrementsCountAndNotifies() {
	s.Equal(int64(0), s.countFrom(s.bob, s.alice))

	s.send(s.alice, s.bob, "one")
	s.Equal(int64(1), s.countFrom(s.bob, s.alice))

	s.send(s.alice, s.bob, "two")
	s.Equal(int64(2), s.countFrom(s.bob, s.alice))

	s.Equal([]unreadEvent{
		{Recipient: s.bob.ID, Sender: s.alice.ID, Count: 1},
		{Recipient: s.bob.ID, Sender: s.alice.ID, Count: 2},
	}, s.notifier.Unread())
}

func (s *MessageServiceIntegrationTestSuite) TestSend_TrimsBody() {
	msg := s.send(s.alice, s.bob, "  Halo \n")
	s.Equal("Halo", msg.Body)
}

func (s *MessageServiceIntegrationTestSuite) TestSend_Validation() {
	tests := []struct {
		name     string
		receiver uuid.UUID
		body     string
		field    string
	}{
		{"empty body", s.bob.ID, "", "message"},
		{"whitespace body", s.bob.ID, " \t\n ", "message"},
		{"too long", s.bob.ID, strings.Repeat("a", 21), "message"},
		{"missing receiver", uuid.Nil, "hi", "receiver_id"},
		{"unknown receiver", uuid.New(), "hi", "receiver_id"},
		{"self", s.alice.ID, "hi", "receiver_id"},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			msg, err := s.messages.Send(s.ctx, s.alice.ID, tt.receiver, tt.body)
			s.Nil(msg)
			s.Require().Error(err)
			s.True(apperror.IsKind(err, apperror.KindValidation), "got %v", err)

			var appErr *apperror.AppError
			s.Require().ErrorAs(err, &appErr)
			s.Contains(appErr.Fields, tt.field)
		})
	}

	s.Empty(s.notifier.Unread(), "failed sends must not notify")
	page, err := s.messages.History(s.ctx, s.alice.ID, s.bob.ID, models.HistoryQuery{})
	s.Require().NoError(err)
	s.Empty(page.Messages, "failed sends must not persist")
}

func (s *MessageServiceIntegrationTestSuite) TestSend_LengthCountsCharactersNotBytes() {
	// 20 multi-byte characters is exactly at the limit
	_, err := s.messages.Send(s.ctx, s.alice.ID, s.bob.ID, strings.Repeat("é", 20))
	s.NoError(err)
}

func (s *MessageServiceIntegrationTestSuite) TestMarkRead_ResetsCountAndIsIdempotent() {
	s.send(s.alice, s.bob, "one")
	s.send(s.alice, s.bob, "two")
	s.send(s.bob, s.alice, "reply")

	changed, err := s.messages.MarkRead(s.ctx, s.bob.ID, s.alice.ID)
	s.Require().NoError(err)
	s.Equal(int64(2), changed)
	s.Equal(int64(0), s.countFrom(s.bob, s.alice))
	s.Equal(int64(1), s.countFrom(s.alice, s.bob), "other direction is untouched")

	changed, err = s.messages.MarkRead(s.ctx, s.bob.ID, s.alice.ID)
	s.Require().NoError(err)
	s.Zero(changed)
	s.Equal(int64(0), s.countFrom(s.bob, s.alice))

	s.Equal([]readEvent{{Sender: s.alice.ID, Reader: s.bob.ID, Count: 2}}, s.notifier.Reads(),
		"only the call that changed rows sends a receipt")
}

func (s *MessageServiceIntegrationTestSuite) TestMarkRead_WithNothingUnread() {
	changed, err := s.messages.MarkRead(s.ctx, s.bob.ID, s.carol.ID)
	s.Require().NoError(err)
	s.Zero(changed)
	s.Empty(s.notifier.Reads())
}

func (s *MessageServiceIntegrationTestSuite) TestHistory_OrderAndPaging() {
	m1 := s.send(s.alice, s.bob, "m1")
	m2 := s.send(s.bob, s.alice, "m2")
	m3 := s.send(s.alice, s.bob, "m3")
	m4 := s.send(s.bob, s.alice, "m4")
	m5 := s.send(s.alice, s.bob, "m5")

	// Default page size is 3: the newest three, oldest first
	page, err := s.messages.History(s.ctx, s.alice.ID, s.bob.ID, models.HistoryQuery{})
	s.Require().NoError(err)
	s.Equal([]string{"m3", "m4", "m5"}, bodies(page.Messages))
	s.True(page.HasMore)
	s.Equal(m3.ID, page.NextCursor)

	page, err = s.messages.History(s.ctx, s.alice.ID, s.bob.ID, models.HistoryQuery{Before: page.NextCursor})
	s.Require().NoError(err)
	s.Equal([]string{"m1", "m2"}, bodies(page.Messages))
	s.False(page.HasMore)
	s.Zero(page.NextCursor)

	page, err = s.messages.History(s.ctx, s.bob.ID, s.alice.ID, models.HistoryQuery{After: m1.ID, Limit: 2})
	s.Require().NoError(err)
	s.Equal([]uint64{m2.ID, m3.ID}, messageIDs(page.Messages))
	s.True(page.HasMore)
	s.Equal(m3.ID, page.NextCursor)

	page, err = s.messages.History(s.ctx, s.bob.ID, s.alice.ID, models.HistoryQuery{After: m3.ID, Limit: 2})
	s.Require().NoError(err)
	s.Equal([]uint64{m4.ID, m5.ID}, messageIDs(page.Messages))
	s.False(page.HasMore)
}

func (s *MessageServiceIntegrationTestSuite) TestHistory_ExcludesOtherConversations() {
	s.send(s.alice, s.bob, "for bob")
	s.send(s.alice, s.carol, "for carol")
	s.send(s.carol, s.bob, "carol to bob")

	page, err := s.messages.History(s.ctx, s.alice.ID, s.bob.ID, models.HistoryQuery{})
	s.Require().NoError(err)
	s.Equal([]string{"for bob"}, bodies(page.Messages))
}

func (s *MessageServiceIntegrationTestSuite) TestHistory_RejectsBothCursors() {
	_, err := s.messages.History(s.ctx, s.alice.ID, s.bob.ID, models.HistoryQuery{After: 1, Before: 5})
	s.True(apperror.IsKind(err, apperror.KindValidation))
}

func (s *MessageServiceIntegrationTestSuite) TestHistory_RejectsForeignCursor() {
	s.send(s.alice, s.bob, "for bob")
	other := s.send(s.alice, s.carol, "for carol")

	_, err := s.messages.History(s.ctx, s.alice.ID, s.bob.ID, models.HistoryQuery{Before: other.ID})
	s.True(apperror.IsKind(err, apperror.KindValidation))
}

func (s *MessageServiceIntegrationTestSuite) TestHistory_CapsLimit() {
	page, err := s.messages.History(s.ctx, s.alice.ID, s.bob.ID, models.HistoryQuery{Limit: 10000})
	s.Require().NoError(err)
	s.Empty(page.Messages)
	s.False(page.HasMore)
}

func (s *MessageServiceIntegrationTestSuite) TestTotalUnread() {
	s.send(s.alice, s.bob, "a1")
	s.send(s.alice, s.bob, "a2")
	s.send(s.carol, s.bob, "c1")
	s.send(s.bob, s.alice, "b1")

	total, err := s.unread.TotalUnread(s.ctx, s.bob.ID)
	s.Require().NoError(err)
	s.Equal(int64(3), total)

	summary, err := s.unread.Summary(s.ctx, s.bob.ID)
	s.Require().NoError(err)
	s.Equal(int64(3), summary.Total)
	s.Equal(map[uuid.UUID]int64{s.alice.ID: 2, s.carol.ID: 1}, summary.BySender)

	total, err = s.unread.TotalUnread(s.ctx, s.carol.ID)
	s.Require().NoError(err)
	s.Zero(total)
}

// Counts published after each send match what a fresh count returns,
// and the sequence for a pair is strictly increasing.
func (s *MessageServiceIntegrationTestSuite) TestConcurrentSends_CountsStayConsistent() {
	const perSender = 15

	var wg sync.WaitGroup
	for _, sender := range []*models.User{s.alice, s.carol} {
		wg.Add(1)
		go func(from *models.User) {
			defer wg.Done()
			for i := 0; i < perSender; i++ {
				_, err := s.messages.Send(s.ctx, from.ID, s.bob.ID, "ping")
				s.NoError(err)
			}
		}(sender)
	}
	wg.Wait()

	s.Equal(int64(perSender), s.countFrom(s.bob, s.alice))
	s.Equal(int64(perSender), s.countFrom(s.bob, s.carol))

	last := map[uuid.UUID]int64{}
	for _, ev := range s.notifier.Unread() {
		s.Greater(ev.Count, last[ev.Sender], "counts for one pair must increase")
		last[ev.Sender] = ev.Count
	}
	s.Equal(int64(perSender), last[s.alice.ID])
	s.Equal(int64(perSender), last[s.carol.ID])
}

func bodies(messages []models.Message) []string {
	out := make([]string, len(messages))
	for i, m := range messages {
		out[i] = m.Body
	}
	return out
}

func messageIDs(messages []models.Message) []uint64 {
	out := make([]uint64, len(messages))
	for i, m := range messages {
		out[i] = m.ID
	}
	return out
}

func TestMessageServiceIntegrationTestSuite(t *testing.T) {
	suite.Run(t, new(MessageServiceIntegrationTestSuite))
}
