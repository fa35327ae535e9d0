package testutil

import (
	"testing"
	"time"

	"github.com/JackBerck/guyub-rukun-sub001/internal/models"
	"github.com/JackBerck/guyub-rukun-sub001/internal/utils"
	"gorm.io/gorm"
)

// TestPassword is the plain password of every fixture user
const TestPassword = "Test123456"

// CreateTestUser inserts a member with a hashed TestPassword
func CreateTestUser(t *testing.T, db *gorm.DB, name, email string) *models.User {
	t.Helper()

	hash, err := utils.HashPassword(TestPassword)
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}

	user := &models.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         models.RoleUser,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to create user %s: %v", email, err)
	}
	return user
}

// CreateTestMessage inserts a message with an explicit timestamp
func CreateTestMessage(t *testing.T, db *gorm.DB, from, to *models.User, body string, at time.Time) *models.Message {
	t.Helper()

	msg := &models.Message{
		SenderID:   from.ID,
		ReceiverID: to.ID,
		Body:       body,
		CreatedAt:  at,
	}
	if err := db.Create(msg).Error; err != nil {
		t.Fatalf("Failed to create message: %v", err)
	}
	return msg
}

// Conversation is the two-member demo fixture
type Conversation struct {
	Alice *models.User
	Bob   *models.User
	// Messages in send order: Alice "Halo" then Alice "Masih ada?"
	Messages []*models.Message
}

// DemoConversation seeds Alice and Bob where Alice sent Bob two unread
// messages, "Halo" at 10:00 and "Masih ada?" at 10:05 (UTC, 2024-05-01).
func DemoConversation(t *testing.T, db *gorm.DB) *Conversation {
	t.Helper()

	alice := CreateTestUser(t, db, "Alice", "alice@example.com")
	bob := CreateTestUser(t, db, "Bob", "bob@example.com")

	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	m1 := CreateTestMessage(t, db, alice, bob, "Halo", base)
	m2 := CreateTestMessage(t, db, alice, bob, "Masih ada?", base.Add(5*time.Minute))

	return &Conversation{Alice: alice, Bob: bob, Messages: []*models.Message{m1, m2}}
}
