package main

import (
	"context"
	"os"
	"time"

	"github.com/JackBerck/guyub-rukun-sub001/internal/config"
	"github.com/JackBerck/guyub-rukun-sub001/internal/database"
	"github.com/JackBerck/guyub-rukun-sub001/internal/models"
	"github.com/JackBerck/guyub-rukun-sub001/internal/repository"
	"github.com/JackBerck/guyub-rukun-sub001/internal/utils"
	"github.com/JackBerck/guyub-rukun-sub001/pkg/logger"
	"go.uber.org/zap"
)

type seedUser struct {
	name  string
	email string
	image string
}

var seedUsers = []seedUser{
	{name: "Alice", email: "alice@example.com", image: "avatars/alice.png"},
	{name: "Bob", email: "bob@example.com", image: "avatars/bob.png"},
	{name: "Citra", email: "citra@example.com"},
}

// Seeds demo residents and one unread conversation from Alice to Bob.
// Users that already exist are left alone, so the command can be rerun.
func main() {
	cfg := config.Load()

	if err := logger.Init(!cfg.IsProduction(), cfg.LogLevel); err != nil {
		panic(err)
	}
	defer logger.Sync()

	database.Connect(cfg)
	database.Migrate()

	password := os.Getenv("SEED_PASSWORD")
	if password == "" {
		password = "password123"
	}

	passwordHash, err := utils.HashPassword(password)
	if err != nil {
		logger.Log.Fatal("Failed to hash password", zap.Error(err))
	}

	ctx := context.Background()
	userRepo := repository.NewUserRepository(database.DB)
	messageRepo := repository.NewMessageRepository(database.DB)

	users := make(map[string]*models.User, len(seedUsers))
	created := 0
	for _, su := range seedUsers {
		user, err := userRepo.GetUserByEmail(ctx, su.email)
		if err != nil {
			logger.Log.Fatal("Failed to look up user", zap.String("email", su.email), zap.Error(err))
		}

		if user == nil {
			user = &models.User{
				Name:         su.name,
				Email:        su.email,
				PasswordHash: passwordHash,
				Image:        su.image,
				Role:         models.RoleUser,
			}
			if err := userRepo.CreateUser(ctx, user); err != nil {
				logger.Log.Fatal("Failed to create user", zap.String("email", su.email), zap.Error(err))
			}
			created++
			logger.Log.Info("User created", zap.String("email", user.Email), zap.String("user_id", user.ID.String()))
		}

		users[su.name] = user
	}

	if created == 0 {
		logger.Log.Info("Seed data already present")
		return
	}

	alice, bob := users["Alice"], users["Bob"]
	start := time.Now().UTC().Add(-10 * time.Minute).Truncate(time.Minute)
	for i, body := range []string{"Halo", "Masih ada?"} {
		msg := &models.Message{
			SenderID:   alice.ID,
			ReceiverID: bob.ID,
			Body:       body,
			CreatedAt:  start.Add(time.Duration(i) * 5 * time.Minute),
		}
		if err := messageRepo.CreateMessage(ctx, msg); err != nil {
			logger.Log.Fatal("Failed to create message", zap.Error(err))
		}
	}

	logger.Log.Info("Seed completed", zap.Int("users_created", created))
}
