package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/JackBerck/guyub-rukun-sub001/internal/apperror"
	"github.com/JackBerck/guyub-rukun-sub001/internal/models"
	"github.com/JackBerck/guyub-rukun-sub001/internal/repository"
	"github.com/JackBerck/guyub-rukun-sub001/internal/utils"
	"github.com/JackBerck/guyub-rukun-sub001/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")

	emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
)

// RegisterInput is a new member's sign up form
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Image    string
}

type AuthService struct {
	userRepo *repository.UserRepository
	tokens   *utils.TokenIssuer
}

func NewAuthService(userRepo *repository.UserRepository, tokens *utils.TokenIssuer) *AuthService {
	return &AuthService{
		userRepo: userRepo,
		tokens:   tokens,
	}
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, string, error) {
	start := time.Now()

	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))

	if err := validateRegisterInput(in); err != nil {
		logger.Log.Warn("Registration validation failed",
			zap.String("email", in.Email),
			zap.Error(err),
		)
		return nil, "", err
	}

	existing, err := s.userRepo.GetUserByEmail(ctx, in.Email)
	if err != nil {
		logger.Log.Error("Failed to check email existence",
			zap.String("email", in.Email),
			zap.Error(err),
		)
		return nil, "", apperror.Internal(err)
	}
	if existing != nil {
		logger.Log.Warn("Email already exists", zap.String("email", in.Email))
		return nil, "", apperror.Validation("email", "email already registered")
	}

	hashStart := time.Now()
	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		logger.Log.Error("Failed to hash password", zap.Error(err))
		return nil, "", apperror.Internal(err)
	}
	hashDuration := time.Since(hashStart)

	user := &models.User{
		Name:         in.Name,
		Email:        in.Email,
		Image:        in.Image,
		PasswordHash: hash,
		Role:         models.RoleUser,
	}
	if err := s.userRepo.CreateUser(ctx, user); err != nil {
		logger.Log.Error("Failed to create user in database",
			zap.String("email", in.Email),
			zap.Error(err),
		)
		return nil, "", apperror.Internal(err)
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		logger.Log.Error("Failed to generate JWT token",
			zap.String("user_id", user.ID.String()),
			zap.Error(err),
		)
		return nil, "", apperror.Internal(err)
	}

	logger.Log.Info("User registered successfully",
		zap.String("user_id", user.ID.String()),
		zap.String("email", user.Email),
		zap.Duration("hash_duration", hashDuration),
		zap.Duration("total_duration", time.Since(start)),
	)

	return user, token, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*models.User, string, error) {
	start := time.Now()
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.userRepo.GetUserByEmail(ctx, email)
	if err != nil {
		logger.Log.Error("Failed to get user by email",
			zap.String("email", email),
			zap.Error(err),
		)
		return nil, "", apperror.Internal(err)
	}
	if user == nil {
		logger.Log.Warn("Login failed: user not found", zap.String("email", email))
		return nil, "", ErrInvalidCredentials
	}

	valid, err := utils.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		logger.Log.Error("Failed to verify password",
			zap.String("user_id", user.ID.String()),
			zap.Error(err),
		)
		return nil, "", apperror.Internal(err)
	}
	if !valid {
		logger.Log.Warn("Login failed: invalid password",
			zap.String("user_id", user.ID.String()),
		)
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		logger.Log.Error("Failed to generate JWT token",
			zap.String("user_id", user.ID.String()),
			zap.Error(err),
		)
		return nil, "", apperror.Internal(err)
	}

	logger.Log.Info("User logged in successfully",
		zap.String("user_id", user.ID.String()),
		zap.Duration("total_duration", time.Since(start)),
	)

	return user, token, nil
}

// Me loads the member behind an authenticated request
func (s *AuthService) Me(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		logger.Log.Error("Failed to get user by id",
			zap.String("user_id", userID.String()),
			zap.Error(err),
		)
		return nil, apperror.Internal(err)
	}
	if user == nil {
		return nil, apperror.NotFound("user not found")
	}
	return user, nil
}

func validateRegisterInput(in RegisterInput) error {
	fields := map[string][]string{}
	add := func(field, msg string) {
		fields[field] = append(fields[field], msg)
	}

	switch n := utf8.RuneCountInString(in.Name); {
	case n == 0:
		add("name", "name is required")
	case n > 100:
		add("name", "name must be at most 100 characters")
	}

	if !emailRegex.MatchString(in.Email) {
		add("email", "invalid email format")
	} else if len(in.Email) > 100 {
		add("email", "email must be at most 100 characters")
	}

	if len(in.Password) < 8 {
		add("password", "password must be at least 8 characters")
	} else if len(in.Password) > 128 {
		add("password", "password must be at most 128 characters")
	}

	if len(in.Image) > 255 {
		add("image", "image path must be at most 255 characters")
	}

	if len(fields) == 0 {
		return nil
	}

	return &apperror.AppError{
		Kind:    apperror.KindValidation,
		Message: "the given data was invalid",
		Fields:  fields,
	}
}
