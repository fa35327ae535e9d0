package handler

import (
	"errors"
	"net/http"

	"github.com/JackBerck/guyub-rukun-sub001/internal/dto"
	"github.com/JackBerck/guyub-rukun-sub001/internal/middleware"
	"github.com/JackBerck/guyub-rukun-sub001/internal/service"
	"github.com/JackBerck/guyub-rukun-sub001/pkg/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AuthHandler struct {
	authService   *service.AuthService
	avatarBaseURL string
	secureCookie  bool
	cookieMaxAge  int
}

func NewAuthHandler(authService *service.AuthService, avatarBaseURL string, secureCookie bool, cookieMaxAge int) *AuthHandler {
	return &AuthHandler{
		authService:   authService,
		avatarBaseURL: avatarBaseURL,
		secureCookie:  secureCookie,
		cookieMaxAge:  cookieMaxAge,
	}
}

type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Image    string `json:"image"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	user, token, err := h.authService.Register(c.Request.Context(), service.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Image:    req.Image,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	h.setTokenCookie(c, token)

	c.JSON(http.StatusCreated, gin.H{
		"message": "User registered successfully",
		"user":    dto.NewUser(user, h.avatarBaseURL),
		"token":   token,
	})
}

// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	user, token, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			logger.Log.Warn("Login failed",
				zap.String("email", req.Email),
				zap.String("ip", c.ClientIP()),
			)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
			return
		}
		respondError(c, err)
		return
	}

	h.setTokenCookie(c, token)

	c.JSON(http.StatusOK, gin.H{
		"message": "Login successful",
		"user":    dto.NewUser(user, h.avatarBaseURL),
		"token":   token,
	})
}

// POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.TokenCookie, "", -1, "/", "", h.secureCookie, true)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// GET /api/me
func (h *AuthHandler) Me(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	user, err := h.authService.Me(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": dto.NewUser(user, h.avatarBaseURL)})
}

func (h *AuthHandler) setTokenCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.TokenCookie, token, h.cookieMaxAge, "/", "", h.secureCookie, true)
}
