// api/handlers/auth_handler.go
package handlers

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Annany2002/nebula-cms/api/models"
	"github.com/Annany2002/nebula-cms/config"
	"github.com/Annany2002/nebula-cms/internal/auth"
	"github.com/Annany2002/nebula-cms/internal/domain"
	"github.com/Annany2002/nebula-cms/internal/logger"
	"github.com/Annany2002/nebula-cms/internal/storage"
)

var (
	customLog = logger.NewLogger()
)

// AuthHandler holds dependencies for authentication handlers.
type AuthHandler struct {
	DB  *sql.DB        // Metadata DB connection pool
	Cfg *config.Config // Application configuration
}

// NewAuthHandler creates a new AuthHandler with dependencies.
func NewAuthHandler(db *sql.DB, cfg *config.Config) *AuthHandler {
	return &AuthHandler{
		DB:  db,
		Cfg: cfg,
	}
}

// Signup handles user registration requests.
func (h *AuthHandler) Signup(c *gin.Context) {
	var req models.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		customLog.Warnf("Handler: Signup binding error: %v", err)
		_ = c.Error(err)
		return
	}

	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		customLog.Warnf("Handler: Failed to hash password during signup for email %s: %v", req.Email, err)
		_ = c.Error(err)
		return
	}

	userId, err := storage.CreateUser(c.Request.Context(), h.DB, uuid.New().String(), req.Username, req.Email, hashedPassword)
	if err != nil {
		_ = c.Error(err) // ErrEmailExists maps to 409
		return
	}

	customLog.Printf("Handler: Successfully registered user with email %s", req.Email)
	c.JSON(http.StatusCreated, gin.H{"user_id": userId, "message": "User registered successfully"})
}

// Login handles user login requests and issues JWT on success.
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		customLog.Warnf("Handler: Login binding error: %v", err)
		_ = c.Error(err)
		return
	}

	user, err := storage.FindUserByEmail(c.Request.Context(), h.DB, req.Email)
	if err != nil {
		customLog.Warnf("Handler: Login failed for email %s: %v", req.Email, err)
		if errors.Is(err, storage.ErrUserNotFound) {
			// unknown email and wrong password look the same to the caller
			err = storage.ErrInvalidCredentials
		}
		_ = c.Error(err)
		return
	}

	if !auth.CheckPasswordHash(req.Password, user.PasswordHash) {
		customLog.Warnf("Handler: Login attempt failed for email %s: invalid password", user.Email)
		_ = c.Error(storage.ErrInvalidCredentials)
		return
	}

	tokenString, err := auth.GenerateJWT(user.UserId, h.Cfg.JWTSecret, h.Cfg.JWTExpiration)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, models.LoginResponse{Message: "Login successful", User: toUserResponse(user), Token: tokenString})
}

// Me returns the authenticated user.
func (h *AuthHandler) Me(c *gin.Context) {
	userId := c.GetString("userId")

	user, err := storage.FindUserByUserId(c.Request.Context(), h.DB, userId)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, toUserResponse(user))
}

func toUserResponse(user *domain.UserMetadata) models.UserResponse {
	return models.UserResponse{
		UserID:    user.UserId,
		Username:  user.Username,
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
	}
}
