package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/avik-b/pulseboard/internal/apperr"
	"github.com/avik-b/pulseboard/internal/auth"
	"github.com/avik-b/pulseboard/internal/config"
	"github.com/avik-b/pulseboard/internal/middleware"
	"github.com/avik-b/pulseboard/internal/service"
)

// AuthHandler issues and refreshes token pairs.
type AuthHandler struct {
	users  *service.UserService
	cfg    *config.Config
	logger *zap.Logger
}

func NewAuthHandler(users *service.UserService, cfg *config.Config, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{users: users, cfg: cfg, logger: logger}
}

type registerRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Username string `json:"username" binding:"required,min=3,max=32"`
	Password string `json:"password" binding:"required,min=8"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// Register creates the account and logs it in, returning the user plus a
// token pair so clients skip a second round-trip.
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, h.logger, err)
		return
	}

	user, err := h.users.Register(c.Request.Context(), req.Email, req.Username, req.Password)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	pair, err := auth.GeneratePair(user.ID, user.Email, h.cfg.JWTSecret, h.cfg.AccessTTL, h.cfg.RefreshTTL)
	if err != nil {
		respondError(c, h.logger, apperr.Internal("failed to issue tokens", err))
		return
	}

	respondCreated(c, gin.H{"user": user, "tokens": pair}, "registration successful")
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, h.logger, err)
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	pair, err := auth.GeneratePair(user.ID, user.Email, h.cfg.JWTSecret, h.cfg.AccessTTL, h.cfg.RefreshTTL)
	if err != nil {
		respondError(c, h.logger, apperr.Internal("failed to issue tokens", err))
		return
	}

	respondOK(c, gin.H{"user": user, "tokens": pair}, "login successful")
}

// Refresh exchanges a valid refresh token for a fresh pair. Access tokens
// are rejected here the same way refresh tokens are rejected everywhere else.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, h.logger, err)
		return
	}

	claims, err := auth.ParseToken(req.RefreshToken, h.cfg.JWTSecret)
	if err != nil || claims.TokenType != auth.TokenTypeRefresh {
		respondError(c, h.logger, apperr.Unauthorized("invalid refresh token"))
		return
	}

	// The user may have been deleted since the token was issued.
	user, err := h.users.GetByID(c.Request.Context(), claims.UserID)
	if err != nil {
		respondError(c, h.logger, apperr.Unauthorized("invalid refresh token"))
		return
	}

	pair, err := auth.GeneratePair(user.ID, user.Email, h.cfg.JWTSecret, h.cfg.AccessTTL, h.cfg.RefreshTTL)
	if err != nil {
		respondError(c, h.logger, apperr.Internal("failed to issue tokens", err))
		return
	}

	respondOK(c, gin.H{"tokens": pair}, "token refreshed")
}

// Profile returns the authenticated user's own record.
func (h *AuthHandler) Profile(c *gin.Context) {
	user, err := h.users.GetByID(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, user, "")
}

// Logout is stateless: tokens are not tracked server-side, so this only
// acknowledges the client's intent to drop its pair.
func (h *AuthHandler) Logout(c *gin.Context) {
	respondOK(c, nil, "logged out")
}
