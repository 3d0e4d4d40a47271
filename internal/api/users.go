package api

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/avik-b/pulseboard/internal/apperr"
	"github.com/avik-b/pulseboard/internal/middleware"
	"github.com/avik-b/pulseboard/internal/models"
	"github.com/avik-b/pulseboard/internal/repository"
	"github.com/avik-b/pulseboard/internal/service"
)

// UserHandler covers profile reads and writes, stats patches, account
// deletion and the rating leaderboard.
type UserHandler struct {
	users  *service.UserService
	logger *zap.Logger
}

func NewUserHandler(users *service.UserService, logger *zap.Logger) *UserHandler {
	return &UserHandler{users: users, logger: logger}
}

type updateProfileRequest struct {
	Username    *string                 `json:"username" binding:"omitempty,min=3,max=32"`
	Avatar      *string                 `json:"avatar"`
	Preferences *models.UserPreferences `json:"preferences"`
}

type updateStatsRequest struct {
	GamesPlayed  *int      `json:"gamesPlayed" binding:"omitempty,min=0"`
	GamesWon     *int      `json:"gamesWon" binding:"omitempty,min=0"`
	Rating       *int      `json:"rating" binding:"omitempty,min=0"`
	Achievements *[]string `json:"achievements"`
}

func (h *UserHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		respondInvalid(c, h.logger, "invalid user id")
		return
	}

	user, err := h.users.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, user, "")
}

// UpdateProfile patches the caller's own profile. Absent fields are left
// untouched.
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	var req updateProfileRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, h.logger, err)
		return
	}

	user, err := h.users.UpdateProfile(c.Request.Context(), middleware.GetUserID(c), repository.ProfileUpdate{
		Username:    req.Username,
		Avatar:      req.Avatar,
		Preferences: req.Preferences,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, user, "profile updated")
}

func (h *UserHandler) UpdateStats(c *gin.Context) {
	var req updateStatsRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, h.logger, err)
		return
	}

	user, err := h.users.UpdateStats(c.Request.Context(), middleware.GetUserID(c), repository.StatsUpdate{
		GamesPlayed:  req.GamesPlayed,
		GamesWon:     req.GamesWon,
		Rating:       req.Rating,
		Achievements: req.Achievements,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, user, "stats updated")
}

// Delete removes an account. Callers may only delete themselves.
func (h *UserHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		respondInvalid(c, h.logger, "invalid user id")
		return
	}
	if id != middleware.GetUserID(c) {
		respondError(c, h.logger, apperr.Forbidden("cannot delete another user's account"))
		return
	}

	if err := h.users.Delete(c.Request.Context(), id); err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, nil, "account deleted")
}

func (h *UserHandler) Leaderboard(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	users, err := h.users.Leaderboard(c.Request.Context(), limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, gin.H{"leaderboard": users, "count": len(users)}, "")
}
