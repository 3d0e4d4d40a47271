package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/avik-b/pulseboard/internal/apperr"
	"github.com/avik-b/pulseboard/internal/models"
	"github.com/avik-b/pulseboard/internal/repository"
)

const defaultLeaderboardLimit = 10

// UserService owns identity rules: unique email/username, password hashing
// and verification, and the no-hash-leaves-this-package projection rule.
type UserService struct {
	repo   repository.UserRepository
	logger *zap.Logger
}

func NewUserService(repo repository.UserRepository, logger *zap.Logger) *UserService {
	return &UserService{repo: repo, logger: logger}
}

// Register creates a new account. Fails with a conflict when the email or
// username is already taken; the existing record is left untouched.
func (s *UserService) Register(ctx context.Context, email, username, password string) (*models.User, error) {
	existing, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, apperr.Internal("failed to check existing user", err)
	}
	if existing == nil {
		existing, err = s.repo.GetByUsername(ctx, username)
		if err != nil {
			return nil, apperr.Internal("failed to check existing user", err)
		}
	}
	if existing != nil {
		return nil, apperr.Conflict("user with this email or username already exists")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperr.Internal("failed to hash password", err)
	}

	user, err := s.repo.Create(ctx, models.User{
		ID:           uuid.New(),
		Email:        email,
		Username:     username,
		PasswordHash: string(hash),
		Preferences:  models.DefaultPreferences(),
		Stats:        models.DefaultStats(),
	})
	if err != nil {
		return nil, apperr.Internal("failed to create user", err)
	}

	s.logger.Info("user registered", zap.String("user_id", user.ID.String()))
	return sanitize(user), nil
}

// Authenticate verifies email+password and returns the user on success.
// The same unauthorized error covers "no such user" and "wrong password" so
// the response does not reveal which emails are registered.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, apperr.Internal("failed to look up user", err)
	}
	if user == nil || !s.VerifyPassword(user, password) {
		return nil, apperr.Unauthorized("invalid credentials")
	}
	return sanitize(user), nil
}

// VerifyPassword compares a plaintext password against the stored bcrypt
// hash. bcrypt's comparison is constant-time.
func (s *UserService) VerifyPassword(user *models.User, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) == nil
}

func (s *UserService) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Internal("failed to get user", err)
	}
	if user == nil {
		return nil, apperr.NotFound("user not found")
	}
	return sanitize(user), nil
}

func (s *UserService) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		return nil, apperr.Internal("failed to get user", err)
	}
	if user == nil {
		return nil, apperr.NotFound("user not found")
	}
	return sanitize(user), nil
}

func (s *UserService) UpdateProfile(ctx context.Context, id uuid.UUID, update repository.ProfileUpdate) (*models.User, error) {
	if update.Username != nil {
		taken, err := s.repo.GetByUsername(ctx, *update.Username)
		if err != nil {
			return nil, apperr.Internal("failed to check username", err)
		}
		if taken != nil && taken.ID != id {
			return nil, apperr.Conflict("username already taken")
		}
	}

	user, err := s.repo.UpdateProfile(ctx, id, update)
	if err != nil {
		return nil, apperr.Internal("failed to update profile", err)
	}
	if user == nil {
		return nil, apperr.NotFound("user not found")
	}
	return sanitize(user), nil
}

func (s *UserService) UpdateStats(ctx context.Context, id uuid.UUID, update repository.StatsUpdate) (*models.User, error) {
	user, err := s.repo.UpdateStats(ctx, id, update)
	if err != nil {
		return nil, apperr.Internal("failed to update stats", err)
	}
	if user == nil {
		return nil, apperr.NotFound("user not found")
	}
	return sanitize(user), nil
}

func (s *UserService) Delete(ctx context.Context, id uuid.UUID) error {
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return apperr.Internal("failed to delete user", err)
	}
	if !deleted {
		return apperr.NotFound("user not found")
	}
	s.logger.Info("user deleted", zap.String("user_id", id.String()))
	return nil
}

// Leaderboard returns users ordered by rating descending. limit<=0 falls
// back to the default of 10.
func (s *UserService) Leaderboard(ctx context.Context, limit int) ([]models.User, error) {
	if limit <= 0 {
		limit = defaultLeaderboardLimit
	}
	users, err := s.repo.Leaderboard(ctx, limit)
	if err != nil {
		return nil, apperr.Internal("failed to load leaderboard", err)
	}
	out := make([]models.User, 0, len(users))
	for i := range users {
		out = append(out, *sanitize(&users[i]))
	}
	return out, nil
}

// sanitize copies the user without the password hash. Every user leaving
// this package goes through here.
func sanitize(user *models.User) *models.User {
	clean := *user
	clean.PasswordHash = ""
	return &clean
}
