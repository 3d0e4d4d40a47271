package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/avik-b/pulseboard/internal/models"
)

// Every method takes a context because every method does I/O: request
// cancellation and deadlines propagate straight into the store driver.
//
// Lookup methods return (nil, nil) when the entity does not exist; the
// service layer decides whether that is a NotFound error or a signal to
// create something (the chat registry creates a session on an unknown id).

// ProfileUpdate carries the mutable user fields; nil means "leave as is".
type ProfileUpdate struct {
	Username    *string
	Avatar      *string
	Preferences *models.UserPreferences
}

// StatsUpdate carries partial stats mutations; nil means "leave as is".
type StatsUpdate struct {
	GamesPlayed  *int
	GamesWon     *int
	Rating       *int
	Achievements *[]string
}

// UserRepository persists identities. The password hash is stored and
// returned on the record; projections that must not carry it are the
// service layer's job.
type UserRepository interface {
	Create(ctx context.Context, user models.User) (*models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, update ProfileUpdate) (*models.User, error)
	UpdateStats(ctx context.Context, id uuid.UUID, update StatsUpdate) (*models.User, error)

	// Delete removes the user. Returns false when no such user existed.
	Delete(ctx context.Context, id uuid.UUID) (bool, error)

	// Leaderboard returns users ordered by stats rating descending.
	Leaderboard(ctx context.Context, limit int) ([]models.User, error)
}

// SampleFilter narrows an analytics query. MetricTypes uses OR semantics;
// Since is an inclusive lower timestamp bound.
type SampleFilter struct {
	UserID      uuid.UUID
	MetricTypes []models.MetricType
	Since       *time.Time
	Limit       int
}

// AnalyticsRepository persists immutable metric samples.
type AnalyticsRepository interface {
	Insert(ctx context.Context, sample models.AnalyticsSample) (*models.AnalyticsSample, error)

	// Query returns samples newest-first.
	Query(ctx context.Context, filter SampleFilter) ([]models.AnalyticsSample, error)
}

// ChatRepository persists sessions and their ordered message history.
type ChatRepository interface {
	CreateSession(ctx context.Context, session models.ChatSession) (*models.ChatSession, error)
	GetSession(ctx context.Context, id uuid.UUID) (*models.ChatSession, error)

	// AppendMessage stores the message AND bumps the session's message count
	// and updatedAt in a single transaction: a message is never visible
	// without its session's counter reflecting it.
	AppendMessage(ctx context.Context, msg models.ChatMessage) (*models.ChatMessage, error)

	// ListMessages returns messages for a user (optionally narrowed to one
	// session), newest-first, capped at limit.
	ListMessages(ctx context.Context, userID uuid.UUID, sessionID *uuid.UUID, limit int) ([]models.ChatMessage, error)

	// ListSessions returns only active sessions, most recently updated first.
	ListSessions(ctx context.Context, userID uuid.UUID) ([]models.ChatSession, error)

	// DeactivateSession soft-deletes a session. Idempotent: deactivating an
	// already-inactive session is a no-op, not an error.
	DeactivateSession(ctx context.Context, id uuid.UUID) error
}

// DashboardUpdate carries the mutable dashboard fields; nil means keep.
type DashboardUpdate struct {
	Title       *string
	Description *string
	Widgets     *[]models.Widget
	IsPublic    *bool
}

// DashboardRepository persists user-defined widget layouts.
type DashboardRepository interface {
	Create(ctx context.Context, dashboard models.Dashboard) (*models.Dashboard, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Dashboard, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Dashboard, error)
	ListPublic(ctx context.Context) ([]models.Dashboard, error)
	Update(ctx context.Context, id uuid.UUID, update DashboardUpdate) (*models.Dashboard, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
}
