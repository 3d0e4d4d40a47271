package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/avik-b/pulseboard/internal/apperr"
	"github.com/avik-b/pulseboard/internal/bus"
	"github.com/avik-b/pulseboard/internal/models"
	"github.com/avik-b/pulseboard/internal/repository"
)

const (
	defaultSessionTitle = "New Chat Session"

	defaultHistoryLimit = 50
	maxHistoryLimit     = 100
)

// ChatService is the session registry: it owns session lifecycle, the
// message/counter consistency rule, and ownership checks on delete.
type ChatService struct {
	repo      repository.ChatRepository
	publisher bus.Publisher
	logger    *zap.Logger
}

func NewChatService(repo repository.ChatRepository, publisher bus.Publisher, logger *zap.Logger) *ChatService {
	return &ChatService{repo: repo, publisher: publisher, logger: logger}
}

func (s *ChatService) CreateSession(ctx context.Context, userID uuid.UUID) (*models.ChatSession, error) {
	session, err := s.repo.CreateSession(ctx, models.ChatSession{
		ID:     uuid.New(),
		UserID: userID,
		Title:  defaultSessionTitle,
	})
	if err != nil {
		return nil, apperr.Internal("failed to create session", err)
	}
	return session, nil
}

// PostUserMessage stores a user message. A missing or unresolvable session
// id transparently creates a fresh session first, so a client can start a
// conversation without an explicit create call.
func (s *ChatService) PostUserMessage(ctx context.Context, userID uuid.UUID, sessionID *uuid.UUID, text string, msgContext map[string]any) (*models.ChatMessage, error) {
	session, err := s.resolveSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	return s.append(ctx, models.ChatMessage{
		ID:          uuid.New(),
		Message:     text,
		MessageType: models.MessageTypeUser,
		UserID:      userID,
		SessionID:   session.ID,
		Timestamp:   time.Now(),
		Metadata:    msgContext,
	})
}

// PostAssistantMessage stores an assistant reply into an existing session,
// under the same message/counter consistency rule as user messages.
func (s *ChatService) PostAssistantMessage(ctx context.Context, userID, sessionID uuid.UUID, text string, metadata map[string]any) (*models.ChatMessage, error) {
	return s.append(ctx, models.ChatMessage{
		ID:          uuid.New(),
		Message:     text,
		MessageType: models.MessageTypeAI,
		UserID:      userID,
		SessionID:   sessionID,
		Timestamp:   time.Now(),
		Metadata:    metadata,
	})
}

func (s *ChatService) append(ctx context.Context, msg models.ChatMessage) (*models.ChatMessage, error) {
	stored, err := s.repo.AppendMessage(ctx, msg)
	if err != nil {
		return nil, apperr.Internal("failed to store message", err)
	}

	if s.publisher != nil {
		if err := s.publisher.Publish(bus.TopicChatMessages, bus.ChatMessageStored{
			UserID:  stored.UserID,
			Message: *stored,
		}); err != nil {
			s.logger.Warn("failed to publish chat message event", zap.Error(err))
		}
	}
	return stored, nil
}

func (s *ChatService) resolveSession(ctx context.Context, userID uuid.UUID, sessionID *uuid.UUID) (*models.ChatSession, error) {
	if sessionID != nil {
		session, err := s.repo.GetSession(ctx, *sessionID)
		if err != nil {
			return nil, apperr.Internal("failed to look up session", err)
		}
		if session != nil {
			return session, nil
		}
	}
	return s.CreateSession(ctx, userID)
}

// History returns messages oldest-to-newest. The store query is newest-first
// (that is the indexed direction) and the result is reversed here.
func (s *ChatService) History(ctx context.Context, userID uuid.UUID, sessionID *uuid.UUID, limit int) ([]models.ChatMessage, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	messages, err := s.repo.ListMessages(ctx, userID, sessionID, limit)
	if err != nil {
		return nil, apperr.Internal("failed to load history", err)
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (s *ChatService) ListSessions(ctx context.Context, userID uuid.UUID) ([]models.ChatSession, error) {
	sessions, err := s.repo.ListSessions(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("failed to list sessions", err)
	}
	return sessions, nil
}

// DeleteSession soft-deletes a session after verifying the caller owns it.
// Messages are retained. Deleting an already-inactive session is a no-op,
// not an error.
func (s *ChatService) DeleteSession(ctx context.Context, sessionID, userID uuid.UUID) error {
	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return apperr.Internal("failed to look up session", err)
	}
	if session == nil {
		return apperr.NotFound("session not found")
	}
	if session.UserID != userID {
		return apperr.Forbidden("session belongs to another user")
	}
	if err := s.repo.DeactivateSession(ctx, sessionID); err != nil {
		return apperr.Internal("failed to delete session", err)
	}
	return nil
}
