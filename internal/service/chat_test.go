package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/avik-b/pulseboard/internal/apperr"
	"github.com/avik-b/pulseboard/internal/models"
	"github.com/avik-b/pulseboard/internal/repository/memory"
)

// capturingPublisher records published events for assertions.
type capturingPublisher struct {
	topics []string
}

func (p *capturingPublisher) Publish(topic string, _ any) error {
	p.topics = append(p.topics, topic)
	return nil
}

func newChatService(t *testing.T) (*ChatService, *memory.ChatStore, *capturingPublisher) {
	t.Helper()
	repo := memory.NewChatStore()
	pub := &capturingPublisher{}
	return NewChatService(repo, pub, zap.NewNop()), repo, pub
}

func TestCreateSessionDefaults(t *testing.T) {
	svc, _, _ := newChatService(t)

	session, err := svc.CreateSession(context.Background(), uuid.New())
	require.NoError(t, err)

	assert.Equal(t, "New Chat Session", session.Title)
	assert.Equal(t, 0, session.MessageCount)
	assert.True(t, session.IsActive)
}

func TestPostUserMessageCreatesSessionWhenMissing(t *testing.T) {
	svc, repo, pub := newChatService(t)
	userID := uuid.New()

	msg, err := svc.PostUserMessage(context.Background(), userID, nil, "hello", nil)
	require.NoError(t, err)
	assert.Equal(t, models.MessageTypeUser, msg.MessageType)
	assert.NotEqual(t, uuid.Nil, msg.SessionID)

	session, err := repo.GetSession(context.Background(), msg.SessionID)
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, 1, session.MessageCount)

	assert.Equal(t, []string{"chat.messages"}, pub.topics)
}

func TestPostUserMessageUnknownSessionIDCreatesFresh(t *testing.T) {
	svc, repo, _ := newChatService(t)
	userID := uuid.New()

	bogus := uuid.New()
	msg, err := svc.PostUserMessage(context.Background(), userID, &bogus, "hello", nil)
	require.NoError(t, err)
	assert.NotEqual(t, bogus, msg.SessionID)

	session, err := repo.GetSession(context.Background(), msg.SessionID)
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, userID, session.UserID)
}

func TestMessageCountTracksAppends(t *testing.T) {
	svc, repo, _ := newChatService(t)
	userID := uuid.New()

	session, err := svc.CreateSession(context.Background(), userID)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := svc.PostUserMessage(context.Background(), userID, &session.ID, "msg", nil)
		require.NoError(t, err)
	}
	_, err = svc.PostAssistantMessage(context.Background(), userID, session.ID, "reply", nil)
	require.NoError(t, err)

	got, err := repo.GetSession(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, got.MessageCount)
}

func TestHistoryOrderAndLimit(t *testing.T) {
	svc, repo, _ := newChatService(t)
	userID := uuid.New()

	session, err := svc.CreateSession(context.Background(), userID)
	require.NoError(t, err)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	texts := []string{"first", "second", "third"}
	for i, text := range texts {
		_, err := repo.AppendMessage(context.Background(), models.ChatMessage{
			ID:          uuid.New(),
			Message:     text,
			MessageType: models.MessageTypeUser,
			UserID:      userID,
			SessionID:   session.ID,
			Timestamp:   base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	messages, err := svc.History(context.Background(), userID, &session.ID, 0)
	require.NoError(t, err)
	require.Len(t, messages, 3)
	assert.Equal(t, "first", messages[0].Message)
	assert.Equal(t, "third", messages[2].Message)

	// A limit keeps the NEWEST messages, still returned oldest-first.
	messages, err = svc.History(context.Background(), userID, &session.ID, 2)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "second", messages[0].Message)
	assert.Equal(t, "third", messages[1].Message)
}

func TestHistoryLimitCap(t *testing.T) {
	svc, repo, _ := newChatService(t)
	userID := uuid.New()

	session, err := svc.CreateSession(context.Background(), userID)
	require.NoError(t, err)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 120; i++ {
		_, err := repo.AppendMessage(context.Background(), models.ChatMessage{
			ID:        uuid.New(),
			Message:   "m",
			UserID:    userID,
			SessionID: session.ID,
			Timestamp: base.Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
	}

	messages, err := svc.History(context.Background(), userID, &session.ID, 500)
	require.NoError(t, err)
	assert.Len(t, messages, 100)
}

func TestListSessionsExcludesDeleted(t *testing.T) {
	svc, _, _ := newChatService(t)
	userID := uuid.New()

	first, err := svc.CreateSession(context.Background(), userID)
	require.NoError(t, err)
	second, err := svc.CreateSession(context.Background(), userID)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteSession(context.Background(), first.ID, userID))

	sessions, err := svc.ListSessions(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, second.ID, sessions[0].ID)
}

func TestDeleteSessionOwnership(t *testing.T) {
	svc, _, _ := newChatService(t)
	owner := uuid.New()
	stranger := uuid.New()

	session, err := svc.CreateSession(context.Background(), owner)
	require.NoError(t, err)

	err = svc.DeleteSession(context.Background(), session.ID, stranger)
	require.Error(t, err)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	// The session survives a foreign delete attempt.
	sessions, err := svc.ListSessions(context.Background(), owner)
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
}

func TestDeleteSessionIdempotent(t *testing.T) {
	svc, _, _ := newChatService(t)
	userID := uuid.New()

	session, err := svc.CreateSession(context.Background(), userID)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteSession(context.Background(), session.ID, userID))
	require.NoError(t, svc.DeleteSession(context.Background(), session.ID, userID))
}

func TestDeleteSessionNotFound(t *testing.T) {
	svc, _, _ := newChatService(t)

	err := svc.DeleteSession(context.Background(), uuid.New(), uuid.New())
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestDeletedSessionMessagesRetained(t *testing.T) {
	svc, _, _ := newChatService(t)
	userID := uuid.New()

	msg, err := svc.PostUserMessage(context.Background(), userID, nil, "keep me", nil)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteSession(context.Background(), msg.SessionID, userID))

	messages, err := svc.History(context.Background(), userID, &msg.SessionID, 0)
	require.NoError(t, err)
	assert.Len(t, messages, 1)
}
