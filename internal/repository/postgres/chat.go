package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/avik-b/pulseboard/internal/models"
)

type ChatStore struct {
	pool *pgxpool.Pool
}

func NewChatStore(pool *pgxpool.Pool) *ChatStore {
	return &ChatStore{pool: pool}
}

const sessionColumns = `id, user_id, title, created_at, updated_at, message_count, is_active`
const messageColumns = `id, message, message_type, user_id, session_id, timestamp, metadata`

func scanSession(row pgx.Row) (*models.ChatSession, error) {
	var session models.ChatSession
	err := row.Scan(
		&session.ID,
		&session.UserID,
		&session.Title,
		&session.CreatedAt,
		&session.UpdatedAt,
		&session.MessageCount,
		&session.IsActive,
	)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func scanMessage(row pgx.Row) (*models.ChatMessage, error) {
	var (
		msg      models.ChatMessage
		metadata []byte
	)
	err := row.Scan(
		&msg.ID,
		&msg.Message,
		&msg.MessageType,
		&msg.UserID,
		&msg.SessionID,
		&msg.Timestamp,
		&metadata,
	)
	if err != nil {
		return nil, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &msg.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return &msg, nil
}

func (s *ChatStore) CreateSession(ctx context.Context, session models.ChatSession) (*models.ChatSession, error) {
	query := `
		INSERT INTO chat_sessions (id, user_id, title, created_at, updated_at, message_count, is_active)
		VALUES ($1, $2, $3, now(), now(), 0, true)
		RETURNING ` + sessionColumns

	stored, err := scanSession(s.pool.QueryRow(ctx, query, session.ID, session.UserID, session.Title))
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	return stored, nil
}

func (s *ChatStore) GetSession(ctx context.Context, id uuid.UUID) (*models.ChatSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM chat_sessions WHERE id = $1`

	session, err := scanSession(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return session, nil
}

// AppendMessage inserts the message and bumps the session counter in one
// transaction. Either both writes land or neither does, so the counter can
// never lag behind the message history.
func (s *ChatStore) AppendMessage(ctx context.Context, msg models.ChatMessage) (*models.ChatMessage, error) {
	var metadata []byte
	if msg.Metadata != nil {
		raw, err := json.Marshal(msg.Metadata)
		if err != nil {
			return nil, fmt.Errorf("encode metadata: %w", err)
		}
		metadata = raw
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback(ctx)

	insert := `
		INSERT INTO chat_messages (id, message, message_type, user_id, session_id, timestamp, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + messageColumns

	stored, err := scanMessage(tx.QueryRow(ctx, insert,
		msg.ID, msg.Message, msg.MessageType, msg.UserID, msg.SessionID, msg.Timestamp, metadata))
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	bump := `
		UPDATE chat_sessions
		SET message_count = message_count + 1, updated_at = now()
		WHERE id = $1`
	if _, err := tx.Exec(ctx, bump, msg.SessionID); err != nil {
		return nil, fmt.Errorf("bump session counter: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit append: %w", err)
	}
	return stored, nil
}

func (s *ChatStore) ListMessages(ctx context.Context, userID uuid.UUID, sessionID *uuid.UUID, limit int) ([]models.ChatMessage, error) {
	var (
		query string
		args  []any
	)
	if sessionID != nil {
		query = `
			SELECT ` + messageColumns + `
			FROM chat_messages
			WHERE user_id = $1 AND session_id = $2
			ORDER BY timestamp DESC
			LIMIT $3`
		args = []any{userID, *sessionID, limit}
	} else {
		query = `
			SELECT ` + messageColumns + `
			FROM chat_messages
			WHERE user_id = $1
			ORDER BY timestamp DESC
			LIMIT $2`
		args = []any{userID, limit}
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	messages := make([]models.ChatMessage, 0)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, *msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return messages, nil
}

func (s *ChatStore) ListSessions(ctx context.Context, userID uuid.UUID) ([]models.ChatSession, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM chat_sessions
		WHERE user_id = $1 AND is_active = true
		ORDER BY updated_at DESC`

	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]models.ChatSession, 0)
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, *session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

func (s *ChatStore) DeactivateSession(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `UPDATE chat_sessions SET is_active = false WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deactivate session: %w", err)
	}
	return nil
}
