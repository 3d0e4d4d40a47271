package api

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/avik-b/pulseboard/internal/middleware"
	"github.com/avik-b/pulseboard/internal/service"
)

// ChatHandler covers message posting, history and session lifecycle.
type ChatHandler struct {
	chat   *service.ChatService
	logger *zap.Logger
}

func NewChatHandler(chat *service.ChatService, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{chat: chat, logger: logger}
}

type postMessageRequest struct {
	Message   string         `json:"message" binding:"required"`
	SessionID *uuid.UUID     `json:"sessionId"`
	Context   map[string]any `json:"context"`
}

// PostMessage stores a user message. Omitting sessionId starts a fresh
// session; the stored message carries the resolved session id back.
func (h *ChatHandler) PostMessage(c *gin.Context) {
	var req postMessageRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, h.logger, err)
		return
	}

	msg, err := h.chat.PostUserMessage(c.Request.Context(), middleware.GetUserID(c), req.SessionID, req.Message, req.Context)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondCreated(c, msg, "message saved successfully")
}

// History returns messages oldest-to-newest, optionally scoped to one
// session. limit defaults to 50 and caps at 100.
func (h *ChatHandler) History(c *gin.Context) {
	var sessionID *uuid.UUID
	if raw := c.Query("sessionId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			respondInvalid(c, h.logger, "invalid session id")
			return
		}
		sessionID = &id
	}

	limit, _ := strconv.Atoi(c.Query("limit"))

	messages, err := h.chat.History(c.Request.Context(), middleware.GetUserID(c), sessionID, limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, gin.H{"messages": messages, "count": len(messages)}, "")
}

func (h *ChatHandler) CreateSession(c *gin.Context) {
	session, err := h.chat.CreateSession(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondCreated(c, session, "session created")
}

func (h *ChatHandler) ListSessions(c *gin.Context) {
	sessions, err := h.chat.ListSessions(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, gin.H{"sessions": sessions, "count": len(sessions)}, "")
}

// DeleteSession soft-deletes one of the caller's own sessions.
func (h *ChatHandler) DeleteSession(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("sessionId"))
	if err != nil {
		respondInvalid(c, h.logger, "invalid session id")
		return
	}

	if err := h.chat.DeleteSession(c.Request.Context(), sessionID, middleware.GetUserID(c)); err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, nil, "session deleted successfully")
}

// Health is an unauthenticated liveness probe for the chat surface.
func (h *ChatHandler) Health(c *gin.Context) {
	respondOK(c, gin.H{"status": "ok", "service": "chat"}, "")
}
