package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/avik-b/pulseboard/internal/auth"
	"github.com/avik-b/pulseboard/internal/bus"
	"github.com/avik-b/pulseboard/internal/models"
	"github.com/avik-b/pulseboard/internal/service"
)

// Inbound event types.
const (
	eventChatMessage    = "chat_message"
	eventAnalyticsQuery = "analytics_query"
	eventJoinRoom       = "join_room"
	eventLeaveRoom      = "leave_room"
)

// Outbound event types.
const (
	eventConnected         = "connected"
	eventChatResponse      = "chat_response"
	eventAnalyticsResponse = "analytics_response"
	eventRoomJoined        = "room_joined"
	eventRoomLeft          = "room_left"
	eventError             = "error"
	eventAnalyticsUpdate   = "analytics_update"
	eventChatUpdate        = "chat_update"
)

// Gateway authenticates socket connections, binds each one to a user and
// their personal room, relays inbound chat/analytics events to the services,
// and fans responses out to every connection the user has open.
type Gateway struct {
	hub       *Hub
	chat      *service.ChatService
	analytics *service.AnalyticsService
	jwtSecret string
	logger    *zap.Logger

	upgrader websocket.Upgrader

	// Delayed assistant replies are deliberately not tied to the originating
	// connection: if it drops before the timer fires, the reply is still
	// persisted and broadcast to the user's room. Timers are tracked only so
	// shutdown can stop them.
	assistantDelay time.Duration
	timersMu       sync.Mutex
	timers         map[*time.Timer]struct{}
	shuttingDown   bool
}

func NewGateway(
	hub *Hub,
	chat *service.ChatService,
	analytics *service.AnalyticsService,
	jwtSecret string,
	assistantDelay time.Duration,
	logger *zap.Logger,
) *Gateway {
	return &Gateway{
		hub:            hub,
		chat:           chat,
		analytics:      analytics,
		jwtSecret:      jwtSecret,
		assistantDelay: assistantDelay,
		logger:         logger,
		timers:         make(map[*time.Timer]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Browser clients connect from any origin; auth happens via the
			// bearer token, not the Origin header.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// HandleConnection is the GET /ws handler. The bearer token comes from the
// `token` query parameter or the Authorization header. Invalid tokens get a
// best-effort error frame before the connection is closed.
func (g *Gateway) HandleConnection(c *gin.Context) {
	conn, err := g.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		g.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	token := c.Query("token")
	if token == "" {
		header := c.GetHeader("Authorization")
		if parts := strings.SplitN(header, " ", 2); len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			token = parts[1]
		}
	}

	claims, err := auth.ParseAccessToken(token, g.jwtSecret)
	if err != nil {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		_ = conn.WriteJSON(NewFrame(eventError, gin.H{"message": "authentication required"}))
		_ = conn.Close()
		return
	}

	client := newClient(conn, claims.UserID)
	g.hub.Bind(client)
	g.hub.Join(client, UserRoom(claims.UserID))

	client.enqueue(NewFrame(eventConnected, gin.H{
		"userId":    claims.UserID,
		"connected": true,
	}), g.logger)

	go client.writePump(g)
	go client.readPump(g)
}

type chatMessagePayload struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
}

type analyticsQueryPayload struct {
	Query     string `json:"query"`
	TimeRange string `json:"timeRange"`
}

type roomPayload struct {
	Room string `json:"room"`
}

// dispatch routes one inbound event. Handler failures are reported to the
// originating connection only; they never take down the connection or the
// process.
func (g *Gateway) dispatch(client *Client, event inboundEvent) {
	userID, bound := g.hub.Lookup(client.id)
	if !bound {
		g.sendError(client, "user not authenticated")
		return
	}

	switch event.Type {
	case eventChatMessage:
		g.handleChatMessage(client, userID, event.Data)
	case eventAnalyticsQuery:
		g.handleAnalyticsQuery(client, userID, event.Data)
	case eventJoinRoom:
		g.handleJoinRoom(client, userID, event.Data)
	case eventLeaveRoom:
		g.handleLeaveRoom(client, userID, event.Data)
	default:
		g.sendError(client, fmt.Sprintf("unknown event type %q", event.Type))
	}
}

func (g *Gateway) handleChatMessage(client *Client, userID uuid.UUID, raw json.RawMessage) {
	var payload chatMessagePayload
	if err := json.Unmarshal(raw, &payload); err != nil || payload.Message == "" {
		g.sendError(client, "invalid chat_message payload")
		return
	}

	// An unparsable or unknown session id falls through to nil, which makes
	// the registry create a fresh session.
	var sessionID *uuid.UUID
	if id, err := uuid.Parse(payload.SessionID); err == nil {
		sessionID = &id
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stored, err := g.chat.PostUserMessage(ctx, userID, sessionID, payload.Message, nil)
	if err != nil {
		g.logger.Error("chat message failed", zap.Error(err))
		g.sendError(client, "failed to process chat message")
		return
	}

	g.hub.BroadcastRoom(UserRoom(userID), NewFrame(eventChatMessage, stored))

	g.scheduleAssistantReply(userID, stored.SessionID, payload.Message)
}

// scheduleAssistantReply persists and broadcasts a canned assistant reply
// after a fixed delay. The reply text is a placeholder for a real assistant
// integration.
func (g *Gateway) scheduleAssistantReply(userID, sessionID uuid.UUID, userText string) {
	g.timersMu.Lock()
	if g.shuttingDown {
		g.timersMu.Unlock()
		return
	}
	var timer *time.Timer
	timer = time.AfterFunc(g.assistantDelay, func() {
		g.timersMu.Lock()
		delete(g.timers, timer)
		g.timersMu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		replyText := fmt.Sprintf("I received your message: %q. This is a simulated AI response.", userText)
		reply, err := g.chat.PostAssistantMessage(ctx, userID, sessionID, replyText, nil)
		if err != nil {
			g.logger.Error("assistant reply failed", zap.Error(err))
			return
		}
		g.hub.BroadcastRoom(UserRoom(userID), NewFrame(eventChatResponse, reply))
	})
	g.timers[timer] = struct{}{}
	g.timersMu.Unlock()
}

func (g *Gateway) handleAnalyticsQuery(client *Client, userID uuid.UUID, raw json.RawMessage) {
	var payload analyticsQueryPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		g.sendError(client, "invalid analytics_query payload")
		return
	}

	timeRange, err := models.ParseTimeRange(payload.TimeRange)
	if err != nil {
		g.sendError(client, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	samples, err := g.analytics.Query(ctx, userID, nil, &timeRange, 0)
	if err != nil {
		g.logger.Error("analytics query failed", zap.Error(err))
		g.sendError(client, "failed to process analytics query")
		return
	}

	g.hub.BroadcastRoom(UserRoom(userID), NewFrame(eventAnalyticsResponse, gin.H{
		"query": payload.Query,
		"analyticsData": gin.H{
			"data":      samples,
			"count":     len(samples),
			"timeRange": timeRange,
		},
	}))
}

func (g *Gateway) handleJoinRoom(client *Client, userID uuid.UUID, raw json.RawMessage) {
	room, ok := g.parseRoom(client, userID, raw)
	if !ok {
		return
	}
	g.hub.Join(client, room)
	client.enqueue(NewFrame(eventRoomJoined, gin.H{"room": room, "userId": userID}), g.logger)
}

func (g *Gateway) handleLeaveRoom(client *Client, userID uuid.UUID, raw json.RawMessage) {
	room, ok := g.parseRoom(client, userID, raw)
	if !ok {
		return
	}
	g.hub.Leave(client, room)
	client.enqueue(NewFrame(eventRoomLeft, gin.H{"room": room, "userId": userID}), g.logger)
}

// parseRoom validates a caller-named room. Names are free-form public
// broadcast channels except the reserved "user:" namespace, where only the
// caller's own personal room is allowed.
func (g *Gateway) parseRoom(client *Client, userID uuid.UUID, raw json.RawMessage) (string, bool) {
	var payload roomPayload
	if err := json.Unmarshal(raw, &payload); err != nil || payload.Room == "" {
		g.sendError(client, "invalid room payload")
		return "", false
	}
	if strings.HasPrefix(payload.Room, "user:") && payload.Room != UserRoom(userID) {
		g.sendError(client, "cannot join another user's personal room")
		return "", false
	}
	return payload.Room, true
}

func (g *Gateway) sendError(client *Client, msg string) {
	client.enqueue(NewFrame(eventError, gin.H{"message": msg}), g.logger)
}

// BroadcastAnalyticsUpdate pushes an unsolicited analytics update to every
// connection a user has open.
func (g *Gateway) BroadcastAnalyticsUpdate(userID uuid.UUID, data any) {
	g.hub.BroadcastRoom(UserRoom(userID), NewFrame(eventAnalyticsUpdate, data))
}

// BroadcastChatUpdate pushes an unsolicited chat update to a user's room.
func (g *Gateway) BroadcastChatUpdate(userID uuid.UUID, data any) {
	g.hub.BroadcastRoom(UserRoom(userID), NewFrame(eventChatUpdate, data))
}

// BroadcastToAll pushes a frame of an arbitrary type to every connection.
func (g *Gateway) BroadcastToAll(frameType string, data any) {
	g.hub.BroadcastAll(NewFrame(frameType, data))
}

// StartForwarders consumes the event bus and turns ingestion and chat
// events into live pushes. REST-initiated writes reach connected sockets
// through this path.
func (g *Gateway) StartForwarders(ctx context.Context, b *bus.Bus) error {
	metricCh, err := b.Subscribe(ctx, bus.TopicMetricIngested)
	if err != nil {
		return err
	}
	chatCh, err := b.Subscribe(ctx, bus.TopicChatMessages)
	if err != nil {
		return err
	}

	go func() {
		for msg := range metricCh {
			var event bus.MetricIngested
			if err := json.Unmarshal(msg.Payload, &event); err != nil {
				g.logger.Warn("bad metric event payload", zap.Error(err))
				msg.Ack()
				continue
			}
			g.BroadcastAnalyticsUpdate(event.UserID, event.Sample)
			msg.Ack()
		}
	}()

	go func() {
		for msg := range chatCh {
			var event bus.ChatMessageStored
			if err := json.Unmarshal(msg.Payload, &event); err != nil {
				g.logger.Warn("bad chat event payload", zap.Error(err))
				msg.Ack()
				continue
			}
			g.BroadcastChatUpdate(event.UserID, event.Message)
			msg.Ack()
		}
	}()

	return nil
}

// Close stops pending assistant-reply timers and disconnects every client.
func (g *Gateway) Close() {
	g.timersMu.Lock()
	g.shuttingDown = true
	for timer := range g.timers {
		timer.Stop()
	}
	g.timers = make(map[*time.Timer]struct{})
	g.timersMu.Unlock()

	g.hub.CloseAll()
}
