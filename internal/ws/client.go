package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024

	sendBuffer = 256
)

// inboundEvent is what clients send over the wire. Data stays raw until the
// gateway knows the event type and can decode it into a typed payload.
type inboundEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Client is one live connection bound to a user. Frames to deliver go
// through the buffered send channel; writePump owns the actual socket
// writes, readPump owns the reads, so the two directions never contend.
type Client struct {
	id     uuid.UUID
	userID uuid.UUID
	conn   *websocket.Conn
	send   chan Frame

	mu     sync.Mutex
	closed bool
}

func newClient(conn *websocket.Conn, userID uuid.UUID) *Client {
	return &Client{
		id:     uuid.New(),
		userID: userID,
		conn:   conn,
		send:   make(chan Frame, sendBuffer),
	}
}

// enqueue delivers a frame to this client's send buffer. Best-effort: a
// full buffer or a closed client drops the frame.
func (c *Client) enqueue(frame Frame, logger *zap.Logger) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- frame:
	default:
		logger.Warn("client send buffer full, dropping frame",
			zap.String("user_id", c.userID.String()),
			zap.String("frame_type", frame.Type),
		)
	}
}

// closeSend closes the send channel exactly once. Only the hub calls this,
// from Unbind.
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// readPump reads inbound events and hands them to the gateway until the
// connection dies, then unbinds.
func (c *Client) readPump(g *Gateway) {
	defer func() {
		g.hub.Unbind(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		g.logger.Error("failed to set read deadline", zap.Error(err))
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var event inboundEvent
		if err := c.conn.ReadJSON(&event); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				g.logger.Warn("unexpected websocket close", zap.Error(err))
			}
			return
		}
		// Events from one connection are handled in order, one at a time.
		g.dispatch(c, event)
	}
}

// writePump drains the send channel onto the socket and keeps the
// connection alive with pings.
func (c *Client) writePump(g *Gateway) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				g.logger.Error("failed to set write deadline", zap.Error(err))
				return
			}
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(frame); err != nil {
				g.logger.Warn("failed to write frame", zap.Error(err))
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
