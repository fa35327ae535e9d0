package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/JackBerck/guyub-rukun-sub001/internal/apperror"
	"github.com/JackBerck/guyub-rukun-sub001/internal/dto"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second // Time allowed to write a message to the peer
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 16 * 1024
	sendBufferSize = 64
	commandTimeout = 5 * time.Second
)

// Session identifies the member behind a websocket connection
type Session struct {
	UserID    uuid.UUID
	Name      string
	ExpiresAt time.Time // zero means the session never expires
}

// Client is one websocket connection. All writes go through send and
// are performed by writePump only.
type Client struct {
	UserID uuid.UUID
	Name   string

	hub         *Hub
	conn        *websocket.Conn
	send        chan []byte
	expiresAt   time.Time
	connectedAt time.Time

	// guarded by hub.mu
	channels map[string]struct{}

	mu     sync.Mutex
	closed bool
}

// Serve runs the connection until either side closes it
func (h *Hub) Serve(ctx context.Context, conn *websocket.Conn, s Session) {
	c := &Client{
		UserID:      s.UserID,
		Name:        s.Name,
		hub:         h,
		conn:        conn,
		send:        make(chan []byte, sendBufferSize),
		expiresAt:   s.ExpiresAt,
		connectedAt: time.Now(),
		channels:    make(map[string]struct{}),
	}

	h.register(ctx, c)
	defer h.unregister(c)

	go c.writePump()
	c.readPump()
}

// enqueue queues a frame without blocking. False when the buffer is full
// or the client is gone.
func (c *Client) enqueue(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *Client) reply(r Reply) {
	frame, err := json.Marshal(r)
	if err != nil {
		c.hub.log.Error("Failed to encode reply", zap.Error(err))
		return
	}
	if !c.enqueue(frame) {
		c.hub.log.Warn("Client send buffer full, reply dropped",
			zap.String("user_id", c.UserID.String()),
			zap.String("type", r.Type),
		)
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *Client) readPump() {
	defer c.conn.Close()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.hub.log.Warn("WebSocket read error",
					zap.String("user_id", c.UserID.String()),
					zap.Error(err),
				)
			}
			return
		}

		// Any frame that does not decode, truncated ones included, gets an
		// error reply and the connection stays open
		var cmd Command
		if err := json.Unmarshal(raw, &cmd); err != nil {
			c.reply(Reply{Type: ReplyError, Error: "invalid message format"})
			continue
		}

		c.handle(cmd)
	}
}

func (c *Client) handle(cmd Command) {
	switch cmd.Type {
	case CommandSubscribe:
		if err := c.hub.Subscribe(c, cmd.Channel); err != nil {
			c.reply(Reply{Type: ReplyError, TempID: cmd.TempID, Channel: cmd.Channel, Error: apperror.PublicMessage(err)})
			return
		}
		c.reply(Reply{Type: ReplySubscribed, TempID: cmd.TempID, Channel: cmd.Channel})

	case CommandUnsubscribe:
		c.hub.Unsubscribe(c, cmd.Channel)
		c.reply(Reply{Type: ReplyUnsubscribed, TempID: cmd.TempID, Channel: cmd.Channel})

	case CommandSend:
		c.handleSend(cmd)

	default:
		c.reply(Reply{Type: ReplyError, TempID: cmd.TempID, Error: "unknown message type"})
	}
}

func (c *Client) handleSend(cmd Command) {
	receiverID, err := uuid.Parse(cmd.ReceiverID)
	if err != nil {
		c.reply(Reply{
			Type:   ReplyAck,
			TempID: cmd.TempID,
			Status: "error",
			Error:  "invalid receiver_id",
			Fields: map[string][]string{"receiver_id": {"invalid receiver_id"}},
		})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	msg, err := c.hub.sender.Send(ctx, c.UserID, receiverID, cmd.Message)
	if err != nil {
		r := Reply{Type: ReplyAck, TempID: cmd.TempID, Status: "error", Error: apperror.PublicMessage(err)}
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			r.Fields = appErr.Fields
		}
		c.reply(r)
		return
	}

	view := dto.NewMessage(msg)
	c.reply(Reply{Type: ReplyAck, TempID: cmd.TempID, Status: "success", Message: &view})
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	var expired <-chan time.Time
	if !c.expiresAt.IsZero() {
		timer := time.NewTimer(time.Until(c.expiresAt))
		defer timer.Stop()
		expired = timer.C
	}

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-expired:
			c.hub.log.Info("Session expired", zap.String("user_id", c.UserID.String()))
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteJSON(Reply{Type: ReplySessionExpired, Error: "token expired"})
			c.conn.WriteMessage(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session expired"),
			)
			return
		}
	}
}
