package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/JackBerck/guyub-rukun-sub001/internal/broker"
	"github.com/JackBerck/guyub-rukun-sub001/internal/models"
	"github.com/JackBerck/guyub-rukun-sub001/internal/notifier"
	"github.com/JackBerck/guyub-rukun-sub001/internal/presence"
	"github.com/JackBerck/guyub-rukun-sub001/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const presenceRefreshPeriod = 30 * time.Second

// MessageSender stores messages sent over a websocket
type MessageSender interface {
	Send(ctx context.Context, senderID, receiverID uuid.UUID, body string) (*models.Message, error)
}

// Hub fans broker deliveries out to the websocket clients subscribed on
// this instance. Every instance subscribes to all private user channels,
// so a user can be connected to any of them.
type Hub struct {
	broker   broker.MessageBroker
	presence presence.Store
	sender   MessageSender
	log      *zap.Logger

	mu       sync.RWMutex
	clients  map[*Client]struct{}
	channels map[string]map[*Client]struct{}
}

func NewHub(b broker.MessageBroker, p presence.Store, sender MessageSender) *Hub {
	return &Hub{
		broker:   b,
		presence: p,
		sender:   sender,
		log:      logger.Named("realtime"),
		clients:  make(map[*Client]struct{}),
		channels: make(map[string]map[*Client]struct{}),
	}
}

// Start subscribes to the broker and dispatches until ctx is cancelled
func (h *Hub) Start(ctx context.Context) error {
	deliveries, err := h.broker.Subscribe(ctx, broker.UserChannelPattern)
	if err != nil {
		return err
	}

	go h.refreshPresence(ctx)
	go func() {
		for d := range deliveries {
			h.dispatch(d)
		}
		h.log.Info("Hub stopped dispatching")
	}()

	h.log.Info("Hub started", zap.String("pattern", broker.UserChannelPattern))
	return nil
}

func (h *Hub) dispatch(d broker.Delivery) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.channels[d.Channel] {
		if !c.enqueue(d.Payload) {
			h.log.Warn("Client send buffer full, event dropped",
				zap.String("user_id", c.UserID.String()),
				zap.String("channel", d.Channel),
			)
		}
	}
}

func (h *Hub) register(ctx context.Context, c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	total := len(h.clients)
	h.mu.Unlock()

	if err := h.presence.Connect(ctx, c.UserID); err != nil {
		h.log.Warn("Failed to mark user online",
			zap.String("user_id", c.UserID.String()),
			zap.Error(err),
		)
	}

	h.log.Info("Client connected",
		zap.String("user_id", c.UserID.String()),
		zap.Int("total_clients", total),
	)
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	for channel := range c.channels {
		h.removeFromChannel(c, channel)
	}
	total := len(h.clients)
	h.mu.Unlock()

	c.close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.presence.Disconnect(ctx, c.UserID); err != nil {
		h.log.Warn("Failed to mark user offline",
			zap.String("user_id", c.UserID.String()),
			zap.Error(err),
		)
	}

	h.log.Info("Client disconnected",
		zap.String("user_id", c.UserID.String()),
		zap.Duration("session_duration", time.Since(c.connectedAt).Round(time.Second)),
		zap.Int("total_clients", total),
	)
}

// Subscribe attaches c to channel after checking c may listen on it
func (h *Hub) Subscribe(c *Client, channel string) error {
	if err := notifier.AuthorizeChannel(c.UserID, channel); err != nil {
		h.log.Warn("Channel subscription rejected",
			zap.String("user_id", c.UserID.String()),
			zap.String("channel", channel),
		)
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; !ok {
		return nil
	}
	subs, ok := h.channels[channel]
	if !ok {
		subs = make(map[*Client]struct{})
		h.channels[channel] = subs
	}
	subs[c] = struct{}{}
	c.channels[channel] = struct{}{}
	return nil
}

func (h *Hub) Unsubscribe(c *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeFromChannel(c, channel)
}

// removeFromChannel requires h.mu held for writing
func (h *Hub) removeFromChannel(c *Client, channel string) {
	delete(c.channels, channel)
	if subs, ok := h.channels[channel]; ok {
		delete(subs, c)
		if len(subs) == 0 {
			delete(h.channels, channel)
		}
	}
}

// ClientCount is the number of open sessions on this instance
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) refreshPresence(ctx context.Context) {
	ticker := time.NewTicker(presenceRefreshPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, id := range h.connectedUsers() {
				if err := h.presence.Refresh(ctx, id); err != nil {
					h.log.Warn("Failed to refresh presence",
						zap.String("user_id", id.String()),
						zap.Error(err),
					)
				}
			}
		}
	}
}

func (h *Hub) connectedUsers() []uuid.UUID {
	h.mu.RLock()
	defer h.mu.RUnlock()

	seen := make(map[uuid.UUID]struct{}, len(h.clients))
	ids := make([]uuid.UUID, 0, len(h.clients))
	for c := range h.clients {
		if _, ok := seen[c.UserID]; ok {
			continue
		}
		seen[c.UserID] = struct{}{}
		ids = append(ids, c.UserID)
	}
	return ids
}
