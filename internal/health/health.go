package health

import (
	"context"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const (
	StatusConnected    = "connected"
	StatusDisconnected = "disconnected"
	StatusDisabled     = "disabled"

	pingTimeout = 2 * time.Second
)

// Status reports every dependency the chat server talks to
type Status struct {
	Database string `json:"database"`
	Redis    string `json:"redis"`
	NATS     string `json:"nats"`
}

// Healthy is true when no configured dependency is down
func (s *Status) Healthy() bool {
	return s.Database != StatusDisconnected &&
		s.Redis != StatusDisconnected &&
		s.NATS != StatusDisconnected
}

// Checker pings the dependencies. Redis and NATS are optional and show
// as disabled when the server runs without them.
type Checker struct {
	db          *gorm.DB
	redisClient *redis.Client
	nc          *nats.Conn
}

func NewChecker(db *gorm.DB, redisClient *redis.Client, nc *nats.Conn) *Checker {
	return &Checker{
		db:          db,
		redisClient: redisClient,
		nc:          nc,
	}
}

func (h *Checker) Check(ctx context.Context) *Status {
	status := &Status{
		Database: StatusDisconnected,
		Redis:    StatusDisabled,
		NATS:     StatusDisabled,
	}

	if sqlDB, err := h.db.DB(); err == nil {
		dbCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		if sqlDB.PingContext(dbCtx) == nil {
			status.Database = StatusConnected
		}
		cancel()
	}

	if h.redisClient != nil {
		redisCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		if h.redisClient.Ping(redisCtx).Err() == nil {
			status.Redis = StatusConnected
		} else {
			status.Redis = StatusDisconnected
		}
		cancel()
	}

	if h.nc != nil {
		if h.nc.IsConnected() {
			status.NATS = StatusConnected
		} else {
			status.NATS = StatusDisconnected
		}
	}

	return status
}
