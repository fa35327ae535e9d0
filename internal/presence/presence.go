package presence

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Store tracks how many live websocket sessions each user has.
// A user with at least one session is online.
type Store interface {
	Connect(ctx context.Context, userID uuid.UUID) error
	Disconnect(ctx context.Context, userID uuid.UUID) error
	Refresh(ctx context.Context, userID uuid.UUID) error
	OnlineAmong(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]bool, error)
}

const keyPrefix = "presence:user:"

func key(userID uuid.UUID) string {
	return keyPrefix + userID.String()
}

// decrScript removes the key when the last session goes away so a
// concurrent Connect can never be lost between DECR and DEL.
var decrScript = redis.NewScript(`
local n = redis.call("DECR", KEYS[1])
if n <= 0 then
	redis.call("DEL", KEYS[1])
	return 0
end
return n
`)

// RedisStore shares presence between server instances.
// Counters expire after ttl unless refreshed, so a crashed instance does
// not leave users online forever.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Connect(ctx context.Context, userID uuid.UUID) error {
	pipe := s.client.TxPipeline()
	pipe.Incr(ctx, key(userID))
	pipe.Expire(ctx, key(userID), s.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisStore) Disconnect(ctx context.Context, userID uuid.UUID) error {
	return decrScript.Run(ctx, s.client, []string{key(userID)}).Err()
}

func (s *RedisStore) Refresh(ctx context.Context, userID uuid.UUID) error {
	return s.client.Expire(ctx, key(userID), s.ttl).Err()
}

func (s *RedisStore) OnlineAmong(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]bool, error) {
	online := make(map[uuid.UUID]bool, len(ids))
	if len(ids) == 0 {
		return online, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = key(id)
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	for i, v := range values {
		if v != nil && v != "0" {
			online[ids[i]] = true
		}
	}
	return online, nil
}

// MemoryStore keeps presence in process, for single-node runs
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[uuid.UUID]int)}
}

func (s *MemoryStore) Connect(ctx context.Context, userID uuid.UUID) error {
	s.mu.Lock()
	s.sessions[userID]++
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Disconnect(ctx context.Context, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sessions[userID] <= 1 {
		delete(s.sessions, userID)
		return nil
	}
	s.sessions[userID]--
	return nil
}

func (s *MemoryStore) Refresh(ctx context.Context, userID uuid.UUID) error {
	return nil
}

func (s *MemoryStore) OnlineAmong(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	online := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if s.sessions[id] > 0 {
			online[id] = true
		}
	}
	return online, nil
}
