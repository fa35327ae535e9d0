package broker

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
)

// RedisMessageBroker implements MessageBroker with Redis PUBLISH / PSUBSCRIBE
type RedisMessageBroker struct {
	client *redis.Client

	mu      sync.Mutex
	pubsubs []*redis.PubSub
}

func NewRedisMessageBroker(redisURL string) (*RedisMessageBroker, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opt)

	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, err
	}

	return &RedisMessageBroker{client: client}, nil
}

// Client exposes the underlying connection for presence and rate limiting
func (r *RedisMessageBroker) Client() *redis.Client {
	return r.client
}

func (r *RedisMessageBroker) Publish(ctx context.Context, channel string, payload []byte) error {
	return r.client.Publish(ctx, channel, payload).Err()
}

func (r *RedisMessageBroker) Subscribe(ctx context.Context, pattern string) (<-chan Delivery, error) {
	pubsub := r.client.PSubscribe(ctx, pattern)

	// Wait for the subscription confirmation so publishes right after
	// Subscribe returns are not lost.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, err
	}

	r.mu.Lock()
	r.pubsubs = append(r.pubsubs, pubsub)
	r.mu.Unlock()

	out := make(chan Delivery, 256)

	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- Delivery{Channel: msg.Channel, Payload: []byte(msg.Payload)}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

func (r *RedisMessageBroker) Close() error {
	r.mu.Lock()
	for _, ps := range r.pubsubs {
		ps.Close()
	}
	r.pubsubs = nil
	r.mu.Unlock()

	return r.client.Close()
}
