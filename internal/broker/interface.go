package broker

import "context"

// Delivery is a payload received on a channel
type Delivery struct {
	Channel string
	Payload []byte
}

// MessageBroker is the pub/sub transport behind private user channels.
// Delivery is best effort: a subscriber that is not connected misses the message.
type MessageBroker interface {
	Publish(ctx context.Context, channel string, payload []byte) error

	// Subscribe streams deliveries for every channel matching pattern
	// ("*" matches one channel segment). The returned channel is closed
	// when ctx is cancelled or the broker is closed.
	Subscribe(ctx context.Context, pattern string) (<-chan Delivery, error)

	Close() error
}
