package broker

import (
	"context"
	"errors"
	"path"
	"sync"
)

var ErrBrokerClosed = errors.New("broker closed")

// MemoryMessageBroker is an in-process broker for single-node runs and tests.
// Slow subscribers lose messages instead of blocking publishers.
type MemoryMessageBroker struct {
	mu     sync.RWMutex
	subs   map[*memorySub]struct{}
	closed bool
}

type memorySub struct {
	pattern string
	ch      chan Delivery
}

func NewMemoryMessageBroker() *MemoryMessageBroker {
	return &MemoryMessageBroker{subs: make(map[*memorySub]struct{})}
}

func (m *MemoryMessageBroker) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return ErrBrokerClosed
	}

	for sub := range m.subs {
		if ok, _ := path.Match(sub.pattern, channel); !ok {
			continue
		}
		data := make([]byte, len(payload))
		copy(data, payload)
		select {
		case sub.ch <- Delivery{Channel: channel, Payload: data}:
		default:
		}
	}
	return nil
}

func (m *MemoryMessageBroker) Subscribe(ctx context.Context, pattern string) (<-chan Delivery, error) {
	if _, err := path.Match(pattern, ""); err != nil {
		return nil, err
	}

	sub := &memorySub{pattern: pattern, ch: make(chan Delivery, 256)}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrBrokerClosed
	}
	m.subs[sub] = struct{}{}
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.remove(sub)
	}()

	return sub.ch, nil
}

func (m *MemoryMessageBroker) remove(sub *memorySub) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.subs[sub]; ok {
		delete(m.subs, sub)
		close(sub.ch)
	}
}

func (m *MemoryMessageBroker) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	for sub := range m.subs {
		delete(m.subs, sub)
		close(sub.ch)
	}
	return nil
}
