package broker

import (
	"context"
	"sync"
	"time"

	"github.com/JackBerck/guyub-rukun-sub001/pkg/logger"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// NATSMessageBroker implements MessageBroker on core NATS subjects.
// Channel names are used as subjects as-is; "private-user.<id>" is two tokens,
// so UserChannelPattern is a valid NATS wildcard too.
type NATSMessageBroker struct {
	conn *nats.Conn

	// closed on Close; ChanSubscribe channels are never closed by the client
	done      chan struct{}
	closeOnce sync.Once
}

func NewNATSMessageBroker(url string) (*NATSMessageBroker, error) {
	opts := []nats.Option{
		nats.Name("guyub-rukun-chat"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Log.Warn("Disconnected from NATS", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Log.Info("Reconnected to NATS", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logger.Log.Info("NATS connection closed")
		}),
		nats.Timeout(10 * time.Second),
	}

	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, err
	}

	return &NATSMessageBroker{conn: conn, done: make(chan struct{})}, nil
}

// Conn exposes the connection for health checks
func (n *NATSMessageBroker) Conn() *nats.Conn {
	return n.conn
}

func (n *NATSMessageBroker) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return n.conn.Publish(channel, payload)
}

func (n *NATSMessageBroker) Subscribe(ctx context.Context, pattern string) (<-chan Delivery, error) {
	msgs := make(chan *nats.Msg, 256)
	sub, err := n.conn.ChanSubscribe(pattern, msgs)
	if err != nil {
		return nil, err
	}
	// Make sure the server registered the interest before returning
	if err := n.conn.Flush(); err != nil {
		sub.Unsubscribe()
		return nil, err
	}

	out := make(chan Delivery, 256)

	go func() {
		defer close(out)
		defer sub.Unsubscribe()

		for {
			select {
			case <-ctx.Done():
				return
			case <-n.done:
				return
			case msg := <-msgs:
				select {
				case out <- Delivery{Channel: msg.Subject, Payload: msg.Data}:
				case <-ctx.Done():
					return
				case <-n.done:
					return
				}
			}
		}
	}()

	return out, nil
}

func (n *NATSMessageBroker) Close() error {
	n.closeOnce.Do(func() {
		close(n.done)
		n.conn.Close()
	})
	return nil
}
