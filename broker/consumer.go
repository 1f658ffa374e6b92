package broker

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// Consumer reads messages from one subscription. A negative timeout blocks
// until a message arrives or the consumer is closed.
type Consumer interface {
	ReadMessage(timeoutMs int) (*Message, error)
	Close()
}

const pollTimeoutMs = 250

type NatsConsumer struct {
	sub      *nats.Subscription
	messages chan *nats.Msg
	done     chan struct{}
	once     sync.Once
}

// NewNatsConsumer joins queue group on subject.
func NewNatsConsumer(conn *nats.Conn, subject, group string) (*NatsConsumer, error) {
	messages := make(chan *nats.Msg, 256)
	sub, err := conn.ChanQueueSubscribe(subject, group, messages)
	if err != nil {
		return nil, err
	}
	log.Printf("NATS consumer started, listening to %s (group %s)", subject, group)
	return &NatsConsumer{sub: sub, messages: messages, done: make(chan struct{})}, nil
}

func (c *NatsConsumer) ReadMessage(timeoutMs int) (*Message, error) {
	var timeout <-chan time.Time
	if timeoutMs >= 0 {
		timer := time.NewTimer(time.Duration(timeoutMs) * time.Millisecond)
		defer timer.Stop()
		timeout = timer.C
	}
	select {
	case msg := <-c.messages:
		return &Message{Subject: msg.Subject, Data: msg.Data}, nil
	case <-timeout:
		return nil, nats.ErrTimeout
	case <-c.done:
		return nil, nats.ErrConnectionClosed
	}
}

func (c *NatsConsumer) Close() {
	c.once.Do(func() {
		if err := c.sub.Unsubscribe(); err != nil {
			log.Printf("Failed to unsubscribe: %v", err)
		}
		close(c.done)
	})
}

// Consume reads from c until ctx is cancelled or the consumer is closed,
// passing every message to handle.
func Consume(ctx context.Context, c Consumer, handle func(Message)) {
	for {
		if ctx.Err() != nil {
			return
		}
		msg, err := c.ReadMessage(pollTimeoutMs)
		switch {
		case err == nil:
			handle(*msg)
		case errors.Is(err, nats.ErrTimeout):
		case errors.Is(err, nats.ErrConnectionClosed):
			return
		default:
			log.Printf("Error reading message: %v", err)
		}
	}
}
