package broker

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockConsumer implements Consumer interface for testing
type MockConsumer struct {
	messages []*Message
	closed   bool
}

// NewMockConsumer creates a new mock consumer with optional test messages
func NewMockConsumer(messages ...*Message) *MockConsumer {
	return &MockConsumer{messages: messages}
}

func (m *MockConsumer) ReadMessage(timeoutMs int) (*Message, error) {
	if m.closed {
		return nil, nats.ErrConnectionClosed
	}
	if len(m.messages) == 0 {
		m.closed = true
		return nil, nats.ErrTimeout
	}
	msg := m.messages[0]
	m.messages = m.messages[1:]
	return msg, nil
}

func (m *MockConsumer) Close() {
	m.closed = true
}

func TestConsume_DeliversUntilClosed(t *testing.T) {
	consumer := NewMockConsumer(
		&Message{Subject: BlockEventsSubject, Data: []byte("one")},
		&Message{Subject: BlockEventsSubject, Data: []byte("two")},
	)

	var got []string
	done := make(chan struct{})
	go func() {
		Consume(context.Background(), consumer, func(m Message) {
			got = append(got, string(m.Data))
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for consumer to stop")
	}
	assert.Equal(t, []string{"one", "two"}, got)
}

func TestConsume_StopsOnCancel(t *testing.T) {
	b := NewMemoryBroker()
	c, err := b.Subscribe(BlockEventsSubject, "")
	require.NoError(t, err)
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		Consume(ctx, c, func(Message) {})
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Consume did not return after cancel")
	}
}

func TestDecodeEnvelope(t *testing.T) {
	env, err := DecodeEnvelope([]byte(`{"event":"block.changed","entity":"block","data":{"page_ids":["inbox"]}}`))
	require.NoError(t, err)
	assert.Equal(t, BlockChanged, env.Event)
	assert.JSONEq(t, `{"page_ids":["inbox"]}`, string(env.Data))

	_, err = DecodeEnvelope([]byte("not json"))
	assert.Error(t, err)
}
