package testutils

import (
	"sync"

	"github.com/stretchr/testify/mock"

	"notion-lite/workspace/broker"
)

// MockProducer mocks broker.Producer and records every published message.
type MockProducer struct {
	mock.Mock
	mu        sync.Mutex
	Published []broker.Message
}

func (m *MockProducer) Publish(subject string, data []byte) error {
	args := m.Called(subject, data)
	if args.Error(0) == nil {
		m.mu.Lock()
		m.Published = append(m.Published, broker.Message{Subject: subject, Data: data})
		m.mu.Unlock()
	}
	return args.Error(0)
}

func (m *MockProducer) Close() {
	m.Called()
}

// Messages returns a copy of the successfully published messages.
func (m *MockProducer) Messages() []broker.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]broker.Message(nil), m.Published...)
}
