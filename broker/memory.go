package broker

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// MemoryBroker is an in-process broker used when no NATS server is configured.
// Within a queue group each message goes to one member, round robin.
type MemoryBroker struct {
	mu     sync.Mutex
	groups map[string]map[string]*memoryGroup
	closed bool
	seq    int
}

type memoryGroup struct {
	members []*memoryConsumer
	next    int
}

type memoryConsumer struct {
	broker   *MemoryBroker
	subject  string
	group    string
	messages chan Message
	done     chan struct{}
	once     sync.Once
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{groups: map[string]map[string]*memoryGroup{}}
}

func (b *MemoryBroker) Publish(subject string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nats.ErrConnectionClosed
	}
	for _, g := range b.groups[subject] {
		if len(g.members) == 0 {
			continue
		}
		c := g.members[g.next%len(g.members)]
		g.next++
		msg := Message{Subject: subject, Data: append([]byte(nil), data...)}
		select {
		case c.messages <- msg:
		default:
			log.Printf("Dropping message on %s: consumer buffer full", subject)
		}
	}
	return nil
}

// Subscribe joins group on subject. An empty group receives every message.
func (b *MemoryBroker) Subscribe(subject, group string) (Consumer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, nats.ErrConnectionClosed
	}
	c := &memoryConsumer{
		broker:   b,
		subject:  subject,
		group:    group,
		messages: make(chan Message, 256),
		done:     make(chan struct{}),
	}
	if group == "" {
		// a private group per consumer
		b.seq++
		group = fmt.Sprintf("_inbox.%d", b.seq)
		c.group = group
	}
	if b.groups[subject] == nil {
		b.groups[subject] = map[string]*memoryGroup{}
	}
	g := b.groups[subject][group]
	if g == nil {
		g = &memoryGroup{}
		b.groups[subject][group] = g
	}
	g.members = append(g.members, c)
	return c, nil
}

func (b *MemoryBroker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
}

func (b *MemoryBroker) remove(c *memoryConsumer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	g := b.groups[c.subject][c.group]
	if g == nil {
		return
	}
	for i, m := range g.members {
		if m == c {
			g.members = append(g.members[:i], g.members[i+1:]...)
			break
		}
	}
	if len(g.members) == 0 {
		delete(b.groups[c.subject], c.group)
	}
}

func (c *memoryConsumer) ReadMessage(timeoutMs int) (*Message, error) {
	var timeout <-chan time.Time
	if timeoutMs >= 0 {
		timer := time.NewTimer(time.Duration(timeoutMs) * time.Millisecond)
		defer timer.Stop()
		timeout = timer.C
	}
	select {
	case msg := <-c.messages:
		return &msg, nil
	case <-timeout:
		return nil, nats.ErrTimeout
	case <-c.done:
		return nil, nats.ErrConnectionClosed
	}
}

func (c *memoryConsumer) Close() {
	c.once.Do(func() {
		c.broker.remove(c)
		close(c.done)
	})
}
