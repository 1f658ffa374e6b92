package broker

import (
	"log"

	"github.com/nats-io/nats.go"
)

// Message is one payload received from or sent to a subject.
type Message struct {
	Subject string
	Data    []byte
}

type Producer interface {
	Publish(subject string, data []byte) error
	Close()
}

// NatsProducer publishes on a shared NATS connection.
type NatsProducer struct {
	conn *nats.Conn
}

func NewNatsProducer(conn *nats.Conn) *NatsProducer {
	return &NatsProducer{conn: conn}
}

func (p *NatsProducer) Publish(subject string, data []byte) error {
	if err := p.conn.Publish(subject, data); err != nil {
		log.Printf("Failed to publish message to %s: %v", subject, err)
		return err
	}
	return nil
}

func (p *NatsProducer) Close() {
	if err := p.conn.Flush(); err != nil {
		log.Printf("Failed to flush NATS connection: %v", err)
	}
}

// Connect dials NATS with reconnects enabled.
func Connect(url string) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name("workspace"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Printf("NATS disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Printf("NATS reconnected to %s", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, err
	}
	log.Printf("Connected to NATS at %s", url)
	return conn, nil
}
