package broker

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	// Standardized event types in format: <resource>.<action>
	BlockChanged EventType = "block.changed"
)

// Envelope is the JSON body published for every outbox event.
type Envelope struct {
	ID        uuid.UUID       `json:"id"`
	Event     EventType       `json:"event"`
	Entity    string          `json:"entity"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

func DecodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	err := json.Unmarshal(data, &env)
	return env, err
}
