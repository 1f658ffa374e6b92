package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event is an outbox row written in the same transaction as the block change it
// describes. The event handler publishes pending rows to the broker.
type Event struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	Event        string          `gorm:"not null" json:"event"`
	Version      int             `gorm:"not null" json:"version"`
	Entity       string          `gorm:"not null" json:"entity"`
	Timestamp    time.Time       `gorm:"not null" json:"timestamp"`
	Data         json.RawMessage `gorm:"type:jsonb;not null" json:"data"`
	Status       string          `gorm:"not null;default:'pending'" json:"status"`
	Dispatched   bool            `gorm:"not null;default:false;index" json:"dispatched"`
	DispatchedAt *time.Time      `json:"dispatched_at,omitempty"`
}

// BlockChange is the payload carried by every block event.
type BlockChange struct {
	UserID   uuid.UUID   `json:"user_id"`
	PageIDs  []string    `json:"page_ids"`
	BlockIDs []uuid.UUID `json:"block_ids"`
}

func NewEvent(event, entity string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:        uuid.New(),
		Event:     event,
		Version:   1,
		Entity:    entity,
		Timestamp: time.Now().UTC(),
		Data:      dataBytes,
		Status:    "pending",
	}, nil
}

// DecodeBlockChange extracts the block change carried by an event payload.
func DecodeBlockChange(data []byte) (BlockChange, error) {
	var change BlockChange
	err := json.Unmarshal(data, &change)
	return change, err
}
