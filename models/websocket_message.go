package models

import (
	"time"

	"github.com/google/uuid"
)

// WebSocketMessageType represents message type constants
type WebSocketMessageType string

const (
	// Message types
	EventMessage        WebSocketMessageType = "event"
	SnapshotMessage     WebSocketMessageType = "snapshot"
	SubscriptionMessage WebSocketMessageType = "subscription"
	ErrorMessage        WebSocketMessageType = "error"
)

// StandardMessage represents a standardized WebSocket message format
type StandardMessage struct {
	ID        string               `json:"id"`
	Type      WebSocketMessageType `json:"type"`
	Event     string               `json:"event,omitempty"`
	Timestamp time.Time            `json:"timestamp"`
	Payload   interface{}          `json:"payload"`
	PageID    string               `json:"page_id,omitempty"`
}

// NewStandardMessage creates a new standard message
func NewStandardMessage(msgType WebSocketMessageType, event string, payload interface{}) *StandardMessage {
	return &StandardMessage{
		ID:        uuid.New().String(),
		Type:      msgType,
		Event:     event,
		Timestamp: time.Now(),
		Payload:   payload,
	}
}

// WithPage tags the message with the page it concerns
func (m *StandardMessage) WithPage(pageID string) *StandardMessage {
	m.PageID = pageID
	return m
}
