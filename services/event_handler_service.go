package services

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"notion-lite/workspace/broker"
	"notion-lite/workspace/database"
	"notion-lite/workspace/models"
)

type EventHandlerServiceInterface interface {
	Start()
	Stop()
	ProcessPendingEvents()
	DispatchPending() (int, error)
	PendingEvents() ([]models.Event, error)
}

// EventHandlerService publishes outbox rows to the broker and marks them
// dispatched. Rows are sent in the order they were written.
type EventHandlerService struct {
	db        *database.Database
	producer  broker.Producer
	interval  time.Duration
	batchSize int

	mu        sync.Mutex
	isRunning bool
	ticker    *time.Ticker
	done      chan struct{}
}

func NewEventHandlerService(db *database.Database, producer broker.Producer, interval time.Duration) EventHandlerServiceInterface {
	if interval <= 0 {
		interval = time.Second
	}
	return &EventHandlerService{
		db:        db,
		producer:  producer,
		interval:  interval,
		batchSize: 500,
		isRunning: false,
	}
}

func (s *EventHandlerService) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return
	}
	s.isRunning = true
	s.ticker = time.NewTicker(s.interval)
	s.done = make(chan struct{})
	go s.ProcessPendingEvents()
}

func (s *EventHandlerService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isRunning {
		return
	}
	s.isRunning = false
	s.ticker.Stop()
	close(s.done)
}

func (s *EventHandlerService) ProcessPendingEvents() {
	s.mu.Lock()
	ticker, done := s.ticker, s.done
	s.mu.Unlock()
	if ticker == nil {
		return
	}

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if _, err := s.DispatchPending(); err != nil {
				log.Printf("Error dispatching events: %v", err)
			}
		}
	}
}

// DispatchPending sends one batch of undispatched events. It stops at the first
// publish failure so later events never overtake an earlier one.
func (s *EventHandlerService) DispatchPending() (int, error) {
	events, err := s.pending(s.batchSize)
	if err != nil {
		return 0, err
	}
	if len(events) > 0 {
		log.Printf("Found %d pending events to process", len(events))
	}

	sent := 0
	for _, event := range events {
		if err := s.dispatchEvent(event); err != nil {
			log.Printf("Error dispatching event %s: %v", event.ID, err)
			return sent, err
		}
		sent++
	}
	return sent, nil
}

func (s *EventHandlerService) PendingEvents() ([]models.Event, error) {
	return s.pending(-1)
}

func (s *EventHandlerService) pending(limit int) ([]models.Event, error) {
	var events []models.Event
	err := s.db.DB.Where("dispatched = ?", false).
		Order("timestamp").
		Limit(limit).
		Find(&events).Error
	return events, err
}

func (s *EventHandlerService) dispatchEvent(event models.Event) error {
	payload, err := json.Marshal(broker.Envelope{
		ID:        event.ID,
		Event:     broker.EventType(event.Event),
		Entity:    event.Entity,
		Timestamp: event.Timestamp,
		Data:      event.Data,
	})
	if err != nil {
		return err
	}

	if err := s.producer.Publish(broker.BlockEventsSubject, payload); err != nil {
		return err
	}

	// Mark the event as dispatched in the database
	now := time.Now()
	return s.db.DB.Model(&event).Updates(map[string]interface{}{
		"dispatched":    true,
		"dispatched_at": now,
		"status":        "completed",
	}).Error
}

var EventHandlerServiceInstance EventHandlerServiceInterface
