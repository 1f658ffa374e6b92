package services

import (
	"context"
	"log"
	"sync"

	"github.com/google/uuid"

	"notion-lite/workspace/broker"
	"notion-lite/workspace/models"
)

// PageLoader reads the ordered blocks of one page.
type PageLoader interface {
	ListBlocks(ctx context.Context, userID uuid.UUID, pageID string) ([]models.Block, error)
}

type SubscriptionServiceInterface interface {
	Start(ctx context.Context)
	Subscribe(ctx context.Context, userID uuid.UUID, pageID string) (<-chan models.PageSnapshot, error)
	Notify(userID uuid.UUID, pageID string)
}

// SubscriptionService turns block change events into page snapshots. Each
// subscription reloads its page on its own goroutine, so snapshots for one
// page are produced one at a time and in order.
type SubscriptionService struct {
	loader   PageLoader
	consumer broker.Consumer

	mu        sync.Mutex
	subs      map[string]map[*subscription]struct{}
	listeners []ChangeListener
}

// ChangeListener is told about every page named by a block event.
type ChangeListener func(userID uuid.UUID, pageID string)

type subscription struct {
	userID uuid.UUID
	pageID string

	wake chan struct{}
	out  chan models.PageSnapshot

	version uint64
	last    []models.Block
	seen    []models.Block
}

func NewSubscriptionService(loader PageLoader, consumer broker.Consumer) *SubscriptionService {
	return &SubscriptionService{
		loader:   loader,
		consumer: consumer,
		subs:     map[string]map[*subscription]struct{}{},
	}
}

var SubscriptionServiceInstance SubscriptionServiceInterface

// Start consumes block events until ctx is cancelled.
func (s *SubscriptionService) Start(ctx context.Context) {
	if s.consumer == nil {
		return
	}
	log.Println("Subscription service started")
	go broker.Consume(ctx, s.consumer, s.handleMessage)
}

func (s *SubscriptionService) handleMessage(msg broker.Message) {
	env, err := broker.DecodeEnvelope(msg.Data)
	if err != nil {
		log.Printf("Failed to decode event envelope: %v", err)
		return
	}
	if env.Event != broker.BlockChanged {
		return
	}
	change, err := models.DecodeBlockChange(env.Data)
	if err != nil {
		log.Printf("Failed to decode block change %s: %v", env.ID, err)
		return
	}
	s.mu.Lock()
	listeners := append([]ChangeListener(nil), s.listeners...)
	s.mu.Unlock()
	for _, pageID := range change.PageIDs {
		s.Notify(change.UserID, pageID)
		for _, fn := range listeners {
			fn(change.UserID, pageID)
		}
	}
}

// OnChange registers fn for pages changed by broker events.
func (s *SubscriptionService) OnChange(fn ChangeListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Notify schedules a reload for every subscription on the page. Notifications
// arriving while a reload is pending are folded into it.
func (s *SubscriptionService) Notify(userID uuid.UUID, pageID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for sub := range s.subs[pageKey(userID, pageID)] {
		select {
		case sub.wake <- struct{}{}:
		default:
		}
	}
}

// Subscribe returns a feed holding the current snapshot of the page followed by
// one snapshot per change burst. A slow reader only ever sees the latest
// snapshot, with a diff against the last one it read. The channel is closed
// when ctx is done.
func (s *SubscriptionService) Subscribe(ctx context.Context, userID uuid.UUID, pageID string) (<-chan models.PageSnapshot, error) {
	if pageID == "" {
		return nil, ErrInvalidInput
	}
	blocks, err := s.loader.ListBlocks(ctx, userID, pageID)
	if err != nil {
		return nil, err
	}

	sub := &subscription{
		userID: userID,
		pageID: pageID,
		wake:   make(chan struct{}, 1),
		out:    make(chan models.PageSnapshot, 1),
	}
	s.register(sub)
	sub.publish(blocks, true)

	go s.run(ctx, sub)
	return sub.out, nil
}

func (s *SubscriptionService) run(ctx context.Context, sub *subscription) {
	defer func() {
		s.unregister(sub)
		close(sub.out)
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.wake:
			blocks, err := s.loader.ListBlocks(ctx, sub.userID, sub.pageID)
			if err != nil {
				if ctx.Err() == nil {
					log.Printf("Failed to reload page %s: %v", sub.pageID, err)
				}
				continue
			}
			sub.publish(blocks, false)
		}
	}
}

// publish replaces an unread snapshot, if any, with a fresh one.
func (sub *subscription) publish(blocks []models.Block, initial bool) {
	select {
	case <-sub.out:
	default:
		sub.seen = sub.last
	}
	diff := models.NewSnapshotDiff(sub.seen, blocks)
	if !initial && diff.Empty() {
		sub.last = sub.seen
		return
	}
	sub.version++
	sub.last = blocks
	sub.out <- models.PageSnapshot{
		UserID:  sub.userID,
		PageID:  sub.pageID,
		Version: sub.version,
		Blocks:  blocks,
		Diff:    diff,
	}
}

func (s *SubscriptionService) register(sub *subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pageKey(sub.userID, sub.pageID)
	if s.subs[key] == nil {
		s.subs[key] = map[*subscription]struct{}{}
	}
	s.subs[key][sub] = struct{}{}
}

func (s *SubscriptionService) unregister(sub *subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pageKey(sub.userID, sub.pageID)
	delete(s.subs[key], sub)
	if len(s.subs[key]) == 0 {
		delete(s.subs, key)
	}
}
