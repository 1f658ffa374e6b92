package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"notion-lite/workspace/models"
	"notion-lite/workspace/store"
)

// StatusPatch is a planned status correction for one todo block.
type StatusPatch struct {
	BlockID uuid.UUID        `json:"blockId"`
	PageID  string           `json:"pageId"`
	From    models.GTDStatus `json:"from"`
	To      models.GTDStatus `json:"to"`
}

// SweepReport summarizes one sweep of a page.
type SweepReport struct {
	Planned int `json:"planned"`
	Patched int `json:"patched"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// PlanStatusPatches lists the todo blocks on workflow pages whose status does
// not match their page. Done blocks are never planned.
func PlanStatusPatches(blocks []models.Block, pages models.WorkflowPages) []StatusPatch {
	var patches []StatusPatch
	for i := range blocks {
		b := &blocks[i]
		if !b.IsTodo() {
			continue
		}
		expected, ok := pages.StatusForPage(b.PageID)
		if !ok {
			continue
		}
		var current models.GTDStatus
		if b.TaskMetadata != nil {
			current = b.TaskMetadata.Status
		}
		if current == expected || current.Terminal() {
			continue
		}
		patches = append(patches, StatusPatch{BlockID: b.ID, PageID: b.PageID, From: current, To: expected})
	}
	return patches
}

type StatusEnforcerInterface interface {
	Start() error
	Stop()
	Watch(ctx context.Context, userID uuid.UUID, pageID string) error
	Sweep(ctx context.Context, userID uuid.UUID, pageID string) (SweepReport, error)
}

// StatusEnforcer keeps task statuses in line with the workflow page holding
// them. Watched pages are swept once per burst of changes and again on a
// schedule so failed patches are retried.
type StatusEnforcer struct {
	store    store.BlockStore
	subs     SubscriptionServiceInterface
	pages    models.WorkflowPages
	cooldown time.Duration
	debounce time.Duration
	schedule string
	now      func() time.Time

	mu      sync.Mutex
	cooling map[uuid.UUID]time.Time
	watched map[string]*watchedPage
	cron    *cron.Cron
}

type watchedPage struct {
	userID    uuid.UUID
	pageID    string
	debounced func(func())
}

type StatusEnforcerOption func(*StatusEnforcer)

func WithStatusCooldown(d time.Duration) StatusEnforcerOption {
	return func(e *StatusEnforcer) { e.cooldown = d }
}

func WithStatusDebounce(d time.Duration) StatusEnforcerOption {
	return func(e *StatusEnforcer) { e.debounce = d }
}

func WithSweepSchedule(spec string) StatusEnforcerOption {
	return func(e *StatusEnforcer) { e.schedule = spec }
}

func WithEnforcerClock(now func() time.Time) StatusEnforcerOption {
	return func(e *StatusEnforcer) { e.now = now }
}

func NewStatusEnforcer(st store.BlockStore, subs SubscriptionServiceInterface, pages models.WorkflowPages, opts ...StatusEnforcerOption) *StatusEnforcer {
	e := &StatusEnforcer{
		store:    st,
		subs:     subs,
		pages:    pages,
		cooldown: 3 * time.Second,
		debounce: 500 * time.Millisecond,
		schedule: "@every 30s",
		now:      time.Now,
		cooling:  map[uuid.UUID]time.Time{},
		watched:  map[string]*watchedPage{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var StatusEnforcerInstance StatusEnforcerInterface

// Start schedules the periodic re-sweep of every watched page.
func (e *StatusEnforcer) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cron != nil {
		return nil
	}
	c := cron.New()
	if _, err := c.AddFunc(e.schedule, e.sweepWatched); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", e.schedule, err)
	}
	c.Start()
	e.cron = c
	log.Printf("Status enforcer started, re-sweeping %s", e.schedule)
	return nil
}

func (e *StatusEnforcer) Stop() {
	e.mu.Lock()
	c := e.cron
	e.cron = nil
	e.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
}

// Watch sweeps the page after every burst of snapshots until ctx is done.
func (e *StatusEnforcer) Watch(ctx context.Context, userID uuid.UUID, pageID string) error {
	if _, ok := e.pages.StatusForPage(pageID); !ok {
		return ErrPageNotFound
	}
	key := pageKey(userID, pageID)
	e.mu.Lock()
	if _, ok := e.watched[key]; ok {
		e.mu.Unlock()
		return nil
	}
	w := &watchedPage{userID: userID, pageID: pageID, debounced: debounce.New(e.debounce)}
	e.watched[key] = w
	e.mu.Unlock()

	feed, err := e.subs.Subscribe(ctx, userID, pageID)
	if err != nil {
		e.unwatch(key)
		return err
	}
	go func() {
		defer e.unwatch(key)
		for range feed {
			w.debounced(func() { e.sweepLogged(w) })
		}
	}()
	return nil
}

func (e *StatusEnforcer) unwatch(key string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.watched, key)
}

func (e *StatusEnforcer) sweepWatched() {
	e.mu.Lock()
	pages := make([]*watchedPage, 0, len(e.watched))
	for _, w := range e.watched {
		pages = append(pages, w)
	}
	e.mu.Unlock()

	for _, w := range pages {
		e.sweepLogged(w)
	}
}

func (e *StatusEnforcer) sweepLogged(w *watchedPage) {
	report, err := e.Sweep(context.Background(), w.userID, w.pageID)
	if err != nil {
		log.Printf("Failed to sweep page %s: %v", w.pageID, err)
		return
	}
	if report.Patched > 0 || report.Failed > 0 {
		log.Printf("Status sweep of %s: %d patched, %d failed", w.pageID, report.Patched, report.Failed)
	}
}

// Sweep corrects the statuses on one page. Blocks patched within the cooldown
// window are skipped. Failed patches are logged and left for the next sweep.
func (e *StatusEnforcer) Sweep(ctx context.Context, userID uuid.UUID, pageID string) (SweepReport, error) {
	blocks, err := e.store.ListBlocks(ctx, userID, pageID)
	if err != nil {
		return SweepReport{}, fmt.Errorf("%w: %w", ErrBackingStore, err)
	}

	patches := PlanStatusPatches(blocks, e.pages)
	report := SweepReport{Planned: len(patches)}
	for _, p := range patches {
		if e.isCooling(p.BlockID) {
			report.Skipped++
			continue
		}
		if err := e.store.PatchTaskStatus(ctx, userID, p.BlockID, p.To); err != nil {
			log.Printf("Failed to set status of block %s to %s: %v", p.BlockID, p.To, err)
			report.Failed++
			continue
		}
		e.cool(p.BlockID)
		report.Patched++
	}
	return report, nil
}

func (e *StatusEnforcer) isCooling(id uuid.UUID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	until, ok := e.cooling[id]
	if !ok {
		return false
	}
	if e.now().Before(until) {
		return true
	}
	delete(e.cooling, id)
	return false
}

func (e *StatusEnforcer) cool(id uuid.UUID) {
	if e.cooldown <= 0 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cooling[id] = e.now().Add(e.cooldown)
}
