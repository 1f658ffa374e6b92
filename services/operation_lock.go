package services

import (
	"slices"
	"sync"
	"time"

	"github.com/samber/lo"
)

// OperationKind names a guarded operation.
type OperationKind string

const (
	CreateOperation OperationKind = "create"
	DeleteOperation OperationKind = "delete"
)

// operationLock rejects a second operation of the same kind on the same page
// while the first is in flight or cooling down.
type operationLock struct {
	mu       sync.Mutex
	held     map[string]struct{}
	cooldown time.Duration
}

func newOperationLock(cooldown time.Duration) *operationLock {
	return &operationLock{held: map[string]struct{}{}, cooldown: cooldown}
}

func operationKey(kind OperationKind, pageID string) string {
	return string(kind) + ":" + pageID
}

// TryLock returns false when the key is already held.
func (l *operationLock) TryLock(kind OperationKind, pageID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := operationKey(kind, pageID)
	if _, ok := l.held[key]; ok {
		return false
	}
	l.held[key] = struct{}{}
	return true
}

// Release frees the key. A successful operation keeps it for the cooldown.
func (l *operationLock) Release(kind OperationKind, pageID string, success bool) {
	key := operationKey(kind, pageID)
	if !success || l.cooldown <= 0 {
		l.unlock(key)
		return
	}
	time.AfterFunc(l.cooldown, func() { l.unlock(key) })
}

func (l *operationLock) unlock(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, key)
}

// pageLocks serializes writers per page.
type pageLocks struct {
	mu    sync.Mutex
	locks map[string]*pageLock
}

type pageLock struct {
	mu   sync.Mutex
	refs int
}

func newPageLocks() *pageLocks {
	return &pageLocks{locks: map[string]*pageLock{}}
}

// Lock acquires every key in order and returns the matching unlock.
func (p *pageLocks) Lock(keys ...string) func() {
	keys = sortedUnique(keys)
	held := make([]*pageLock, 0, len(keys))
	for _, key := range keys {
		p.mu.Lock()
		l := p.locks[key]
		if l == nil {
			l = &pageLock{}
			p.locks[key] = l
		}
		l.refs++
		p.mu.Unlock()
		l.mu.Lock()
		held = append(held, l)
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].mu.Unlock()
			p.mu.Lock()
			held[i].refs--
			if held[i].refs == 0 {
				delete(p.locks, keys[i])
			}
			p.mu.Unlock()
		}
	}
}

func sortedUnique(keys []string) []string {
	out := lo.Uniq(keys)
	slices.Sort(out)
	return out
}
