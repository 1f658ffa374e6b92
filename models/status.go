package models

import (
	"fmt"
	"strings"
)

// GTDStatus is the workflow stage of a task block.
type GTDStatus string

const (
	StatusNow     GTDStatus = "now"
	StatusNext    GTDStatus = "next"
	StatusWaiting GTDStatus = "waiting"
	StatusSomeday GTDStatus = "someday"
	StatusDone    GTDStatus = "done"
)

// DefaultStatus is used for task blocks that live outside the workflow pages.
const DefaultStatus = StatusSomeday

func (s GTDStatus) Valid() bool {
	switch s {
	case StatusNow, StatusNext, StatusWaiting, StatusSomeday, StatusDone:
		return true
	}
	return false
}

// Terminal reports whether the status is sticky and never overwritten automatically.
func (s GTDStatus) Terminal() bool {
	return s == StatusDone
}

// WorkflowPages binds each fixed workflow page to its status.
type WorkflowPages map[string]GTDStatus

// StatusForPage returns the status implied by pageID. ok is false for pages
// outside the fixed set.
func (w WorkflowPages) StatusForPage(pageID string) (GTDStatus, bool) {
	status, ok := w[pageID]
	return status, ok
}

// ParseWorkflowPages parses "now=pageA,next=pageB,..." into a page registry.
// Every status may be bound to at most one page and every page to one status.
func ParseWorkflowPages(spec string) (WorkflowPages, error) {
	pages := WorkflowPages{}
	seen := map[GTDStatus]bool{}
	for _, pair := range strings.Split(spec, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		status, page, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid workflow page binding %q", pair)
		}
		s := GTDStatus(strings.ToLower(strings.TrimSpace(status)))
		page = strings.TrimSpace(page)
		if !s.Valid() || page == "" {
			return nil, fmt.Errorf("invalid workflow page binding %q", pair)
		}
		if seen[s] {
			return nil, fmt.Errorf("status %s bound twice", s)
		}
		if _, dup := pages[page]; dup {
			return nil, fmt.Errorf("page %s bound twice", page)
		}
		seen[s] = true
		pages[page] = s
	}
	return pages, nil
}
