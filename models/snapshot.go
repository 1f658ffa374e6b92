package models

import (
	"github.com/google/uuid"
)

// SnapshotDiff lists the blocks that changed between two consecutive snapshots.
type SnapshotDiff struct {
	Added    []uuid.UUID `json:"added"`
	Modified []uuid.UUID `json:"modified"`
	Removed  []uuid.UUID `json:"removed"`
}

func (d SnapshotDiff) Empty() bool {
	return len(d.Added) == 0 && len(d.Modified) == 0 && len(d.Removed) == 0
}

// PageSnapshot is the ordered state of one page as seen by a live subscription.
type PageSnapshot struct {
	UserID  uuid.UUID    `json:"userId"`
	PageID  string       `json:"pageId"`
	Version uint64       `json:"version"`
	Blocks  []Block      `json:"blocks"`
	Diff    SnapshotDiff `json:"diff"`
}

// NewSnapshotDiff compares two ordered block lists. Blocks present in both whose
// UpdatedAt or position changed are reported as modified.
func NewSnapshotDiff(prev, next []Block) SnapshotDiff {
	var diff SnapshotDiff
	before := make(map[uuid.UUID]int, len(prev))
	for i := range prev {
		before[prev[i].ID] = i
	}
	seen := make(map[uuid.UUID]bool, len(next))
	for i := range next {
		b := &next[i]
		seen[b.ID] = true
		j, ok := before[b.ID]
		if !ok {
			diff.Added = append(diff.Added, b.ID)
			continue
		}
		old := &prev[j]
		if !old.UpdatedAt.Equal(b.UpdatedAt) || !DiffBlocks(old, b).IsEmpty() {
			diff.Modified = append(diff.Modified, b.ID)
		}
	}
	for i := range prev {
		if !seen[prev[i].ID] {
			diff.Removed = append(diff.Removed, prev[i].ID)
		}
	}
	return diff
}
