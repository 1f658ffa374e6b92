// Package metadata mirrors task metadata from block text and page location, and
// keeps the parent/subtask links between todo blocks symmetric.
package metadata

import (
	"github.com/google/uuid"
	"github.com/samber/lo"

	"notion-lite/workspace/models"
	"notion-lite/workspace/utils/roi"
	"notion-lite/workspace/utils/tokens"
)

// Mirror derives the metadata for a todo block on pageID. Tokens override
// existing fields, absent tokens keep them, roi is recomputed and links are
// carried over unchanged.
func Mirror(existing *models.TaskMetadata, tk tokens.Tokens, pageID string, pages models.WorkflowPages) *models.TaskMetadata {
	out := existing.Clone()
	if out == nil {
		out = &models.TaskMetadata{}
	}

	if tk.Value != nil {
		v := *tk.Value
		out.Amount = &v
	}
	if tk.Effort != nil {
		e := *tk.Effort
		out.Effort = &e
	}
	if tk.Due != nil {
		d := *tk.Due
		out.DueDate = &d
	}
	if tk.Assignee != "" {
		out.Assignee = tk.Assignee
	}
	if tk.Company != "" {
		out.Company = tk.Company
	}

	Recompute(out)
	out.Status = StatusFor(out.Status, pageID, pages)
	return out
}

// Recompute refreshes the cached roi from value and effort.
func Recompute(tm *models.TaskMetadata) {
	if tm.Amount == nil && tm.Effort == nil {
		tm.ROI = nil
		return
	}
	r := roi.Calculate(tm.Amount, tm.Effort)
	tm.ROI = &r
}

// StatusFor returns the status a todo block should carry on pageID. Done is
// never overwritten.
func StatusFor(current models.GTDStatus, pageID string, pages models.WorkflowPages) models.GTDStatus {
	if current.Terminal() {
		return current
	}
	if expected, ok := pages.StatusForPage(pageID); ok {
		return expected
	}
	if current.Valid() {
		return current
	}
	return models.DefaultStatus
}

func ensure(b *models.Block) *models.TaskMetadata {
	if b.TaskMetadata == nil {
		b.TaskMetadata = &models.TaskMetadata{}
	}
	return b.TaskMetadata
}

// Link makes child a subtask of parent on both sides, dropping any previous parent
// link the child held. Callers must unlink the child from its previous parent block.
func Link(parent, child *models.Block) {
	pm := ensure(parent)
	cm := ensure(child)
	id := parent.ID
	cm.ParentTaskID = &id
	if !lo.Contains(pm.SubtaskIDs, child.ID) {
		pm.SubtaskIDs = append(pm.SubtaskIDs, child.ID)
	}
}

// Unlink severs the link between parent and child on both sides.
func Unlink(parent, child *models.Block) {
	PruneSubtask(parent, child.ID)
	if pid, ok := child.ParentTaskID(); ok && pid == parent.ID {
		child.TaskMetadata.ParentTaskID = nil
	}
}

// PruneSubtask removes childID from parent's subtask list.
func PruneSubtask(parent *models.Block, childID uuid.UUID) {
	if parent.TaskMetadata == nil || !lo.Contains(parent.TaskMetadata.SubtaskIDs, childID) {
		return
	}
	rest := lo.Without(parent.TaskMetadata.SubtaskIDs, childID)
	if len(rest) == 0 {
		rest = nil
	}
	parent.TaskMetadata.SubtaskIDs = rest
}

// ClearParent drops the child's side of its parent link.
func ClearParent(child *models.Block) {
	if child.TaskMetadata != nil {
		child.TaskMetadata.ParentTaskID = nil
	}
}

// WithoutLinks returns a copy of tm with parent and subtask links removed.
func WithoutLinks(tm *models.TaskMetadata) *models.TaskMetadata {
	out := tm.Clone()
	if out == nil {
		return nil
	}
	out.ParentTaskID = nil
	out.SubtaskIDs = nil
	return out
}

// Reconcile rebuilds the subtask list of every todo in blocks so that it holds
// exactly the blocks whose parentTaskId points back at it. Existing entries keep
// their position; new ones are appended in the given order.
func Reconcile(blocks []*models.Block) {
	children := map[uuid.UUID][]uuid.UUID{}
	for _, b := range blocks {
		if pid, ok := b.ParentTaskID(); ok {
			children[pid] = append(children[pid], b.ID)
		}
	}
	for _, b := range blocks {
		if !b.IsTodo() {
			continue
		}
		want := children[b.ID]
		kept := lo.Filter(b.SubtaskIDs(), func(id uuid.UUID, _ int) bool {
			return lo.Contains(want, id)
		})
		kept = lo.Uniq(kept)
		for _, id := range want {
			if !lo.Contains(kept, id) {
				kept = append(kept, id)
			}
		}
		if len(kept) == 0 {
			if b.TaskMetadata != nil {
				b.TaskMetadata.SubtaskIDs = nil
			}
			continue
		}
		ensure(b).SubtaskIDs = kept
	}
}
