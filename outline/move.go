package outline

import (
	"slices"

	"github.com/google/uuid"

	"notion-lite/workspace/metadata"
	"notion-lite/workspace/models"
)

// MoveRequest is a resolved drop: the dragged block, the block it was dropped on
// and where relative to it. A nil TargetID appends to the end of the page.
// ChildBlockIDs, when set, replaces the detected subtree as the moved run.
type MoveRequest struct {
	BlockID       uuid.UUID
	TargetID      *uuid.UUID
	Position      DropPosition
	ChildBlockIDs []uuid.UUID
}

// Move relocates a block and its run within the page, then renumbers the page.
func (o *Outline) Move(req MoveRequest) error {
	i, ok := o.index[req.BlockID]
	if !ok {
		return ErrNotFound
	}
	run := o.runIndices(i, req.ChildBlockIDs)
	if req.TargetID != nil {
		t, ok := o.index[*req.TargetID]
		if !ok {
			return ErrNotFound
		}
		if slices.Contains(run, t) {
			return ErrInvalidTransition
		}
	}

	o.unlinkParent(o.blocks[i])
	moved := o.extract(run)
	o.place(moved, req.TargetID, req.Position)
	o.Renumber()
	o.Normalize()
	return nil
}

// MoveAcross moves a block and its run from src to dst. Both outlines are left
// normalized so their combined Diff can be written in one transaction. Moved
// todo blocks take the status of their new page unless they are done.
func MoveAcross(src, dst *Outline, req MoveRequest, pages models.WorkflowPages) error {
	if src == dst || src.pageID == dst.pageID {
		return src.Move(req)
	}
	i, ok := src.index[req.BlockID]
	if !ok {
		return ErrNotFound
	}
	if req.TargetID != nil {
		if _, ok := dst.index[*req.TargetID]; !ok {
			return ErrNotFound
		}
	}

	run := src.runIndices(i, req.ChildBlockIDs)
	src.unlinkParent(src.blocks[i])
	moved := src.extract(run)
	for _, b := range moved {
		if original, ok := src.originalOf(b.ID); ok {
			dst.adopt(original)
		} else if src.created[b.ID] {
			delete(src.created, b.ID)
			dst.created[b.ID] = true
		}
		b.PageID = dst.pageID
		if b.IsTodo() {
			if b.TaskMetadata == nil {
				b.TaskMetadata = &models.TaskMetadata{}
			}
			b.TaskMetadata.Status = metadata.StatusFor(b.TaskMetadata.Status, dst.pageID, pages)
		}
	}

	dst.place(moved, req.TargetID, req.Position)
	dst.Renumber()
	dst.Normalize()
	src.Normalize()
	return nil
}

// runIndices returns the display indices of the block at i and the blocks that
// travel with it, primary first.
func (o *Outline) runIndices(i int, childIDs []uuid.UUID) []int {
	if len(childIDs) == 0 {
		end := o.subtreeEnd(i)
		run := make([]int, 0, end-i)
		for j := i; j < end; j++ {
			run = append(run, j)
		}
		return run
	}
	var rest []int
	for _, id := range childIDs {
		if j, ok := o.index[id]; ok && j != i && !slices.Contains(rest, j) {
			rest = append(rest, j)
		}
	}
	slices.Sort(rest)
	return append([]int{i}, rest...)
}

// place inserts an extracted run relative to target, shifting the run so its
// first block takes the landing indent.
func (o *Outline) place(run []*models.Block, target *uuid.UUID, pos DropPosition) {
	if len(run) == 0 {
		return
	}
	at, level := len(o.blocks), 0
	var tb *models.Block
	if target != nil {
		if t, ok := o.index[*target]; ok {
			tb = o.blocks[t]
			switch pos {
			case DropAbove:
				at, level = t, tb.IndentLevel
			case DropChild:
				at, level = t+1, tb.IndentLevel+1
			default:
				at, level = o.subtreeEnd(t), tb.IndentLevel
			}
		}
	}

	delta := level - run[0].IndentLevel
	for _, b := range run {
		b.IndentLevel = clampIndent(b.IndentLevel + delta)
	}
	o.insertAt(at, run...)

	if pos == DropChild && tb != nil && tb.IsTodo() && run[0].IsTodo() {
		metadata.Link(tb, run[0])
	}
}
