// Package outline keeps the ordered block list of one page together with the
// tree implied by indent levels, and plans structural edits against it.
//
// An Outline is a working copy: operations mutate it in memory and Diff reports
// the minimal set of creates, patches and deletes needed to persist the result.
package outline

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"notion-lite/workspace/metadata"
	"notion-lite/workspace/models"
)

var (
	ErrNotFound          = errors.New("block not found on page")
	ErrInvalidTransition = errors.New("invalid transition")
)

// Changes is the persistence plan produced by Diff.
type Changes struct {
	Created []models.Block
	Patches []models.BlockPatch
	Deleted []uuid.UUID
}

func (c Changes) Empty() bool {
	return len(c.Created) == 0 && len(c.Patches) == 0 && len(c.Deleted) == 0
}

// Merge appends other's changes to c. A patch on a block already created or
// patched in c is folded into that entry, and deleting a block created in c
// drops the create instead.
func (c Changes) Merge(other Changes) Changes {
	out := Changes{
		Created: append(append([]models.Block{}, c.Created...), other.Created...),
		Patches: append([]models.BlockPatch{}, c.Patches...),
		Deleted: append([]uuid.UUID{}, c.Deleted...),
	}
	for _, p := range other.Patches {
		out.patch(p)
	}
	for _, id := range other.Deleted {
		out.delete(id)
	}
	return out
}

func (c *Changes) patch(p models.BlockPatch) {
	for i := range c.Created {
		if c.Created[i].ID == p.ID {
			p.Fields.Apply(&c.Created[i])
			return
		}
	}
	for i := range c.Patches {
		if c.Patches[i].ID == p.ID {
			c.Patches[i].Fields = c.Patches[i].Fields.Merge(p.Fields)
			return
		}
	}
	c.Patches = append(c.Patches, p)
}

func (c *Changes) delete(id uuid.UUID) {
	c.Patches = slices.DeleteFunc(c.Patches, func(p models.BlockPatch) bool { return p.ID == id })
	before := len(c.Created)
	c.Created = slices.DeleteFunc(c.Created, func(b models.Block) bool { return b.ID == id })
	if len(c.Created) == before && !slices.Contains(c.Deleted, id) {
		c.Deleted = append(c.Deleted, id)
	}
}

// BlockIDs lists every block touched by the plan.
func (c Changes) BlockIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(c.Created)+len(c.Patches)+len(c.Deleted))
	for _, b := range c.Created {
		ids = append(ids, b.ID)
	}
	for _, p := range c.Patches {
		ids = append(ids, p.ID)
	}
	return append(ids, c.Deleted...)
}

// Outline is an arena of a page's blocks in display order. parent and children
// hold indices into blocks and are rebuilt after every structural change.
type Outline struct {
	userID uuid.UUID
	pageID string

	blocks   []*models.Block
	index    map[uuid.UUID]int
	parent   []int
	children [][]int

	original map[uuid.UUID]models.Block
	created  map[uuid.UUID]bool
	deleted  []uuid.UUID

	now func() time.Time
}

// Option configures an Outline.
type Option func(*Outline)

// WithClock overrides the clock used to stamp new blocks.
func WithClock(now func() time.Time) Option {
	return func(o *Outline) { o.now = now }
}

// New builds an outline from the blocks of one page, in any order.
func New(userID uuid.UUID, pageID string, blocks []models.Block, opts ...Option) *Outline {
	o := &Outline{
		userID:   userID,
		pageID:   pageID,
		original: make(map[uuid.UUID]models.Block, len(blocks)),
		created:  map[uuid.UUID]bool{},
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(o)
	}
	for i := range blocks {
		b := blocks[i].Clone()
		o.original[b.ID] = blocks[i].Clone()
		o.blocks = append(o.blocks, &b)
	}
	slices.SortStableFunc(o.blocks, compareBlocks)
	o.reindex()
	return o
}

// compareBlocks orders by order key, then creation time, then id.
func compareBlocks(a, b *models.Block) int {
	switch {
	case a.Order < b.Order:
		return -1
	case a.Order > b.Order:
		return 1
	}
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	return strings.Compare(a.ID.String(), b.ID.String())
}

func (o *Outline) reindex() {
	o.index = make(map[uuid.UUID]int, len(o.blocks))
	o.parent = make([]int, len(o.blocks))
	o.children = make([][]int, len(o.blocks))

	var stack []int
	for i, b := range o.blocks {
		o.index[b.ID] = i
		for len(stack) > 0 && o.blocks[stack[len(stack)-1]].IndentLevel >= b.IndentLevel {
			stack = stack[:len(stack)-1]
		}
		o.parent[i] = -1
		if len(stack) > 0 {
			p := stack[len(stack)-1]
			o.parent[i] = p
			o.children[p] = append(o.children[p], i)
		}
		stack = append(stack, i)
	}
}

func (o *Outline) PageID() string { return o.pageID }

func (o *Outline) UserID() uuid.UUID { return o.userID }

func (o *Outline) Len() int { return len(o.blocks) }

// Blocks returns copies of the blocks in display order.
func (o *Outline) Blocks() []models.Block {
	out := make([]models.Block, len(o.blocks))
	for i, b := range o.blocks {
		out[i] = b.Clone()
	}
	return out
}

// Find returns the working copy of a block.
func (o *Outline) Find(id uuid.UUID) (*models.Block, bool) {
	i, ok := o.index[id]
	if !ok {
		return nil, false
	}
	return o.blocks[i], true
}

// Position returns the display index of a block.
func (o *Outline) Position(id uuid.UUID) (int, bool) {
	i, ok := o.index[id]
	return i, ok
}

// Parent returns the structural parent implied by indentation.
func (o *Outline) Parent(id uuid.UUID) (*models.Block, bool) {
	i, ok := o.index[id]
	if !ok || o.parent[i] < 0 {
		return nil, false
	}
	return o.blocks[o.parent[i]], true
}

// Children returns the structural children of a block in display order.
func (o *Outline) Children(id uuid.UUID) []*models.Block {
	i, ok := o.index[id]
	if !ok {
		return nil
	}
	out := make([]*models.Block, 0, len(o.children[i]))
	for _, c := range o.children[i] {
		out = append(out, o.blocks[c])
	}
	return out
}

// subtreeEnd returns the index one past the last contiguous block deeper than i.
func (o *Outline) subtreeEnd(i int) int {
	level := o.blocks[i].IndentLevel
	j := i + 1
	for j < len(o.blocks) && o.blocks[j].IndentLevel > level {
		j++
	}
	return j
}

// Subtree returns the ids of a block and its contiguous deeper-indented followers.
func (o *Outline) Subtree(id uuid.UUID) []uuid.UUID {
	i, ok := o.index[id]
	if !ok {
		return nil
	}
	end := o.subtreeEnd(i)
	ids := make([]uuid.UUID, 0, end-i)
	for _, b := range o.blocks[i:end] {
		ids = append(ids, b.ID)
	}
	return ids
}

// Renumber spaces every order key evenly by OrderStep.
func (o *Outline) Renumber() {
	for i, b := range o.blocks {
		b.Order = float64(i+1) * models.OrderStep
	}
}

func (o *Outline) ordered() bool {
	for i := 1; i < len(o.blocks); i++ {
		if !(o.blocks[i-1].Order < o.blocks[i].Order) {
			return false
		}
	}
	return true
}

// Normalize restores the page invariants after an edit: strictly increasing
// order keys, bounded indentation, and symmetric task links.
func (o *Outline) Normalize() {
	if !o.ordered() {
		o.Renumber()
	}

	prev := -1
	for _, b := range o.blocks {
		level := b.IndentLevel
		if level > prev+1 {
			level = prev + 1
		}
		level = clampIndent(level)
		b.IndentLevel = level
		prev = level
	}
	o.reindex()

	for _, b := range o.blocks {
		if !b.IsTodo() {
			b.TaskMetadata = nil
			continue
		}
		pid, ok := b.ParentTaskID()
		if !ok {
			continue
		}
		p, found := o.Find(pid)
		if !found || pid == b.ID || !p.IsTodo() || p.IndentLevel >= b.IndentLevel {
			metadata.ClearParent(b)
		}
	}
	metadata.Reconcile(o.blocks)
}

func clampIndent(level int) int {
	if level < 0 {
		return 0
	}
	if level > models.MaxIndent {
		return models.MaxIndent
	}
	return level
}

// Validate reports the first invariant the outline violates.
func (o *Outline) Validate() error {
	for i, b := range o.blocks {
		if i > 0 && !(o.blocks[i-1].Order < b.Order) {
			return fmt.Errorf("order of %s not after %s", b.ID, o.blocks[i-1].ID)
		}
		if b.IndentLevel < 0 || b.IndentLevel > models.MaxIndent {
			return fmt.Errorf("indent of %s out of range: %d", b.ID, b.IndentLevel)
		}
		prevLevel := -1
		if i > 0 {
			prevLevel = o.blocks[i-1].IndentLevel
		}
		if b.IndentLevel > prevLevel+1 {
			return fmt.Errorf("indent of %s jumps from %d to %d", b.ID, prevLevel, b.IndentLevel)
		}
		if !b.IsTodo() {
			if b.TaskMetadata != nil {
				return fmt.Errorf("non-todo %s carries task metadata", b.ID)
			}
			continue
		}
		if pid, ok := b.ParentTaskID(); ok {
			p, found := o.Find(pid)
			if !found {
				return fmt.Errorf("parent %s of %s missing", pid, b.ID)
			}
			if !slices.Contains(p.SubtaskIDs(), b.ID) {
				return fmt.Errorf("parent %s does not list %s", pid, b.ID)
			}
			if p.IndentLevel >= b.IndentLevel {
				return fmt.Errorf("parent %s not shallower than %s", pid, b.ID)
			}
		}
		for _, cid := range b.SubtaskIDs() {
			c, found := o.Find(cid)
			if !found {
				return fmt.Errorf("subtask %s of %s missing", cid, b.ID)
			}
			if pid, ok := c.ParentTaskID(); !ok || pid != b.ID {
				return fmt.Errorf("subtask %s does not point back at %s", cid, b.ID)
			}
		}
	}
	return nil
}

// Diff compares the working copy with the state the outline was loaded with.
func (o *Outline) Diff() Changes {
	var ch Changes
	for _, b := range o.blocks {
		if o.created[b.ID] {
			ch.Created = append(ch.Created, b.Clone())
			continue
		}
		before, ok := o.original[b.ID]
		if !ok {
			continue
		}
		if f := models.DiffBlocks(&before, b); !f.IsEmpty() {
			ch.Patches = append(ch.Patches, models.BlockPatch{ID: b.ID, Fields: f})
		}
	}
	ch.Deleted = append(ch.Deleted, o.deleted...)
	return ch
}

// insertAt places blocks at display index pos.
func (o *Outline) insertAt(pos int, bs ...*models.Block) {
	o.blocks = slices.Insert(o.blocks, pos, bs...)
	o.reindex()
}

// extract removes the blocks at the given ascending indices and returns them.
func (o *Outline) extract(indices []int) []*models.Block {
	out := make([]*models.Block, 0, len(indices))
	drop := make(map[int]bool, len(indices))
	for _, i := range indices {
		out = append(out, o.blocks[i])
		drop[i] = true
	}
	kept := o.blocks[:0:0]
	for i, b := range o.blocks {
		if !drop[i] {
			kept = append(kept, b)
		}
	}
	o.blocks = kept
	o.reindex()
	return out
}

// adopt registers a block arriving from another page so Diff reports it as a patch.
func (o *Outline) adopt(original models.Block) {
	o.original[original.ID] = original.Clone()
}

// originalOf returns the loaded state of a block.
func (o *Outline) originalOf(id uuid.UUID) (models.Block, bool) {
	b, ok := o.original[id]
	return b, ok
}
