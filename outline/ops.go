package outline

import (
	"github.com/google/uuid"

	"notion-lite/workspace/metadata"
	"notion-lite/workspace/models"
)

// Draft describes a block to insert. A zero ID is replaced by a fresh one.
type Draft struct {
	ID           uuid.UUID
	Type         models.BlockType
	Content      string
	IndentLevel  int
	IsChecked    bool
	TaskMetadata *models.TaskMetadata
}

// InsertAfter creates a block right after anchor, or at the end of the page when
// anchor is nil. The requested indent is clamped so the page stays well formed.
func (o *Outline) InsertAfter(anchor *uuid.UUID, d Draft) (*models.Block, error) {
	pos := len(o.blocks)
	if anchor != nil {
		i, ok := o.index[*anchor]
		if !ok {
			return nil, ErrNotFound
		}
		pos = i + 1
	}

	id := d.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	if _, exists := o.index[id]; exists {
		return nil, ErrInvalidTransition
	}
	typ := d.Type
	if typ == "" {
		typ = models.ParagraphBlock
	}

	level := o.insertIndent(pos, d.IndentLevel)
	order := o.slotOrder(pos)
	now := o.now()
	b := &models.Block{
		ID:          id,
		UserID:      o.userID,
		PageID:      o.pageID,
		Type:        typ,
		Content:     d.Content,
		Order:       order,
		IndentLevel: level,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if b.IsTodo() {
		b.IsChecked = d.IsChecked
		b.TaskMetadata = metadata.WithoutLinks(d.TaskMetadata)
		if b.TaskMetadata == nil {
			b.TaskMetadata = &models.TaskMetadata{}
		}
	}

	o.created[id] = true
	o.insertAt(pos, b)
	if b.IsTodo() {
		if p, ok := o.Parent(id); ok && p.IsTodo() {
			metadata.Link(p, b)
		}
	}
	o.Normalize()
	return b, nil
}

// insertIndent clamps a requested indent for a block landing at pos so that it
// neither jumps past its predecessor nor orphans its successor.
func (o *Outline) insertIndent(pos, requested int) int {
	if pos == 0 {
		return 0
	}
	high := o.blocks[pos-1].IndentLevel + 1
	if high > models.MaxIndent {
		high = models.MaxIndent
	}
	low := 0
	if pos < len(o.blocks) {
		low = o.blocks[pos].IndentLevel - 1
	}
	level := requested
	if level > high {
		level = high
	}
	if level < low {
		level = low
	}
	return clampIndent(level)
}

// Indent nests a block and its subtree one level deeper. A todo block is linked
// to the nearest preceding todo at its former level.
func (o *Outline) Indent(id uuid.UUID) error {
	i, ok := o.index[id]
	if !ok {
		return ErrNotFound
	}
	if i == 0 {
		return ErrInvalidTransition
	}
	b := o.blocks[i]
	if b.IndentLevel > o.blocks[i-1].IndentLevel {
		return ErrInvalidTransition
	}
	end := o.subtreeEnd(i)
	for _, m := range o.blocks[i:end] {
		if m.IndentLevel+1 > models.MaxIndent {
			return ErrInvalidTransition
		}
	}

	oldLevel := b.IndentLevel
	for _, m := range o.blocks[i:end] {
		m.IndentLevel++
	}
	o.reindex()

	if b.IsTodo() {
		if sib := o.previousTodoAt(i, oldLevel); sib != nil {
			o.unlinkParent(b)
			metadata.Link(sib, b)
		}
	}
	o.Normalize()
	return nil
}

// previousTodoAt searches backward from i for a todo at level, stopping at the
// first shallower block.
func (o *Outline) previousTodoAt(i, level int) *models.Block {
	for j := i - 1; j >= 0; j-- {
		c := o.blocks[j]
		if c.IndentLevel < level {
			return nil
		}
		if c.IndentLevel == level && c.IsTodo() {
			return c
		}
	}
	return nil
}

// Outdent lifts a block and its subtree one level and severs a todo's parent link.
func (o *Outline) Outdent(id uuid.UUID) error {
	i, ok := o.index[id]
	if !ok {
		return ErrNotFound
	}
	b := o.blocks[i]
	if b.IndentLevel == 0 {
		return ErrInvalidTransition
	}
	end := o.subtreeEnd(i)
	for _, m := range o.blocks[i:end] {
		m.IndentLevel--
	}
	if b.IsTodo() {
		o.unlinkParent(b)
	}
	o.reindex()
	o.Normalize()
	return nil
}

// MoveUp swaps a block with the one displayed before it.
func (o *Outline) MoveUp(id uuid.UUID) error {
	i, ok := o.index[id]
	if !ok {
		return ErrNotFound
	}
	if i == 0 {
		return ErrInvalidTransition
	}
	o.swap(i-1, i)
	return nil
}

// MoveDown swaps a block with the one displayed after it.
func (o *Outline) MoveDown(id uuid.UUID) error {
	i, ok := o.index[id]
	if !ok {
		return ErrNotFound
	}
	if i == len(o.blocks)-1 {
		return ErrInvalidTransition
	}
	o.swap(i, i+1)
	return nil
}

func (o *Outline) swap(a, b int) {
	x, y := o.blocks[a], o.blocks[b]
	x.Order, y.Order = y.Order, x.Order
	o.blocks[a], o.blocks[b] = y, x
	o.reindex()
	o.Normalize()
}

// Duplicate inserts a copy of a block after its subtree. Task links are not copied.
func (o *Outline) Duplicate(id uuid.UUID) (*models.Block, error) {
	i, ok := o.index[id]
	if !ok {
		return nil, ErrNotFound
	}
	src := o.blocks[i]
	end := o.subtreeEnd(i)
	order := o.slotOrder(end)
	now := o.now()
	cp := &models.Block{
		ID:           uuid.New(),
		UserID:       o.userID,
		PageID:       o.pageID,
		Type:         src.Type,
		Content:      src.Content,
		Order:        order,
		IndentLevel:  src.IndentLevel,
		IsChecked:    src.IsChecked,
		TaskMetadata: metadata.WithoutLinks(src.TaskMetadata),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	o.created[cp.ID] = true
	o.insertAt(end, cp)
	o.Normalize()
	return cp, nil
}

// Remove deletes a block. Its children stay on the page and lose their task link.
func (o *Outline) Remove(id uuid.UUID) error {
	i, ok := o.index[id]
	if !ok {
		return ErrNotFound
	}
	b := o.blocks[i]
	o.unlinkParent(b)
	for _, cid := range b.SubtaskIDs() {
		if c, found := o.Find(cid); found {
			metadata.ClearParent(c)
		}
	}
	o.extract([]int{i})
	if o.created[id] {
		delete(o.created, id)
	} else {
		o.deleted = append(o.deleted, id)
	}
	o.Normalize()
	return nil
}

// SetType changes a block's type. Leaving the todo type drops task metadata and
// links; becoming a todo links the block under a todo structural parent.
func (o *Outline) SetType(id uuid.UUID, typ models.BlockType) error {
	b, ok := o.Find(id)
	if !ok {
		return ErrNotFound
	}
	if !typ.Valid() {
		return ErrInvalidTransition
	}
	if b.Type == typ {
		return nil
	}
	wasTodo := b.IsTodo()
	b.Type = typ
	switch {
	case wasTodo && !b.IsTodo():
		o.unlinkParent(b)
		for _, cid := range b.SubtaskIDs() {
			if c, found := o.Find(cid); found {
				metadata.ClearParent(c)
			}
		}
		b.TaskMetadata = nil
		b.IsChecked = false
	case !wasTodo && b.IsTodo():
		b.TaskMetadata = &models.TaskMetadata{}
		if p, found := o.Parent(id); found && p.IsTodo() {
			metadata.Link(p, b)
		}
	}
	o.Normalize()
	return nil
}

// Edit applies fn to a block and re-normalizes the page.
func (o *Outline) Edit(id uuid.UUID, fn func(b *models.Block)) error {
	b, ok := o.Find(id)
	if !ok {
		return ErrNotFound
	}
	fn(b)
	o.reindex()
	o.Normalize()
	return nil
}

// SetChecked toggles a todo and propagates the state: checking a parent checks
// every subtask, and a parent follows its children when the last one flips.
func (o *Outline) SetChecked(id uuid.UUID, checked bool) error {
	b, ok := o.Find(id)
	if !ok {
		return ErrNotFound
	}
	if !b.IsTodo() {
		return ErrInvalidTransition
	}
	b.IsChecked = checked
	if checked {
		o.checkSubtasks(b, map[uuid.UUID]bool{b.ID: true})
	}
	o.propagateUp(b)
	o.Normalize()
	return nil
}

func (o *Outline) checkSubtasks(b *models.Block, seen map[uuid.UUID]bool) {
	for _, cid := range b.SubtaskIDs() {
		if seen[cid] {
			continue
		}
		seen[cid] = true
		c, found := o.Find(cid)
		if !found || !c.IsTodo() {
			continue
		}
		c.IsChecked = true
		o.checkSubtasks(c, seen)
	}
}

func (o *Outline) propagateUp(b *models.Block) {
	seen := map[uuid.UUID]bool{b.ID: true}
	for {
		pid, ok := b.ParentTaskID()
		if !ok || seen[pid] {
			return
		}
		seen[pid] = true
		p, found := o.Find(pid)
		if !found || !p.IsTodo() {
			return
		}

		allChecked, someChecked := true, false
		for _, cid := range p.SubtaskIDs() {
			c, found := o.Find(cid)
			if !found {
				continue
			}
			if c.IsChecked {
				someChecked = true
			} else {
				allChecked = false
			}
		}

		switch {
		case b.IsChecked && allChecked && !p.IsChecked:
			p.IsChecked = true
		case !b.IsChecked && !someChecked && p.IsChecked:
			p.IsChecked = false
		default:
			return
		}
		b = p
	}
}

// unlinkParent severs a block's link to its task parent on both sides.
func (o *Outline) unlinkParent(b *models.Block) {
	pid, ok := b.ParentTaskID()
	if !ok {
		return
	}
	if p, found := o.Find(pid); found {
		metadata.Unlink(p, b)
		return
	}
	metadata.ClearParent(b)
}
