package outline

import (
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notion-lite/workspace/models"
)

var (
	testUser = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	epoch    = time.Date(2024, time.May, 1, 9, 0, 0, 0, time.UTC)
)

func clock() Option {
	return WithClock(func() time.Time { return epoch })
}

func block(typ models.BlockType, order float64, indent int) models.Block {
	b := models.Block{
		ID:          uuid.New(),
		UserID:      testUser,
		PageID:      "page",
		Type:        typ,
		Content:     string(typ),
		Order:       order,
		IndentLevel: indent,
		CreatedAt:   epoch,
		UpdatedAt:   epoch,
	}
	if typ == models.TodoListBlock {
		b.TaskMetadata = &models.TaskMetadata{Status: models.StatusSomeday}
	}
	return b
}

func link(parent, child *models.Block) {
	pid := parent.ID
	child.TaskMetadata.ParentTaskID = &pid
	parent.TaskMetadata.SubtaskIDs = append(parent.TaskMetadata.SubtaskIDs, child.ID)
}

func mustFind(t *testing.T, o *Outline, id uuid.UUID) *models.Block {
	t.Helper()
	b, ok := o.Find(id)
	require.True(t, ok)
	return b
}

func TestNew_SortsByOrderThenCreatedAt(t *testing.T) {
	a := block(models.ParagraphBlock, 2, 0)
	b := block(models.ParagraphBlock, 1, 0)
	c := block(models.ParagraphBlock, 2, 0)
	c.CreatedAt = epoch.Add(-time.Minute)

	o := New(testUser, "page", []models.Block{a, b, c})
	blocks := o.Blocks()
	require.Len(t, blocks, 3)
	assert.Equal(t, b.ID, blocks[0].ID)
	assert.Equal(t, c.ID, blocks[1].ID)
	assert.Equal(t, a.ID, blocks[2].ID)
}

func TestParentAndChildren(t *testing.T) {
	a := block(models.ParagraphBlock, 0, 0)
	b := block(models.ParagraphBlock, 1, 1)
	c := block(models.ParagraphBlock, 2, 2)
	d := block(models.ParagraphBlock, 3, 1)
	o := New(testUser, "page", []models.Block{a, b, c, d})

	p, ok := o.Parent(d.ID)
	require.True(t, ok)
	assert.Equal(t, a.ID, p.ID)
	p, ok = o.Parent(c.ID)
	require.True(t, ok)
	assert.Equal(t, b.ID, p.ID)
	_, ok = o.Parent(a.ID)
	assert.False(t, ok)

	children := o.Children(a.ID)
	require.Len(t, children, 2)
	assert.Equal(t, b.ID, children[0].ID)
	assert.Equal(t, d.ID, children[1].ID)
	assert.Equal(t, []uuid.UUID{b.ID, c.ID}, o.Subtree(b.ID))
}

func TestIndentThenCreateAfter(t *testing.T) {
	a := block(models.ParagraphBlock, 0, 0)
	b := block(models.ParagraphBlock, 1, 0)
	o := New(testUser, "page", []models.Block{a, b}, clock())

	require.NoError(t, o.Indent(b.ID))
	assert.Equal(t, 1, mustFind(t, o, b.ID).IndentLevel)
	assert.Nil(t, mustFind(t, o, b.ID).TaskMetadata)
	assert.Nil(t, mustFind(t, o, a.ID).TaskMetadata)

	created, err := o.InsertAfter(&a.ID, Draft{Type: models.ParagraphBlock, Content: "x"})
	require.NoError(t, err)
	assert.Greater(t, created.Order, 0.0)
	assert.Less(t, created.Order, 1.0)
	assert.Equal(t, epoch, created.CreatedAt)
	require.NoError(t, o.Validate())

	changes := o.Diff()
	require.Len(t, changes.Created, 1)
	assert.Equal(t, "x", changes.Created[0].Content)
	require.Len(t, changes.Patches, 1)
	assert.Equal(t, b.ID, changes.Patches[0].ID)
	require.NotNil(t, changes.Patches[0].Fields.IndentLevel)
	assert.Equal(t, 1, *changes.Patches[0].Fields.IndentLevel)
}

func TestInsertAfter_Boundaries(t *testing.T) {
	o := New(testUser, "page", nil)
	first, err := o.InsertAfter(nil, Draft{Content: "first"})
	require.NoError(t, err)
	assert.Equal(t, 0.0, first.Order)
	assert.Equal(t, models.ParagraphBlock, first.Type)

	last, err := o.InsertAfter(nil, Draft{Content: "last"})
	require.NoError(t, err)
	assert.Equal(t, 1.0, last.Order)

	after, err := o.InsertAfter(&last.ID, Draft{Content: "after", IndentLevel: 4})
	require.NoError(t, err)
	assert.Equal(t, 2.0, after.Order)
	assert.Equal(t, 1, after.IndentLevel)

	missing := uuid.New()
	_, err = o.InsertAfter(&missing, Draft{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInsertAfter_RepeatedMidpointsStayDistinct(t *testing.T) {
	a := block(models.ParagraphBlock, 0, 0)
	b := block(models.ParagraphBlock, 1, 0)
	o := New(testUser, "page", []models.Block{a, b})

	anchor := a.ID
	for i := 0; i < 500; i++ {
		created, err := o.InsertAfter(&anchor, Draft{Content: "n"})
		require.NoError(t, err)
		anchor = created.ID
	}
	require.NoError(t, o.Validate())
	assert.Equal(t, 502, o.Len())

	seen := map[float64]bool{}
	for _, blk := range o.Blocks() {
		assert.False(t, seen[blk.Order])
		seen[blk.Order] = true
	}
}

func TestInsertAfter_TodoUnderTodoIsLinked(t *testing.T) {
	p := block(models.TodoListBlock, 0, 0)
	o := New(testUser, "page", []models.Block{p})

	c, err := o.InsertAfter(&p.ID, Draft{Type: models.TodoListBlock, Content: "child", IndentLevel: 1})
	require.NoError(t, err)

	pid, ok := c.ParentTaskID()
	require.True(t, ok)
	assert.Equal(t, p.ID, pid)
	assert.Equal(t, []uuid.UUID{c.ID}, mustFind(t, o, p.ID).SubtaskIDs())
	require.NoError(t, o.Validate())
}

func TestIndent_TodoLinksToPreviousTodoSibling(t *testing.T) {
	p := block(models.TodoListBlock, 0, 0)
	note := block(models.ParagraphBlock, 1, 0)
	c := block(models.TodoListBlock, 2, 0)
	o := New(testUser, "page", []models.Block{p, note, c})

	require.NoError(t, o.Indent(c.ID))

	child := mustFind(t, o, c.ID)
	assert.Equal(t, 1, child.IndentLevel)
	pid, ok := child.ParentTaskID()
	require.True(t, ok)
	assert.Equal(t, p.ID, pid)
	assert.Equal(t, []uuid.UUID{c.ID}, mustFind(t, o, p.ID).SubtaskIDs())
	require.NoError(t, o.Validate())
}

func TestIndent_MovesSubtreeAndStopsAtMax(t *testing.T) {
	blocks := []models.Block{block(models.ParagraphBlock, 0, 0)}
	for i := 1; i <= models.MaxIndent; i++ {
		blocks = append(blocks, block(models.ParagraphBlock, float64(i), i-1))
	}
	// indenting the second block would push the deepest one past MaxIndent
	blocks = append(blocks, block(models.ParagraphBlock, 10, models.MaxIndent))
	o := New(testUser, "page", blocks)

	assert.ErrorIs(t, o.Indent(blocks[1].ID), ErrInvalidTransition)
	assert.True(t, o.Diff().Empty())

	assert.ErrorIs(t, o.Indent(blocks[0].ID), ErrInvalidTransition)
	assert.ErrorIs(t, o.Indent(uuid.New()), ErrNotFound)
}

func TestIndent_SubtreeFollows(t *testing.T) {
	a := block(models.ParagraphBlock, 0, 0)
	b := block(models.ParagraphBlock, 1, 0)
	c := block(models.ParagraphBlock, 2, 1)
	d := block(models.ParagraphBlock, 3, 0)
	o := New(testUser, "page", []models.Block{a, b, c, d})

	require.NoError(t, o.Indent(b.ID))
	assert.Equal(t, 1, mustFind(t, o, b.ID).IndentLevel)
	assert.Equal(t, 2, mustFind(t, o, c.ID).IndentLevel)
	assert.Equal(t, 0, mustFind(t, o, d.ID).IndentLevel)

	assert.ErrorIs(t, o.Indent(b.ID), ErrInvalidTransition)
}

func TestOutdent_SeversLinkAndMovesSubtree(t *testing.T) {
	p := block(models.TodoListBlock, 0, 0)
	c := block(models.TodoListBlock, 1, 1)
	g := block(models.TodoListBlock, 2, 2)
	link(&p, &c)
	link(&c, &g)
	o := New(testUser, "page", []models.Block{p, c, g})
	require.NoError(t, o.Validate())

	require.NoError(t, o.Outdent(c.ID))

	child := mustFind(t, o, c.ID)
	assert.Equal(t, 0, child.IndentLevel)
	_, ok := child.ParentTaskID()
	assert.False(t, ok)
	assert.Empty(t, mustFind(t, o, p.ID).SubtaskIDs())

	grand := mustFind(t, o, g.ID)
	assert.Equal(t, 1, grand.IndentLevel)
	pid, ok := grand.ParentTaskID()
	require.True(t, ok)
	assert.Equal(t, c.ID, pid)
	require.NoError(t, o.Validate())

	assert.ErrorIs(t, o.Outdent(p.ID), ErrInvalidTransition)
}

func TestMoveUpDown_SwapOrders(t *testing.T) {
	a := block(models.ParagraphBlock, 10, 0)
	b := block(models.ParagraphBlock, 20, 0)
	c := block(models.ParagraphBlock, 30, 0)
	o := New(testUser, "page", []models.Block{a, b, c})

	require.NoError(t, o.MoveUp(c.ID))
	blocks := o.Blocks()
	assert.Equal(t, []uuid.UUID{a.ID, c.ID, b.ID}, []uuid.UUID{blocks[0].ID, blocks[1].ID, blocks[2].ID})
	assert.Equal(t, 20.0, mustFind(t, o, c.ID).Order)
	assert.Equal(t, 30.0, mustFind(t, o, b.ID).Order)
	assert.Len(t, o.Diff().Patches, 2)

	require.NoError(t, o.MoveDown(a.ID))
	assert.Equal(t, c.ID, o.Blocks()[0].ID)

	assert.ErrorIs(t, o.MoveUp(c.ID), ErrInvalidTransition)
	assert.ErrorIs(t, o.MoveDown(b.ID), ErrInvalidTransition)
}

func TestMoveUp_ClampsAndSeversInvalidLink(t *testing.T) {
	p := block(models.TodoListBlock, 0, 0)
	c := block(models.TodoListBlock, 1, 1)
	link(&p, &c)
	o := New(testUser, "page", []models.Block{p, c})

	require.NoError(t, o.MoveUp(c.ID))

	child := mustFind(t, o, c.ID)
	assert.Equal(t, 0, child.IndentLevel)
	_, ok := child.ParentTaskID()
	assert.False(t, ok)
	assert.Empty(t, mustFind(t, o, p.ID).SubtaskIDs())
	require.NoError(t, o.Validate())
}

func TestDuplicate_InsertsAfterSubtreeWithoutLinks(t *testing.T) {
	p := block(models.TodoListBlock, 0, 0)
	c := block(models.TodoListBlock, 1, 1)
	g := block(models.TodoListBlock, 2, 2)
	n := block(models.ParagraphBlock, 3, 0)
	value := 5000.0
	c.TaskMetadata.Amount = &value
	c.Content = "review @5K"
	c.IsChecked = true
	link(&p, &c)
	link(&c, &g)
	o := New(testUser, "page", []models.Block{p, c, g, n})

	cp, err := o.Duplicate(c.ID)
	require.NoError(t, err)

	pos, _ := o.Position(cp.ID)
	assert.Equal(t, 3, pos)
	assert.Equal(t, c.Content, cp.Content)
	assert.Equal(t, c.Type, cp.Type)
	assert.Equal(t, c.IndentLevel, cp.IndentLevel)
	assert.True(t, cp.IsChecked)
	require.NotNil(t, cp.TaskMetadata)
	assert.Equal(t, 5000.0, *cp.TaskMetadata.Amount)
	_, linked := cp.ParentTaskID()
	assert.False(t, linked)
	assert.Empty(t, cp.SubtaskIDs())
	assert.Equal(t, []uuid.UUID{c.ID}, mustFind(t, o, p.ID).SubtaskIDs())
	require.NoError(t, o.Validate())

	_, err = o.Duplicate(uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRemove_CleansUpOrphans(t *testing.T) {
	p := block(models.TodoListBlock, 0, 0)
	c := block(models.TodoListBlock, 1, 1)
	g := block(models.TodoListBlock, 2, 2)
	link(&p, &c)
	link(&c, &g)
	o := New(testUser, "page", []models.Block{p, c, g})

	require.NoError(t, o.Remove(c.ID))

	assert.Empty(t, mustFind(t, o, p.ID).SubtaskIDs())
	grand := mustFind(t, o, g.ID)
	assert.Equal(t, 1, grand.IndentLevel)
	_, ok := grand.ParentTaskID()
	assert.False(t, ok)
	require.NoError(t, o.Validate())

	changes := o.Diff()
	assert.Equal(t, []uuid.UUID{c.ID}, changes.Deleted)
	assert.ErrorIs(t, o.Remove(c.ID), ErrNotFound)
}

func TestSetType_LeavingTodoDropsMetadata(t *testing.T) {
	p := block(models.TodoListBlock, 0, 0)
	c := block(models.TodoListBlock, 1, 1)
	link(&p, &c)
	o := New(testUser, "page", []models.Block{p, c})

	require.NoError(t, o.SetType(p.ID, models.Heading1Block))
	assert.Nil(t, mustFind(t, o, p.ID).TaskMetadata)
	_, ok := mustFind(t, o, c.ID).ParentTaskID()
	assert.False(t, ok)
	require.NoError(t, o.Validate())

	require.NoError(t, o.SetType(p.ID, models.TodoListBlock))
	assert.NotNil(t, mustFind(t, o, p.ID).TaskMetadata)
	assert.ErrorIs(t, o.SetType(p.ID, "bogus"), ErrInvalidTransition)
}

func checkedFamily(t *testing.T) (*Outline, models.Block, []models.Block) {
	t.Helper()
	p := block(models.TodoListBlock, 0, 0)
	kids := []models.Block{
		block(models.TodoListBlock, 1, 1),
		block(models.TodoListBlock, 2, 1),
		block(models.TodoListBlock, 3, 1),
	}
	for i := range kids {
		link(&p, &kids[i])
	}
	all := append([]models.Block{p}, kids...)
	return New(testUser, "page", all), p, kids
}

func TestSetChecked_ParentChecksAllChildren(t *testing.T) {
	o, p, kids := checkedFamily(t)

	require.NoError(t, o.SetChecked(p.ID, true))
	for _, k := range kids {
		assert.True(t, mustFind(t, o, k.ID).IsChecked)
	}
}

func TestSetChecked_UncheckingChildNeverChecksParent(t *testing.T) {
	o, p, kids := checkedFamily(t)
	require.NoError(t, o.SetChecked(kids[0].ID, true))
	require.NoError(t, o.SetChecked(kids[1].ID, true))
	assert.False(t, mustFind(t, o, p.ID).IsChecked)

	require.NoError(t, o.SetChecked(kids[0].ID, false))
	assert.False(t, mustFind(t, o, p.ID).IsChecked)
	assert.True(t, mustFind(t, o, kids[1].ID).IsChecked)
}

func TestSetChecked_LastChildFlipsParent(t *testing.T) {
	o, p, kids := checkedFamily(t)
	for _, k := range kids {
		require.NoError(t, o.SetChecked(k.ID, true))
	}
	assert.True(t, mustFind(t, o, p.ID).IsChecked)

	require.NoError(t, o.SetChecked(kids[0].ID, false))
	require.NoError(t, o.SetChecked(kids[1].ID, false))
	assert.True(t, mustFind(t, o, p.ID).IsChecked)

	require.NoError(t, o.SetChecked(kids[2].ID, false))
	assert.False(t, mustFind(t, o, p.ID).IsChecked)
}

func TestSetChecked_UncheckingParentLeavesChildren(t *testing.T) {
	o, p, kids := checkedFamily(t)
	require.NoError(t, o.SetChecked(p.ID, true))
	require.NoError(t, o.SetChecked(p.ID, false))
	for _, k := range kids {
		assert.True(t, mustFind(t, o, k.ID).IsChecked)
	}
}

func TestSetChecked_NonTodo(t *testing.T) {
	a := block(models.ParagraphBlock, 0, 0)
	o := New(testUser, "page", []models.Block{a})
	assert.ErrorIs(t, o.SetChecked(a.ID, true), ErrInvalidTransition)
	assert.ErrorIs(t, o.SetChecked(uuid.New(), true), ErrNotFound)
}

func TestDiff_ReplaysToWorkingCopy(t *testing.T) {
	a := block(models.ParagraphBlock, 0, 0)
	b := block(models.TodoListBlock, 1, 0)
	c := block(models.TodoListBlock, 2, 0)
	loaded := []models.Block{a, b, c}
	o := New(testUser, "page", loaded)

	require.NoError(t, o.Indent(c.ID))
	_, err := o.Duplicate(a.ID)
	require.NoError(t, err)
	require.NoError(t, o.Remove(a.ID))

	assert.Equal(t, o.Blocks(), replay(loaded, o.Diff()))
}

// replay applies a change plan to a loaded page the way the store would.
func replay(loaded []models.Block, ch Changes) []models.Block {
	byID := map[uuid.UUID]models.Block{}
	for _, b := range loaded {
		byID[b.ID] = b.Clone()
	}
	for _, b := range ch.Created {
		byID[b.ID] = b.Clone()
	}
	for _, p := range ch.Patches {
		b := byID[p.ID]
		p.Fields.Apply(&b)
		byID[p.ID] = b
	}
	for _, id := range ch.Deleted {
		delete(byID, id)
	}
	out := make([]models.Block, 0, len(byID))
	for _, b := range byID {
		out = append(out, b)
	}
	return New(testUser, "page", out).Blocks()
}

func TestRandomOperationsKeepInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	types := []models.BlockType{
		models.ParagraphBlock, models.TodoListBlock, models.TodoListBlock,
		models.BulletedListBlock, models.Heading2Block,
	}
	positions := []DropPosition{DropAbove, DropBelow, DropChild}

	o := New(testUser, "page", nil)
	pick := func() (uuid.UUID, bool) {
		if o.Len() == 0 {
			return uuid.Nil, false
		}
		return o.blocks[rng.Intn(o.Len())].ID, true
	}

	for step := 0; step < 2000; step++ {
		id, ok := pick()
		var err error
		switch op := rng.Intn(10); {
		case op < 3 || !ok:
			var anchor *uuid.UUID
			if ok && rng.Intn(4) > 0 {
				anchor = &id
			}
			_, err = o.InsertAfter(anchor, Draft{
				Type:        types[rng.Intn(len(types))],
				Content:     "n",
				IndentLevel: rng.Intn(models.MaxIndent + 2),
			})
		case op == 3:
			err = o.Indent(id)
		case op == 4:
			err = o.Outdent(id)
		case op == 5:
			if rng.Intn(2) == 0 {
				err = o.MoveUp(id)
			} else {
				err = o.MoveDown(id)
			}
		case op == 6:
			_, err = o.Duplicate(id)
		case op == 7:
			if o.Len() > 3 {
				err = o.Remove(id)
			}
		case op == 8:
			err = o.SetChecked(id, rng.Intn(2) == 0)
		default:
			target, _ := pick()
			err = o.Move(MoveRequest{BlockID: id, TargetID: &target, Position: positions[rng.Intn(3)]})
		}
		if err != nil {
			require.ErrorIs(t, err, ErrInvalidTransition, "step %d", step)
		}
		require.NoError(t, o.Validate(), "step %d", step)
	}
}

func TestChangesMerge_Coalesces(t *testing.T) {
	created := block(models.ParagraphBlock, 0, 0)
	patchedID, deletedID := uuid.New(), uuid.New()
	first, second, indent := "first", "second", 1
	order := 2000.0

	c := Changes{
		Created: []models.Block{created},
		Patches: []models.BlockPatch{{ID: patchedID, Fields: models.BlockFields{Content: &first}}},
	}
	other := Changes{
		Patches: []models.BlockPatch{
			{ID: created.ID, Fields: models.BlockFields{Content: &second}},
			{ID: patchedID, Fields: models.BlockFields{Content: &second, IndentLevel: &indent}},
			{ID: deletedID, Fields: models.BlockFields{Order: &order}},
		},
		Deleted: []uuid.UUID{deletedID},
	}

	got := c.Merge(other)
	require.Len(t, got.Created, 1)
	assert.Equal(t, "second", got.Created[0].Content)
	require.Len(t, got.Patches, 1)
	assert.Equal(t, patchedID, got.Patches[0].ID)
	assert.Equal(t, "second", *got.Patches[0].Fields.Content)
	assert.Equal(t, 1, *got.Patches[0].Fields.IndentLevel)
	assert.Equal(t, []uuid.UUID{deletedID}, got.Deleted)
	assert.Equal(t, "paragraph", c.Created[0].Content)

	dropped := got.Merge(Changes{Deleted: []uuid.UUID{created.ID}})
	assert.Empty(t, dropped.Created)
	assert.Equal(t, []uuid.UUID{deletedID}, dropped.Deleted)
}
