package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func float(v float64) *float64 { return &v }

func TestBlockTypes(t *testing.T) {
	assert.True(t, TodoListBlock.Valid())
	assert.True(t, DividerBlock.Valid())
	assert.False(t, BlockType("task").Valid())

	assert.True(t, ParagraphBlock.AcceptsChildren())
	assert.True(t, TodoListBlock.AcceptsChildren())
	assert.False(t, Heading1Block.AcceptsChildren())
	assert.False(t, DividerBlock.AcceptsChildren())
}

func TestTaskMetadataValueAndScan(t *testing.T) {
	due := time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC)
	parent := uuid.New()
	tm := &TaskMetadata{
		Amount:       float(5000),
		Effort:       float(2),
		ROI:          float(2500),
		DueDate:      &due,
		Company:      "ACME",
		Status:       StatusNext,
		ParentTaskID: &parent,
	}

	raw, err := tm.Value()
	require.NoError(t, err)
	assert.Contains(t, string(raw.([]byte)), `"value":5000`)

	var back TaskMetadata
	require.NoError(t, back.Scan(raw))
	assert.True(t, tm.Equal(&back))

	require.NoError(t, back.Scan(string(raw.([]byte))))
	assert.True(t, tm.Equal(&back))

	require.NoError(t, back.Scan(nil))
	assert.Equal(t, TaskMetadata{}, back)

	assert.Error(t, back.Scan(42))

	var missing *TaskMetadata
	v, err := missing.Value()
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestTaskMetadataClone(t *testing.T) {
	child := uuid.New()
	tm := &TaskMetadata{Amount: float(100), Status: StatusNow, SubtaskIDs: []uuid.UUID{child}}
	cp := tm.Clone()
	require.True(t, tm.Equal(cp))

	*cp.Amount = 200
	cp.SubtaskIDs[0] = uuid.New()
	assert.Equal(t, 100.0, *tm.Amount)
	assert.Equal(t, child, tm.SubtaskIDs[0])
	assert.False(t, tm.Equal(cp))

	var none *TaskMetadata
	assert.Nil(t, none.Clone())
	assert.True(t, none.Equal(nil))
	assert.False(t, none.Equal(tm))
}

func TestBlockLinks(t *testing.T) {
	parent := uuid.New()
	child := uuid.New()
	b := Block{ID: uuid.New(), Type: TodoListBlock}

	_, ok := b.ParentTaskID()
	assert.False(t, ok)
	assert.Nil(t, b.SubtaskIDs())

	b.TaskMetadata = &TaskMetadata{ParentTaskID: &parent, SubtaskIDs: []uuid.UUID{child}}
	got, ok := b.ParentTaskID()
	assert.True(t, ok)
	assert.Equal(t, parent, got)
	assert.Equal(t, []uuid.UUID{child}, b.SubtaskIDs())
	assert.True(t, b.IsTodo())

	cp := b.Clone()
	cp.TaskMetadata.SubtaskIDs = nil
	assert.Len(t, b.SubtaskIDs(), 1)
}

func TestBlockJSON(t *testing.T) {
	b := Block{
		ID:           uuid.New(),
		UserID:       uuid.New(),
		PageID:       "next",
		Type:         TodoListBlock,
		Content:      "buy milk",
		Order:        1000,
		IndentLevel:  1,
		TaskMetadata: &TaskMetadata{Status: StatusNext},
	}
	data, err := json.Marshal(b)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"pageId":"next"`)
	assert.Contains(t, string(data), `"indentLevel":1`)
	assert.Contains(t, string(data), `"taskMetadata":{"status":"next"}`)
	assert.NotContains(t, string(data), "isChecked")
}
