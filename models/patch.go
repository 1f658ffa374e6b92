package models

import (
	"github.com/google/uuid"
)

// BlockFields is a sparse set of block field changes. Nil fields are left untouched.
type BlockFields struct {
	PageID       *string
	Type         *BlockType
	Content      *string
	Order        *float64
	IndentLevel  *int
	IsChecked    *bool
	TaskMetadata **TaskMetadata
}

// BlockPatch pairs a block id with the fields to change.
type BlockPatch struct {
	ID     uuid.UUID   `json:"id"`
	Fields BlockFields `json:"-"`
}

func (f BlockFields) IsEmpty() bool {
	return f.PageID == nil && f.Type == nil && f.Content == nil && f.Order == nil &&
		f.IndentLevel == nil && f.IsChecked == nil && f.TaskMetadata == nil
}

// Apply copies the set fields onto b.
func (f BlockFields) Apply(b *Block) {
	if f.PageID != nil {
		b.PageID = *f.PageID
	}
	if f.Type != nil {
		b.Type = *f.Type
	}
	if f.Content != nil {
		b.Content = *f.Content
	}
	if f.Order != nil {
		b.Order = *f.Order
	}
	if f.IndentLevel != nil {
		b.IndentLevel = *f.IndentLevel
	}
	if f.IsChecked != nil {
		b.IsChecked = *f.IsChecked
	}
	if f.TaskMetadata != nil {
		b.TaskMetadata = (*f.TaskMetadata).Clone()
	}
}

// Columns returns the gorm column map for an Updates call.
func (f BlockFields) Columns() map[string]interface{} {
	cols := map[string]interface{}{}
	if f.PageID != nil {
		cols["page_id"] = *f.PageID
	}
	if f.Type != nil {
		cols["type"] = string(*f.Type)
	}
	if f.Content != nil {
		cols["content"] = *f.Content
	}
	if f.Order != nil {
		cols["order"] = *f.Order
	}
	if f.IndentLevel != nil {
		cols["indent_level"] = *f.IndentLevel
	}
	if f.IsChecked != nil {
		cols["is_checked"] = *f.IsChecked
	}
	if f.TaskMetadata != nil {
		cols["task_metadata"] = *f.TaskMetadata
	}
	return cols
}

// Merge overlays other onto f, other winning on conflicts.
func (f BlockFields) Merge(other BlockFields) BlockFields {
	if other.PageID != nil {
		f.PageID = other.PageID
	}
	if other.Type != nil {
		f.Type = other.Type
	}
	if other.Content != nil {
		f.Content = other.Content
	}
	if other.Order != nil {
		f.Order = other.Order
	}
	if other.IndentLevel != nil {
		f.IndentLevel = other.IndentLevel
	}
	if other.IsChecked != nil {
		f.IsChecked = other.IsChecked
	}
	if other.TaskMetadata != nil {
		f.TaskMetadata = other.TaskMetadata
	}
	return f
}

// DiffBlocks returns the fields of after that differ from before.
func DiffBlocks(before, after *Block) BlockFields {
	var f BlockFields
	if before.PageID != after.PageID {
		v := after.PageID
		f.PageID = &v
	}
	if before.Type != after.Type {
		v := after.Type
		f.Type = &v
	}
	if before.Content != after.Content {
		v := after.Content
		f.Content = &v
	}
	if before.Order != after.Order {
		v := after.Order
		f.Order = &v
	}
	if before.IndentLevel != after.IndentLevel {
		v := after.IndentLevel
		f.IndentLevel = &v
	}
	if before.IsChecked != after.IsChecked {
		v := after.IsChecked
		f.IsChecked = &v
	}
	if !before.TaskMetadata.Equal(after.TaskMetadata) {
		v := after.TaskMetadata.Clone()
		f.TaskMetadata = &v
	}
	return f
}
