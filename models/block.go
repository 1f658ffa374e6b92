package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

type BlockType string

const (
	ParagraphBlock    BlockType = "paragraph"
	Heading1Block     BlockType = "heading-1"
	Heading2Block     BlockType = "heading-2"
	Heading3Block     BlockType = "heading-3"
	BulletedListBlock BlockType = "bulleted-list"
	NumberedListBlock BlockType = "numbered-list"
	TodoListBlock     BlockType = "todo-list"
	QuoteBlock        BlockType = "quote"
	CodeBlock         BlockType = "code"
	DividerBlock      BlockType = "divider"
)

const (
	// MaxIndent is the deepest nesting level a block may reach.
	MaxIndent = 5
	// OrderStep is the spacing used when a page is renumbered.
	OrderStep = 1000.0
)

// Valid reports whether t is one of the known block types.
func (t BlockType) Valid() bool {
	switch t {
	case ParagraphBlock, Heading1Block, Heading2Block, Heading3Block,
		BulletedListBlock, NumberedListBlock, TodoListBlock,
		QuoteBlock, CodeBlock, DividerBlock:
		return true
	}
	return false
}

// AcceptsChildren reports whether a block of this type may receive a dropped child.
func (t BlockType) AcceptsChildren() bool {
	switch t {
	case ParagraphBlock, BulletedListBlock, NumberedListBlock, TodoListBlock:
		return true
	}
	return false
}

// TaskMetadata is the structured task information mirrored from a todo block's text
// and location. ROI is a cache of Amount/Effort and is never trusted from clients.
type TaskMetadata struct {
	Amount       *float64    `json:"value,omitempty"`
	Effort       *float64    `json:"effort,omitempty"`
	DueDate      *time.Time  `json:"dueDate,omitempty"`
	Assignee     string      `json:"assignee,omitempty"`
	Company      string      `json:"company,omitempty"`
	ROI          *float64    `json:"roi,omitempty"`
	Status       GTDStatus   `json:"status,omitempty"`
	ParentTaskID *uuid.UUID  `json:"parentTaskId,omitempty"`
	SubtaskIDs   []uuid.UUID `json:"subtaskIds,omitempty"`
}

// Value implements the driver.Valuer interface for JSONB storage
func (tm *TaskMetadata) Value() (driver.Value, error) {
	if tm == nil {
		return nil, nil
	}
	return json.Marshal(tm)
}

// Scan implements the sql.Scanner interface for JSONB retrieval
func (tm *TaskMetadata) Scan(value interface{}) error {
	if value == nil {
		*tm = TaskMetadata{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("type assertion to []byte failed")
	}

	return json.Unmarshal(bytes, tm)
}

// Clone returns a deep copy so outline working copies never alias snapshot data.
func (tm *TaskMetadata) Clone() *TaskMetadata {
	if tm == nil {
		return nil
	}
	out := *tm
	out.Amount = cloneFloat(tm.Amount)
	out.Effort = cloneFloat(tm.Effort)
	out.ROI = cloneFloat(tm.ROI)
	if tm.DueDate != nil {
		d := *tm.DueDate
		out.DueDate = &d
	}
	if tm.ParentTaskID != nil {
		p := *tm.ParentTaskID
		out.ParentTaskID = &p
	}
	if tm.SubtaskIDs != nil {
		out.SubtaskIDs = append([]uuid.UUID{}, tm.SubtaskIDs...)
	}
	return &out
}

// Equal compares two metadata values field by field.
func (tm *TaskMetadata) Equal(other *TaskMetadata) bool {
	if tm == nil || other == nil {
		return tm == nil && other == nil
	}
	a, errA := json.Marshal(tm)
	b, errB := json.Marshal(other)
	if errA != nil || errB != nil {
		return false
	}
	return string(a) == string(b)
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

// Block represents a content block within a page
type Block struct {
	ID           uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	UserID       uuid.UUID     `gorm:"type:uuid;not null;index:idx_blocks_user_page" json:"userId"`
	PageID       string        `gorm:"type:varchar(128);not null;index:idx_blocks_user_page" json:"pageId"`
	Type         BlockType     `gorm:"type:varchar(20);not null" json:"type"`
	Content      string        `gorm:"type:text;not null" json:"content"`
	Order        float64       `gorm:"column:order;not null" json:"order"`
	IndentLevel  int           `gorm:"not null;default:0" json:"indentLevel"`
	IsChecked    bool          `gorm:"not null;default:false" json:"isChecked,omitempty"`
	TaskMetadata *TaskMetadata `gorm:"type:jsonb" json:"taskMetadata,omitempty"`
	CreatedAt    time.Time     `gorm:"not null" json:"createdAt"`
	UpdatedAt    time.Time     `gorm:"not null" json:"updatedAt"`
}

// IsTodo reports whether the block is a checklist item.
func (b *Block) IsTodo() bool {
	return b.Type == TodoListBlock
}

// ParentTaskID returns the linked parent task, if any.
func (b *Block) ParentTaskID() (uuid.UUID, bool) {
	if b.TaskMetadata == nil || b.TaskMetadata.ParentTaskID == nil {
		return uuid.Nil, false
	}
	return *b.TaskMetadata.ParentTaskID, true
}

// SubtaskIDs returns the linked child tasks.
func (b *Block) SubtaskIDs() []uuid.UUID {
	if b.TaskMetadata == nil {
		return nil
	}
	return b.TaskMetadata.SubtaskIDs
}

// Clone returns a deep copy of the block.
func (b Block) Clone() Block {
	b.TaskMetadata = b.TaskMetadata.Clone()
	return b
}
