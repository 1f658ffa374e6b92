package outline

import (
	"fmt"

	"notion-lite/workspace/models"
)

// DropPosition is where a dragged block lands relative to its target.
type DropPosition string

const (
	DropAbove DropPosition = "above"
	DropBelow DropPosition = "below"
	DropChild DropPosition = "child"
)

func ParseDropPosition(s string) (DropPosition, error) {
	switch p := DropPosition(s); p {
	case DropAbove, DropBelow, DropChild:
		return p, nil
	}
	return "", fmt.Errorf("unknown drop position %q", s)
}

// Geometry is the pointer position relative to a target block's bounding box.
type Geometry struct {
	PointerY float64 `json:"pointerY"`
	Top      float64 `json:"top"`
	Height   float64 `json:"height"`
}

// ClassifyDrop maps a pointer position onto a drop position. The top quarter
// drops above, the bottom quarter below, and the middle half nests the block
// when the target accepts children. Otherwise the middle splits at its center.
func ClassifyDrop(g Geometry, target models.BlockType) DropPosition {
	if g.Height <= 0 {
		return DropBelow
	}
	rel := (g.PointerY - g.Top) / g.Height
	switch {
	case rel < 0.25:
		return DropAbove
	case rel > 0.75:
		return DropBelow
	case target.AcceptsChildren():
		return DropChild
	case rel < 0.5:
		return DropAbove
	default:
		return DropBelow
	}
}
