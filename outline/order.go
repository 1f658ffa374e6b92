package outline

// orderBetween returns an order key strictly between the blocks at pos-1 and pos,
// or ok=false when float precision leaves no room.
func (o *Outline) orderBetween(pos int) (float64, bool) {
	hasPrev := pos > 0
	hasNext := pos < len(o.blocks)
	switch {
	case !hasPrev && !hasNext:
		return 0, true
	case !hasPrev:
		return o.blocks[pos].Order - 1, true
	case !hasNext:
		return o.blocks[pos-1].Order + 1, true
	}
	low, high := o.blocks[pos-1].Order, o.blocks[pos].Order
	mid := low + (high-low)/2
	if !(low < mid && mid < high) {
		return 0, false
	}
	return mid, true
}

// slotOrder finds an order key for an insertion at pos, renumbering the page
// first when the neighbors are too close together.
func (o *Outline) slotOrder(pos int) float64 {
	if order, ok := o.orderBetween(pos); ok {
		return order
	}
	o.Renumber()
	order, _ := o.orderBetween(pos)
	return order
}
