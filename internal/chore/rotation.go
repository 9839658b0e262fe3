package chore

// Rotation policy. Two distinct mechanisms pick assignees:
//
// The very first offer of a cycle uses family-wide round-robin over the
// active children, seeded by the family's last assigned index. This spreads
// initial offers evenly regardless of who declines what.
//
// Within a decline cascade, the next offer goes to the lowest-id child who
// has not yet held an assignment this cycle. When every child has been
// offered once, the cycle is exhausted and the chore auto-accepts back to
// the first offeree.

// NextIndex returns the round-robin position for a fresh offer.
func NextIndex(lastIndex, childCount int) int {
	if childCount <= 0 {
		return 0
	}
	next := (lastIndex + 1) % childCount
	if next < 0 {
		next += childCount
	}
	return next
}

// NextUnoffered picks the first child (in the given order, which callers
// keep ascending by id) without an assignment this cycle. The second return
// is false when the cycle is exhausted.
func NextUnoffered(children []int64, offered map[int64]bool) (int64, bool) {
	for _, id := range children {
		if !offered[id] {
			return id, true
		}
	}
	return 0, false
}
