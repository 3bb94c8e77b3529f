// Package viewport holds the pure scroll math used when prepending older
// history, kept free of any rendering framework so it can be tested
// directly.
package viewport

// ComputeScrollAdjustment returns the scroll offset that keeps the
// previously visible content anchored after a prepend changed the content
// height. It must be applied in the same update that performed the
// prepend, before the next paint.
func ComputeScrollAdjustment(oldHeight, newHeight, oldScrollTop int) int {
	delta := newHeight - oldHeight
	if delta <= 0 {
		return oldScrollTop
	}
	return oldScrollTop + delta
}

// AtBottom reports whether a viewport of viewHeight rows, scrolled to
// offset within contentHeight rows, is showing the newest content. slack
// tolerates partial rows.
func AtBottom(offset, viewHeight, contentHeight, slack int) bool {
	if contentHeight <= viewHeight {
		return true
	}
	return offset+viewHeight+slack >= contentHeight
}

// AtTop reports whether the viewport is scrolled to the oldest loaded
// content, the trigger position for backward pagination.
func AtTop(offset, slack int) bool {
	return offset <= slack
}
