package snip

import "math"

// SelectionRect is a normalized rectangle in raster pixel coordinates.
// X/Y is always the minimum corner; Width/Height are never negative.
type SelectionRect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Empty reports whether the rectangle selects no pixels
func (r SelectionRect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// DisplayMetrics describes how the raster is currently laid out on
// screen. The raster may be displayed smaller or larger than its pixel
// size, so the ratio must be recomputed from live layout per event.
type DisplayMetrics struct {
	DisplayWidth  float64
	DisplayHeight float64
	RasterWidth   int
	RasterHeight  int
}

// ToRaster maps a display-space point to raster pixels, clamped to the
// raster's own extent so a drag leaving the page cannot select pixels
// outside it.
func (m DisplayMetrics) ToRaster(displayX, displayY float64) (int, int) {
	if m.DisplayWidth <= 0 || m.DisplayHeight <= 0 {
		return 0, 0
	}
	x := displayX * float64(m.RasterWidth) / m.DisplayWidth
	y := displayY * float64(m.RasterHeight) / m.DisplayHeight

	x = math.Min(math.Max(x, 0), float64(m.RasterWidth))
	y = math.Min(math.Max(y, 0), float64(m.RasterHeight))
	return int(math.Round(x)), int(math.Round(y))
}

// SelectionTracker turns a pointer drag over the displayed raster into
// a normalized SelectionRect, independent of display scaling.
type SelectionTracker struct {
	dragging bool
	startX   int
	startY   int

	rect     SelectionRect
	selected bool
}

// Begin starts a drag at a display-space point
func (t *SelectionTracker) Begin(displayX, displayY float64, metrics DisplayMetrics) {
	t.startX, t.startY = metrics.ToRaster(displayX, displayY)
	t.dragging = true
	t.rect = SelectionRect{X: t.startX, Y: t.startY}
	t.selected = false
}

// Update extends the drag to the current pointer position. Dragging in
// any direction yields the bounding box of start and current point.
func (t *SelectionTracker) Update(displayX, displayY float64, metrics DisplayMetrics) {
	if !t.dragging {
		return
	}
	x, y := metrics.ToRaster(displayX, displayY)
	t.rect = normalizeRect(t.startX, t.startY, x, y)
}

// End finalizes the drag. A zero-area rectangle means no selection.
func (t *SelectionTracker) End(displayX, displayY float64, metrics DisplayMetrics) (SelectionRect, bool) {
	if !t.dragging {
		return SelectionRect{}, false
	}
	t.dragging = false
	x, y := metrics.ToRaster(displayX, displayY)
	t.rect = normalizeRect(t.startX, t.startY, x, y)
	t.selected = !t.rect.Empty()
	if !t.selected {
		t.rect = SelectionRect{}
	}
	return t.rect, t.selected
}

// Selection returns the finalized rectangle, if any
func (t *SelectionTracker) Selection() (SelectionRect, bool) {
	if !t.selected {
		return SelectionRect{}, false
	}
	return t.rect, true
}

// Dragging reports whether a drag is in progress; Rect is the live
// rectangle while it is.
func (t *SelectionTracker) Dragging() bool {
	return t.dragging
}

// Rect returns the current rectangle, final or mid-drag
func (t *SelectionTracker) Rect() SelectionRect {
	return t.rect
}

// Clear drops any selection. Called whenever page, scale or rotation
// changes, since a rectangle is meaningless across those.
func (t *SelectionTracker) Clear() {
	t.dragging = false
	t.selected = false
	t.rect = SelectionRect{}
}

func normalizeRect(x1, y1, x2, y2 int) SelectionRect {
	if x2 < x1 {
		x1, x2 = x2, x1
	}
	if y2 < y1 {
		y1, y2 = y2, y1
	}
	return SelectionRect{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}
}
