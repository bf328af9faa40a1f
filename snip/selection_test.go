package snip

import "testing"

func unitMetrics(w, h int) DisplayMetrics {
	return DisplayMetrics{
		DisplayWidth:  float64(w),
		DisplayHeight: float64(h),
		RasterWidth:   w,
		RasterHeight:  h,
	}
}

func TestSelectionNormalizationAllDirections(t *testing.T) {
	metrics := unitMetrics(200, 200)
	want := SelectionRect{X: 40, Y: 30, Width: 60, Height: 50}

	drags := []struct {
		name           string
		x1, y1, x2, y2 float64
	}{
		{"down-right", 40, 30, 100, 80},
		{"down-left", 100, 30, 40, 80},
		{"up-right", 40, 80, 100, 30},
		{"up-left", 100, 80, 40, 30},
	}
	for _, d := range drags {
		var tracker SelectionTracker
		tracker.Begin(d.x1, d.y1, metrics)
		tracker.Update((d.x1+d.x2)/2, (d.y1+d.y2)/2, metrics)
		rect, ok := tracker.End(d.x2, d.y2, metrics)
		if !ok {
			t.Errorf("%s: selection unexpectedly empty", d.name)
			continue
		}
		if rect != want {
			t.Errorf("%s: rect = %+v, want %+v", d.name, rect, want)
		}
	}
}

func TestDisplayToRasterScaling(t *testing.T) {
	// Raster rendered at 2x the CSS display size
	metrics := DisplayMetrics{
		DisplayWidth:  300,
		DisplayHeight: 400,
		RasterWidth:   600,
		RasterHeight:  800,
	}

	x, y := metrics.ToRaster(150, 100)
	if x != 300 || y != 200 {
		t.Errorf("ToRaster(150,100) = (%d,%d), want (300,200)", x, y)
	}

	var tracker SelectionTracker
	tracker.Begin(10, 10, metrics)
	rect, ok := tracker.End(60, 35, metrics)
	if !ok {
		t.Fatal("selection empty")
	}
	want := SelectionRect{X: 20, Y: 20, Width: 100, Height: 50}
	if rect != want {
		t.Errorf("rect = %+v, want %+v", rect, want)
	}
}

func TestPointerClampedToRasterExtent(t *testing.T) {
	metrics := unitMetrics(100, 100)

	var tracker SelectionTracker
	tracker.Begin(90, 90, metrics)
	rect, ok := tracker.End(500, -50, metrics)
	if !ok {
		t.Fatal("selection empty")
	}
	want := SelectionRect{X: 90, Y: 0, Width: 10, Height: 90}
	if rect != want {
		t.Errorf("rect = %+v, want clamped %+v", rect, want)
	}
}

func TestZeroAreaSelectionIsNoSelection(t *testing.T) {
	metrics := unitMetrics(100, 100)

	var tracker SelectionTracker
	tracker.Begin(50, 50, metrics)
	if _, ok := tracker.End(50, 70, metrics); ok {
		t.Error("zero-width drag must yield no selection")
	}
	if _, ok := tracker.Selection(); ok {
		t.Error("Selection must report nothing after a zero-area drag")
	}
}

func TestClearDropsSelection(t *testing.T) {
	metrics := unitMetrics(100, 100)

	var tracker SelectionTracker
	tracker.Begin(10, 10, metrics)
	if _, ok := tracker.End(40, 40, metrics); !ok {
		t.Fatal("expected a selection")
	}
	tracker.Clear()
	if _, ok := tracker.Selection(); ok {
		t.Error("selection survives Clear")
	}
}

func TestUpdateWithoutBeginIsNoOp(t *testing.T) {
	metrics := unitMetrics(100, 100)

	var tracker SelectionTracker
	tracker.Update(10, 10, metrics)
	if _, ok := tracker.End(40, 40, metrics); ok {
		t.Error("End without Begin produced a selection")
	}
}
