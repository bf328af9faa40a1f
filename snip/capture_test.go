package snip

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
	"time"
)

// gradientRaster builds a raster whose pixel at (x,y) is uniquely
// identifiable, so crops can be checked pixel for pixel
func gradientRaster(w, h, page int) *Raster {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: uint8(x ^ y), A: 255})
		}
	}
	return &Raster{Image: img, Width: w, Height: h, Page: page, Scale: 1}
}

func TestCaptureFidelity(t *testing.T) {
	raster := gradientRaster(200, 100, 1)
	rect := SelectionRect{X: 10, Y: 10, Width: 50, Height: 30}

	artifact, err := Capture(raster, rect)
	if err != nil {
		t.Fatalf("capture failed: %v", err)
	}

	decoded, err := png.Decode(bytes.NewReader(artifact.ImageData))
	if err != nil {
		t.Fatalf("artifact is not valid PNG: %v", err)
	}
	bounds := decoded.Bounds()
	if bounds.Dx() != 50 || bounds.Dy() != 30 {
		t.Fatalf("artifact dimensions = %dx%d, want 50x30", bounds.Dx(), bounds.Dy())
	}

	src := raster.Image.(*image.NRGBA)
	for y := 0; y < 30; y++ {
		for x := 0; x < 50; x++ {
			want := src.NRGBAAt(rect.X+x, rect.Y+y)
			r, g, b, a := decoded.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			got := color.NRGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: uint8(a >> 8)}
			if got != want {
				t.Fatalf("pixel (%d,%d) = %v, want %v", x, y, got, want)
			}
		}
	}
}

func TestCaptureRejectsEmptySelection(t *testing.T) {
	raster := gradientRaster(100, 100, 1)

	cases := []SelectionRect{
		{},
		{X: 10, Y: 10, Width: 0, Height: 20},
		{X: 10, Y: 10, Width: 20, Height: 0},
	}
	for _, rect := range cases {
		if _, err := Capture(raster, rect); err == nil {
			t.Errorf("rect %+v: expected NoSelection error", rect)
		} else if kind, _ := KindOf(err); kind != ErrNoSelection {
			t.Errorf("rect %+v: kind = %v, want NoSelection", rect, kind)
		}
	}
}

func TestCaptureWithoutRaster(t *testing.T) {
	_, err := Capture(nil, SelectionRect{X: 0, Y: 0, Width: 10, Height: 10})
	if kind, _ := KindOf(err); kind != ErrNoSelection {
		t.Errorf("kind = %v, want NoSelection", kind)
	}
}

func TestCaptureClampsToRasterBounds(t *testing.T) {
	raster := gradientRaster(100, 100, 1)

	artifact, err := Capture(raster, SelectionRect{X: 90, Y: 90, Width: 50, Height: 50})
	if err != nil {
		t.Fatalf("capture failed: %v", err)
	}
	decoded, err := png.Decode(bytes.NewReader(artifact.ImageData))
	if err != nil {
		t.Fatalf("artifact is not valid PNG: %v", err)
	}
	if decoded.Bounds().Dx() != 10 || decoded.Bounds().Dy() != 10 {
		t.Errorf("overhanging selection cropped to %dx%d, want 10x10",
			decoded.Bounds().Dx(), decoded.Bounds().Dy())
	}
}

func TestCaptureFileNameEncodesPageAndTime(t *testing.T) {
	at := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	name := captureFileName(7, at)
	if !strings.HasPrefix(name, "snip-page7-") || !strings.HasSuffix(name, ".png") {
		t.Errorf("unexpected file name %q", name)
	}

	later := captureFileName(7, at.Add(time.Millisecond))
	if name == later {
		t.Error("captures a millisecond apart must get distinct names")
	}
}
