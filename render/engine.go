package render

import (
	"context"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// Viewport is the pixel size a page occupies when rendered at a given
// scale and rotation.
type Viewport struct {
	Width  int
	Height int
}

// Engine defines the interface to a PDF rendering backend
type Engine interface {
	// Parse opens a PDF from raw bytes and returns a document handle.
	// The caller owns the document and must Close it.
	Parse(data []byte) (Document, error)

	// Close cleans up any resources used by the engine
	Close() error
}

// Document is one parsed PDF held by an Engine
type Document interface {
	// PageCount returns the number of pages in the document
	PageCount() int

	// Page returns a handle for the zero-based page index.
	// The caller must Release the page when done with it.
	Page(index int) (Page, error)

	// Close releases the document and any backend resources
	Close() error
}

// Page is one page of a Document
type Page interface {
	// Viewport reports the pixel dimensions of the page at the given
	// scale and rotation without rendering it
	Viewport(scale float64, rotation int) (Viewport, error)

	// Render rasterizes the page at the given scale and rotation.
	// The context cancels the render cooperatively: a cancelled render
	// returns ctx.Err() and no image.
	Render(ctx context.Context, scale float64, rotation int) (image.Image, error)

	// Release frees the page handle
	Release()
}

// NewEngine creates a rendering engine for the configured backend,
// "fitz" (MuPDF, CGo) or "pdfium" (WebAssembly, pure Go).
func NewEngine(backend string) (Engine, error) {
	switch backend {
	case "", "fitz":
		return NewFitzEngine()
	case "pdfium":
		return NewPdfiumEngine()
	default:
		return nil, fmt.Errorf("unknown renderer backend %q", backend)
	}
}

// Scale 1.0 renders at 72 DPI, so one PDF point maps to one pixel.
// Both backends share this mapping so switching backends keeps
// raster coordinates stable.
const baseDPI = 72.0

// normalizeRotation folds any rotation into {0, 90, 180, 270}
func normalizeRotation(rotation int) int {
	rotation = ((rotation % 360) + 360) % 360
	// Snap to the nearest quarter turn; the engines only support quarter turns
	return (rotation / 90 * 90) % 360
}

// rotateImage applies a clockwise quarter-turn rotation to a rendered page.
// imaging's RotateN helpers turn counter-clockwise, hence the swap.
func rotateImage(img image.Image, rotation int) image.Image {
	switch normalizeRotation(rotation) {
	case 90:
		return imaging.Rotate270(img)
	case 180:
		return imaging.Rotate180(img)
	case 270:
		return imaging.Rotate90(img)
	default:
		return img
	}
}

// rotateViewport swaps the viewport axes for quarter turns
func rotateViewport(viewport Viewport, rotation int) Viewport {
	switch normalizeRotation(rotation) {
	case 90, 270:
		return Viewport{Width: viewport.Height, Height: viewport.Width}
	default:
		return viewport
	}
}
