package render

import (
	"context"
	"fmt"
	"image"
	"math"

	"github.com/gen2brain/go-fitz"
)

// FitzEngine implements PDF rendering using go-fitz (requires CGo and MuPDF)
type FitzEngine struct {
}

// NewFitzEngine creates a new Fitz-based PDF rendering engine
func NewFitzEngine() (*FitzEngine, error) {
	return &FitzEngine{}, nil
}

// Parse opens a PDF document from memory using go-fitz
func (e *FitzEngine) Parse(data []byte) (Document, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("unable to open PDF document: %w", err)
	}
	return &fitzDocument{doc: doc, pageCount: doc.NumPage()}, nil
}

// Close cleans up resources (no-op, documents hold the backend state)
func (e *FitzEngine) Close() error {
	return nil
}

type fitzDocument struct {
	doc       *fitz.Document
	pageCount int
	closed    bool
}

func (d *fitzDocument) PageCount() int {
	return d.pageCount
}

func (d *fitzDocument) Page(index int) (Page, error) {
	if d.closed {
		return nil, fmt.Errorf("document is closed")
	}
	if index < 0 || index >= d.pageCount {
		return nil, fmt.Errorf("page index %d out of range [0, %d)", index, d.pageCount)
	}
	bounds, err := d.doc.Bound(index)
	if err != nil {
		return nil, fmt.Errorf("unable to get bounds for page %d: %w", index, err)
	}
	return &fitzPage{doc: d, index: index, bounds: bounds}, nil
}

func (d *fitzDocument) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	return d.doc.Close()
}

type fitzPage struct {
	doc    *fitzDocument
	index  int
	bounds image.Rectangle
}

// Viewport scales the page's 72 DPI bounds and swaps axes for quarter turns
func (p *fitzPage) Viewport(scale float64, rotation int) (Viewport, error) {
	viewport := Viewport{
		Width:  int(math.Round(float64(p.bounds.Dx()) * scale)),
		Height: int(math.Round(float64(p.bounds.Dy()) * scale)),
	}
	return rotateViewport(viewport, rotation), nil
}

// Render rasterizes the page at the requested scale using go-fitz
func (p *fitzPage) Render(ctx context.Context, scale float64, rotation int) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.doc.closed {
		return nil, fmt.Errorf("document is closed")
	}

	img, err := p.doc.doc.ImageDPI(p.index, baseDPI*scale)
	if err != nil {
		return nil, fmt.Errorf("unable to render page %d: %w", p.index, err)
	}

	// go-fitz renders synchronously; honour a cancellation that arrived
	// while the raster was being produced by discarding the result.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return rotateImage(img, rotation), nil
}

// Release is a no-op for Fitz; page state lives in the document
func (p *fitzPage) Release() {
}
