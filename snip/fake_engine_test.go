package snip

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math"
	"sync"

	"github.com/drummonds/pdfsnip/config"
	"github.com/drummonds/pdfsnip/render"
)

// fakeEngine is an in-memory rendering backend for tests. Pages render
// with their page number in the red channel so a test can tell which
// page a raster came from.
type fakeEngine struct {
	mu         sync.Mutex
	parseCalls int
	parseErr   error

	pageCount  int
	pageWidth  int
	pageHeight int

	// renderGate, when non-nil, blocks Render until the gate closes or
	// the context is cancelled. gatePage restricts the gate to one page
	// number; zero gates every page.
	renderGate chan struct{}
	gatePage   int
	renderErr  error

	// ignoreCancel makes Render run to completion even when its context
	// is already cancelled, to exercise stale-completion handling
	ignoreCancel bool
}

func newFakeEngine(pageCount int) *fakeEngine {
	return &fakeEngine{pageCount: pageCount, pageWidth: 100, pageHeight: 140}
}

func (e *fakeEngine) ParseCalls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.parseCalls
}

func (e *fakeEngine) Parse(data []byte) (render.Document, error) {
	e.mu.Lock()
	e.parseCalls++
	e.mu.Unlock()
	if e.parseErr != nil {
		return nil, e.parseErr
	}
	return &fakeDocument{engine: e}, nil
}

func (e *fakeEngine) Close() error {
	return nil
}

type fakeDocument struct {
	engine *fakeEngine
	closed bool
}

func (d *fakeDocument) PageCount() int {
	return d.engine.pageCount
}

func (d *fakeDocument) Page(index int) (render.Page, error) {
	if d.closed {
		return nil, fmt.Errorf("document is closed")
	}
	if index < 0 || index >= d.engine.pageCount {
		return nil, fmt.Errorf("page index %d out of range", index)
	}
	return &fakePage{doc: d, index: index}, nil
}

func (d *fakeDocument) Close() error {
	d.closed = true
	return nil
}

type fakePage struct {
	doc      *fakeDocument
	index    int
	released bool
}

func (p *fakePage) Viewport(scale float64, rotation int) (render.Viewport, error) {
	w := int(math.Round(float64(p.doc.engine.pageWidth) * scale))
	h := int(math.Round(float64(p.doc.engine.pageHeight) * scale))
	if rotation == 90 || rotation == 270 {
		w, h = h, w
	}
	return render.Viewport{Width: w, Height: h}, nil
}

func (p *fakePage) Render(ctx context.Context, scale float64, rotation int) (image.Image, error) {
	engine := p.doc.engine
	if engine.renderGate != nil && (engine.gatePage == 0 || engine.gatePage == p.index+1) {
		if engine.ignoreCancel {
			<-engine.renderGate
		} else {
			select {
			case <-engine.renderGate:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	if engine.renderErr != nil {
		return nil, engine.renderErr
	}
	if !engine.ignoreCancel {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	viewport, _ := p.Viewport(scale, rotation)
	img := image.NewNRGBA(image.Rect(0, 0, viewport.Width, viewport.Height))
	pageMark := uint8(p.index + 1)
	for y := 0; y < viewport.Height; y++ {
		for x := 0; x < viewport.Width; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: pageMark, G: uint8(x), B: uint8(y), A: 255})
		}
	}
	return img, nil
}

func (p *fakePage) Release() {
	p.released = true
}

// pageOf reads the page marker back out of a rendered fake raster
func pageOf(img image.Image) int {
	nrgba, ok := img.(*image.NRGBA)
	if !ok {
		return -1
	}
	return int(nrgba.NRGBAAt(0, 0).R)
}

// testServerConfig returns a config with short timing windows so
// reconciler tests settle quickly
func testServerConfig() config.ServerConfig {
	return config.ServerConfig{
		MinScale:                0.5,
		MaxScale:                3.0,
		MaxUploadBytes:          50 * 1024 * 1024,
		FetchTimeoutSeconds:     5,
		HostDebounceMillis:      20,
		EchoGraceMillis:         60,
		CaptureRetentionMinutes: 60,
	}
}
