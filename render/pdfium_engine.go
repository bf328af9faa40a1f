package render

import (
	"context"
	"fmt"
	"image"
	"math"
	"time"

	"github.com/klippa-app/go-pdfium"
	"github.com/klippa-app/go-pdfium/references"
	"github.com/klippa-app/go-pdfium/requests"
	"github.com/klippa-app/go-pdfium/webassembly"
)

// PdfiumEngine implements PDF rendering using go-pdfium with WebAssembly (pure Go, no CGo)
type PdfiumEngine struct {
	pool     pdfium.Pool
	instance pdfium.Pdfium
}

// NewPdfiumEngine creates a new PDFium-based rendering engine using WebAssembly
func NewPdfiumEngine() (*PdfiumEngine, error) {
	// Single-threaded usage, keep the worker pool minimal
	pool, err := webassembly.Init(webassembly.Config{
		MinIdle:  1,
		MaxIdle:  1,
		MaxTotal: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PDFium WebAssembly: %w", err)
	}

	instance, err := pool.GetInstance(time.Second * 30)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to get PDFium instance: %w", err)
	}

	return &PdfiumEngine{
		pool:     pool,
		instance: instance,
	}, nil
}

// Parse opens a PDF document held in memory
func (e *PdfiumEngine) Parse(data []byte) (Document, error) {
	doc, err := e.instance.OpenDocument(&requests.OpenDocument{
		File: &data,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to open PDF document: %w", err)
	}

	pageCountResp, err := e.instance.FPDF_GetPageCount(&requests.FPDF_GetPageCount{
		Document: doc.Document,
	})
	if err != nil {
		e.instance.FPDF_CloseDocument(&requests.FPDF_CloseDocument{
			Document: doc.Document,
		})
		return nil, fmt.Errorf("unable to get page count: %w", err)
	}

	return &pdfiumDocument{
		engine:    e,
		document:  doc.Document,
		pageCount: pageCountResp.PageCount,
	}, nil
}

// Close cleans up resources used by the PDFium engine
func (e *PdfiumEngine) Close() error {
	if e.pool != nil {
		e.pool.Close()
		e.pool = nil
	}
	e.instance = nil
	return nil
}

type pdfiumDocument struct {
	engine    *PdfiumEngine
	document  references.FPDF_DOCUMENT
	pageCount int
	closed    bool
}

func (d *pdfiumDocument) PageCount() int {
	return d.pageCount
}

func (d *pdfiumDocument) Page(index int) (Page, error) {
	if d.closed {
		return nil, fmt.Errorf("document is closed")
	}
	if index < 0 || index >= d.pageCount {
		return nil, fmt.Errorf("page index %d out of range [0, %d)", index, d.pageCount)
	}
	return &pdfiumPage{doc: d, index: index}, nil
}

func (d *pdfiumDocument) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	_, err := d.engine.instance.FPDF_CloseDocument(&requests.FPDF_CloseDocument{
		Document: d.document,
	})
	if err != nil {
		return fmt.Errorf("unable to close document: %w", err)
	}
	return nil
}

type pdfiumPage struct {
	doc   *pdfiumDocument
	index int
}

// Viewport converts the page's point size to pixels at the requested scale
func (p *pdfiumPage) Viewport(scale float64, rotation int) (Viewport, error) {
	sizeResp, err := p.doc.engine.instance.GetPageSize(&requests.GetPageSize{
		Page: requests.Page{
			ByIndex: &requests.PageByIndex{
				Document: p.doc.document,
				Index:    p.index,
			},
		},
	})
	if err != nil {
		return Viewport{}, fmt.Errorf("unable to get size for page %d: %w", p.index, err)
	}
	viewport := Viewport{
		Width:  int(math.Round(sizeResp.Width * scale)),
		Height: int(math.Round(sizeResp.Height * scale)),
	}
	return rotateViewport(viewport, rotation), nil
}

// Render rasterizes the page at the requested scale using PDFium
func (p *pdfiumPage) Render(ctx context.Context, scale float64, rotation int) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.doc.closed {
		return nil, fmt.Errorf("document is closed")
	}

	pageRender, err := p.doc.engine.instance.RenderPageInDPI(&requests.RenderPageInDPI{
		DPI: int(math.Round(baseDPI * scale)),
		Page: requests.Page{
			ByIndex: &requests.PageByIndex{
				Document: p.doc.document,
				Index:    p.index,
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("unable to render page %d: %w", p.index, err)
	}

	img := image.Image(pageRender.Result.Image)
	// Free the WebAssembly-side buffer now that the image is on the Go heap
	pageRender.Cleanup()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return rotateImage(img, rotation), nil
}

// Release is a no-op; PDFium page state is owned by the document
func (p *pdfiumPage) Release() {
}
