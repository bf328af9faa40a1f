package snip

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/drummonds/pdfsnip/config"
	"github.com/drummonds/pdfsnip/render"
)

// DocumentHandle is one successfully parsed document. It exclusively
// owns the engine document underneath it and carries a generation
// number so completions racing against a replacement can be detected.
type DocumentHandle struct {
	doc        render.Document
	pageCount  int
	generation uint64
}

// PageCount returns the number of pages in the document
func (h *DocumentHandle) PageCount() int {
	return h.pageCount
}

// Generation returns the load generation this handle belongs to
func (h *DocumentHandle) Generation() uint64 {
	return h.generation
}

// page returns the engine page for a one-based page number
func (h *DocumentHandle) page(pageNumber int) (render.Page, error) {
	return h.doc.Page(pageNumber - 1)
}

func (h *DocumentHandle) release() {
	if h.doc != nil {
		if err := h.doc.Close(); err != nil {
			Logger.Warn("Error releasing document", "error", err)
		}
		h.doc = nil
	}
}

// Loader turns a byte source into a validated DocumentHandle.
// It owns at most one handle at a time; loading a new source releases
// the previous document, and loading an unchanged source is suppressed.
type Loader struct {
	engine   render.Engine
	resolver resolver

	mu         sync.Mutex
	lastSource Source
	current    *DocumentHandle
	generation uint64
}

// NewLoader creates a Loader backed by the given rendering engine
func NewLoader(engine render.Engine, serverConfig config.ServerConfig) *Loader {
	return &Loader{
		engine: engine,
		resolver: resolver{
			client: &http.Client{
				Timeout: time.Duration(serverConfig.FetchTimeoutSeconds) * time.Second,
			},
			maxUploadBytes: serverConfig.MaxUploadBytes,
		},
	}
}

// Load resolves and parses the source. fresh is false when the source
// equals the previously loaded one and the existing handle was reused
// without any fetch or parse. On failure no handle remains: a load
// error always clears stale state so the host can offer a retry.
func (l *Loader) Load(ctx context.Context, source Source) (handle *DocumentHandle, fresh bool, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.current != nil && source.Equal(l.lastSource) {
		Logger.Debug("Reload suppressed, source unchanged", "source", source.describe())
		return l.current, false, nil
	}

	// The old handle is discarded up front: a failed load must not leave
	// a half-replaced document visible.
	l.discardLocked()

	data, err := l.resolver.resolve(ctx, source)
	if err != nil {
		return nil, true, err
	}
	if len(data) == 0 {
		return nil, true, newError(ErrEmptyDocument, "document payload is empty", nil)
	}

	doc, err := l.engine.Parse(data)
	if err != nil {
		return nil, true, newError(ErrInvalidFormat, "document failed to parse", err)
	}

	l.generation++
	l.current = &DocumentHandle{
		doc:        doc,
		pageCount:  doc.PageCount(),
		generation: l.generation,
	}
	l.lastSource = source
	Logger.Info("Document loaded", "source", source.describe(), "pages", l.current.pageCount)
	return l.current, true, nil
}

// Current returns the handle from the last successful load, if any
func (l *Loader) Current() *DocumentHandle {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

// Close releases the held document. The loader can be reused afterwards.
func (l *Loader) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.discardLocked()
}

func (l *Loader) discardLocked() {
	if l.current != nil {
		l.current.release()
		l.current = nil
	}
	l.lastSource = Source{}
}
