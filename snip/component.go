package snip

import (
	"context"
	"sync"
	"time"

	"github.com/drummonds/pdfsnip/config"
	"github.com/drummonds/pdfsnip/render"
)

// Callbacks are the host shell notifications. All are best-effort and
// may be nil; correctness never depends on the host acting on them.
type Callbacks struct {
	OnLoadingChange   func(loading bool)
	OnErrorChange     func(hasError bool, message string)
	OnViewStateChange func(state ViewState)
	OnSnip            func(artifact CapturedArtifact)
}

// renderRequest identifies one (document, page, scale, rotation)
// combination so identical back-to-back renders can be skipped
type renderRequest struct {
	generation uint64
	page       int
	scale      float64
	rotation   int
}

// Snipper is one mounted instance of the page-rendering and
// region-capture component. It owns the document handle, the single
// in-flight raster job, the authoritative view state and the active
// selection; all state is session-local and released by Close.
type Snipper struct {
	loader     *Loader
	pipeline   *Pipeline
	reconciler *Reconciler
	callbacks  Callbacks

	mu         sync.Mutex
	tracker    SelectionTracker
	rotation   int
	loading    bool
	closed     bool
	lastRender renderRequest
}

// ZoomStep is the scale increment for ZoomIn and ZoomOut
const ZoomStep = 0.25

// NewSnipper creates an idle component bound to a rendering engine
func NewSnipper(engine render.Engine, serverConfig config.ServerConfig, callbacks Callbacks) *Snipper {
	s := &Snipper{
		loader:    NewLoader(engine, serverConfig),
		callbacks: callbacks,
	}
	s.pipeline = NewPipeline(s.handleRaster, s.handleRenderFailure)
	s.reconciler = NewReconciler(
		ViewState{Page: 1, Scale: 1.0},
		ReconcilerOptions{
			MinScale:     serverConfig.MinScale,
			MaxScale:     serverConfig.MaxScale,
			EchoGrace:    time.Duration(serverConfig.EchoGraceMillis) * time.Millisecond,
			HostDebounce: time.Duration(serverConfig.HostDebounceMillis) * time.Millisecond,
		},
		s.handleViewNotify,
		s.handleViewApplied,
	)
	return s
}

// SetSource loads a document from a host-supplied byte source.
// Supplying the same source again is a no-op; a different source
// replaces the current document, cancelling any in-flight render.
func (s *Snipper) SetSource(ctx context.Context, source Source) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.loading = true
	s.mu.Unlock()

	s.setLoading(true)
	s.setError(nil)

	// The render job may still be reading the document we are about to
	// replace, so wait it out before the loader releases it.
	s.pipeline.CancelAndWait()

	handle, fresh, err := s.loader.Load(ctx, source)

	s.mu.Lock()
	s.loading = false
	if fresh {
		s.tracker.Clear()
		s.lastRender = renderRequest{}
	}
	s.mu.Unlock()

	if err != nil {
		s.pipeline.Reset()
		s.setLoading(false)
		s.reportError(err)
		return err
	}

	s.setLoading(false)
	if !fresh {
		return nil
	}

	s.pipeline.Reset()
	// Clamps the pending page now the count is known; fires the view
	// hooks if that moved the page.
	s.reconciler.SetPageCount(handle.PageCount())
	s.renderCurrent()
	return nil
}

// SetHostViewState accepts (page, scale) supplied by the host as props
func (s *Snipper) SetHostViewState(state ViewState) {
	s.reconciler.SetFromHost(state)
}

// ViewState returns the current (page, scale)
func (s *Snipper) ViewState() ViewState {
	return s.reconciler.State()
}

// PageCount returns the loaded document's page count, 0 before a load
func (s *Snipper) PageCount() int {
	if handle := s.loader.Current(); handle != nil {
		return handle.PageCount()
	}
	return 0
}

// SetPage navigates to a page; out-of-range values are clamped
func (s *Snipper) SetPage(page int) {
	state := s.reconciler.State()
	state.Page = page
	s.reconciler.SetFromUser(state)
}

// NextPage advances one page
func (s *Snipper) NextPage() {
	s.SetPage(s.reconciler.State().Page + 1)
}

// PreviousPage goes back one page
func (s *Snipper) PreviousPage() {
	s.SetPage(s.reconciler.State().Page - 1)
}

// SetScale zooms to an absolute scale, clamped to the configured window
func (s *Snipper) SetScale(scale float64) {
	state := s.reconciler.State()
	state.Scale = scale
	s.reconciler.SetFromUser(state)
}

// ZoomIn increases the scale by one step
func (s *Snipper) ZoomIn() {
	s.SetScale(s.reconciler.State().Scale + ZoomStep)
}

// ZoomOut decreases the scale by one step
func (s *Snipper) ZoomOut() {
	s.SetScale(s.reconciler.State().Scale - ZoomStep)
}

// Rotation returns the current clockwise rotation in degrees
func (s *Snipper) Rotation() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rotation
}

// Rotate turns the page a quarter turn clockwise. The raster geometry
// changes, so any selection is dropped.
func (s *Snipper) Rotate() {
	s.mu.Lock()
	s.rotation = (s.rotation + 90) % 360
	s.tracker.Clear()
	s.mu.Unlock()
	s.renderCurrent()
}

// PointerDown starts a selection drag at a display-space point
func (s *Snipper) PointerDown(displayX, displayY float64, metrics DisplayMetrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracker.Begin(displayX, displayY, metrics)
}

// PointerMove extends the selection drag
func (s *Snipper) PointerMove(displayX, displayY float64, metrics DisplayMetrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracker.Update(displayX, displayY, metrics)
}

// PointerUp finalizes the drag; ok is false for a zero-area selection
func (s *Snipper) PointerUp(displayX, displayY float64, metrics DisplayMetrics) (SelectionRect, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tracker.End(displayX, displayY, metrics)
}

// Selection returns the finalized selection rectangle, if any
func (s *Snipper) Selection() (SelectionRect, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tracker.Selection()
}

// SetSelection replaces the selection with a rectangle already in
// raster pixels, for hosts that track the drag themselves
func (s *Snipper) SetSelection(rect SelectionRect) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rect.Empty() {
		s.tracker.Clear()
		return
	}
	s.tracker.rect = rect
	s.tracker.selected = true
	s.tracker.dragging = false
}

// Raster returns the bitmap currently on display, nil before the first render
func (s *Snipper) Raster() *Raster {
	return s.pipeline.Raster()
}

// Snip crops the current selection out of the displayed raster and
// hands the artifact to the host via OnSnip
func (s *Snipper) Snip() (*CapturedArtifact, error) {
	raster := s.pipeline.Raster()
	rect, ok := s.Selection()
	if !ok {
		err := newError(ErrNoSelection, "no active selection", nil)
		s.reportError(err)
		return nil, err
	}

	artifact, err := Capture(raster, rect)
	if err != nil {
		s.reportError(err)
		return nil, err
	}
	if s.callbacks.OnSnip != nil {
		s.callbacks.OnSnip(*artifact)
	}
	return artifact, nil
}

// Refresh re-renders the current page, e.g. to retry after a render failure
func (s *Snipper) Refresh() {
	s.mu.Lock()
	s.lastRender = renderRequest{}
	s.mu.Unlock()
	s.renderCurrent()
}

// Close tears the component down: cancels in-flight work and releases
// the document. Safe to call more than once.
func (s *Snipper) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.tracker.Clear()
	s.mu.Unlock()

	s.reconciler.Stop()
	s.pipeline.CancelAndWait()
	s.loader.Close()
	Logger.Debug("Snipper closed")
}

// handleViewApplied fires for every effective view state change, from
// either side: the selection dies with the old page/scale and the new
// state needs a raster.
func (s *Snipper) handleViewApplied(state ViewState) {
	s.mu.Lock()
	s.tracker.Clear()
	s.mu.Unlock()
	s.renderCurrent()
}

// handleViewNotify reports a user-driven change to the host
func (s *Snipper) handleViewNotify(state ViewState) {
	if s.callbacks.OnViewStateChange != nil {
		s.callbacks.OnViewStateChange(state)
	}
}

func (s *Snipper) handleRaster(raster *Raster) {
	// Displayed raster changed; nothing to notify beyond the view state
	// hooks that triggered the render.
}

func (s *Snipper) handleRenderFailure(err error) {
	s.mu.Lock()
	s.lastRender = renderRequest{}
	s.mu.Unlock()
	s.reportError(err)
}

// renderCurrent kicks off a raster job for the current view state,
// unless a load is in progress, no document is loaded, or the same
// request is already rendered or in flight.
func (s *Snipper) renderCurrent() {
	s.mu.Lock()
	if s.closed || s.loading {
		s.mu.Unlock()
		return
	}
	rotation := s.rotation
	s.mu.Unlock()

	handle := s.loader.Current()
	if handle == nil {
		return
	}
	state := s.reconciler.State()
	request := renderRequest{
		generation: handle.Generation(),
		page:       state.Page,
		scale:      state.Scale,
		rotation:   rotation,
	}

	s.mu.Lock()
	if s.lastRender == request {
		s.mu.Unlock()
		return
	}
	s.lastRender = request
	s.mu.Unlock()

	s.pipeline.Render(handle, state.Page, state.Scale, rotation)
}

func (s *Snipper) setLoading(loading bool) {
	if s.callbacks.OnLoadingChange != nil {
		s.callbacks.OnLoadingChange(loading)
	}
}

// setError clears or reports the structured error state to the host
func (s *Snipper) setError(err error) {
	if s.callbacks.OnErrorChange == nil {
		return
	}
	if err == nil {
		s.callbacks.OnErrorChange(false, "")
		return
	}
	kind, ok := KindOf(err)
	if !ok {
		s.callbacks.OnErrorChange(true, "Something went wrong.")
		return
	}
	s.callbacks.OnErrorChange(true, kind.UserMessage())
}

func (s *Snipper) reportError(err error) {
	kind, _ := KindOf(err)
	Logger.Error("Snipper error", "kind", kind.String(), "error", err)
	s.setError(err)
}
