package snip

import (
	"context"
	"sync"
	"testing"
	"time"
)

// callbackLog records host callback traffic thread-safely
type callbackLog struct {
	mu       sync.Mutex
	loading  []bool
	errors   []string
	hasError bool
	states   []ViewState
	snips    []CapturedArtifact
}

func (l *callbackLog) callbacks() Callbacks {
	return Callbacks{
		OnLoadingChange: func(loading bool) {
			l.mu.Lock()
			defer l.mu.Unlock()
			l.loading = append(l.loading, loading)
		},
		OnErrorChange: func(hasError bool, message string) {
			l.mu.Lock()
			defer l.mu.Unlock()
			l.hasError = hasError
			if hasError {
				l.errors = append(l.errors, message)
			}
		},
		OnViewStateChange: func(state ViewState) {
			l.mu.Lock()
			defer l.mu.Unlock()
			l.states = append(l.states, state)
		},
		OnSnip: func(artifact CapturedArtifact) {
			l.mu.Lock()
			defer l.mu.Unlock()
			l.snips = append(l.snips, artifact)
		},
	}
}

func (l *callbackLog) errorCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.errors)
}

func (l *callbackLog) snipCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.snips)
}

func (l *callbackLog) stateCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.states)
}

// waitForRaster polls until the snipper shows a raster for the wanted page
func waitForRaster(t *testing.T, s *Snipper, page int) *Raster {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if raster := s.Raster(); raster != nil && raster.Page == page {
			return raster
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("no raster for page %d", page)
	return nil
}

func newTestSnipper(t *testing.T, pages int, log *callbackLog) (*Snipper, *fakeEngine) {
	t.Helper()
	engine := newFakeEngine(pages)
	var callbacks Callbacks
	if log != nil {
		callbacks = log.callbacks()
	}
	s := NewSnipper(engine, testServerConfig(), callbacks)
	t.Cleanup(s.Close)
	return s, engine
}

func loadTestDocument(t *testing.T, s *Snipper) {
	t.Helper()
	err := s.SetSource(context.Background(), BytesSource("doc.pdf", "application/pdf", []byte("%PDF")))
	if err != nil {
		t.Fatalf("SetSource failed: %v", err)
	}
}

func TestComponentLoadsAndRenders(t *testing.T) {
	var log callbackLog
	s, _ := newTestSnipper(t, 4, &log)
	loadTestDocument(t, s)

	raster := waitForRaster(t, s, 1)
	if raster.Width != 100 || raster.Height != 140 {
		t.Errorf("raster = %dx%d, want 100x140", raster.Width, raster.Height)
	}
	if s.PageCount() != 4 {
		t.Errorf("PageCount = %d, want 4", s.PageCount())
	}

	log.mu.Lock()
	loadingSeq := append([]bool(nil), log.loading...)
	log.mu.Unlock()
	if len(loadingSeq) != 2 || !loadingSeq[0] || loadingSeq[1] {
		t.Errorf("loading sequence = %v, want [true false]", loadingSeq)
	}
}

func TestComponentEmptyFileScenario(t *testing.T) {
	var log callbackLog
	s, engine := newTestSnipper(t, 4, &log)

	err := s.SetSource(context.Background(), BytesSource("empty.pdf", "application/pdf", nil))
	if kind, ok := KindOf(err); !ok || kind != ErrEmptyDocument {
		t.Fatalf("expected EmptyDocument, got %v", err)
	}
	if engine.ParseCalls() != 0 {
		t.Error("no parse may be attempted for an empty payload")
	}
	if s.Raster() != nil || s.PageCount() != 0 {
		t.Error("no document state may be exposed after an empty load")
	}
	if log.errorCount() != 1 {
		t.Errorf("error callbacks = %d, want 1", log.errorCount())
	}
}

func TestComponentReloadSuppression(t *testing.T) {
	s, engine := newTestSnipper(t, 2, nil)
	source := BytesSource("doc.pdf", "application/pdf", []byte("%PDF"))

	if err := s.SetSource(context.Background(), source); err != nil {
		t.Fatal(err)
	}
	if err := s.SetSource(context.Background(), source); err != nil {
		t.Fatal(err)
	}
	if engine.ParseCalls() != 1 {
		t.Errorf("parse calls = %d for identical source, want 1", engine.ParseCalls())
	}
}

func TestComponentNavigationClearsSelection(t *testing.T) {
	s, _ := newTestSnipper(t, 3, nil)
	loadTestDocument(t, s)
	raster := waitForRaster(t, s, 1)

	metrics := DisplayMetrics{
		DisplayWidth:  float64(raster.Width),
		DisplayHeight: float64(raster.Height),
		RasterWidth:   raster.Width,
		RasterHeight:  raster.Height,
	}
	s.PointerDown(10, 10, metrics)
	s.PointerMove(50, 40, metrics)
	if _, ok := s.PointerUp(50, 40, metrics); !ok {
		t.Fatal("expected a selection on page 1")
	}

	s.NextPage()
	if _, ok := s.Selection(); ok {
		t.Error("selection must be cleared by page navigation")
	}
	waitForRaster(t, s, 2)
}

func TestComponentZoomClearsSelectionAndRerenders(t *testing.T) {
	s, _ := newTestSnipper(t, 2, nil)
	loadTestDocument(t, s)
	raster := waitForRaster(t, s, 1)

	metrics := DisplayMetrics{
		DisplayWidth:  float64(raster.Width),
		DisplayHeight: float64(raster.Height),
		RasterWidth:   raster.Width,
		RasterHeight:  raster.Height,
	}
	s.PointerDown(0, 0, metrics)
	s.PointerUp(30, 30, metrics)

	s.ZoomIn()
	if _, ok := s.Selection(); ok {
		t.Error("selection must be cleared by zoom")
	}
	if got := s.ViewState().Scale; got != 1.25 {
		t.Errorf("scale = %v after ZoomIn, want 1.25", got)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if raster := s.Raster(); raster != nil && raster.Scale == 1.25 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("no re-render at the new scale")
}

func TestComponentSnipDeliversArtifact(t *testing.T) {
	var log callbackLog
	s, _ := newTestSnipper(t, 2, &log)
	loadTestDocument(t, s)
	raster := waitForRaster(t, s, 1)

	metrics := DisplayMetrics{
		DisplayWidth:  float64(raster.Width),
		DisplayHeight: float64(raster.Height),
		RasterWidth:   raster.Width,
		RasterHeight:  raster.Height,
	}
	s.PointerDown(10, 10, metrics)
	s.PointerUp(60, 40, metrics)

	artifact, err := s.Snip()
	if err != nil {
		t.Fatalf("snip failed: %v", err)
	}
	if len(artifact.ImageData) == 0 || artifact.SuggestedFileName == "" {
		t.Error("artifact incomplete")
	}
	if log.snipCount() != 1 {
		t.Errorf("OnSnip fired %d times, want 1", log.snipCount())
	}
}

func TestComponentSnipWithoutSelection(t *testing.T) {
	var log callbackLog
	s, _ := newTestSnipper(t, 2, &log)
	loadTestDocument(t, s)
	waitForRaster(t, s, 1)

	_, err := s.Snip()
	if kind, ok := KindOf(err); !ok || kind != ErrNoSelection {
		t.Fatalf("expected NoSelection, got %v", err)
	}
	if log.snipCount() != 0 {
		t.Error("OnSnip must not fire without a selection")
	}
}

func TestComponentHostEchoDoesNotReemit(t *testing.T) {
	var log callbackLog
	s, _ := newTestSnipper(t, 5, &log)
	loadTestDocument(t, s)
	waitForRaster(t, s, 1)

	s.NextPage()
	if log.stateCount() != 1 {
		t.Fatalf("OnViewStateChange fired %d times, want 1", log.stateCount())
	}

	// Host echoes the emitted state straight back as props
	s.SetHostViewState(ViewState{Page: 2, Scale: 1})
	time.Sleep(80 * time.Millisecond)

	if log.stateCount() != 1 {
		t.Errorf("echo caused a second emission: %d", log.stateCount())
	}
	if got := s.ViewState().Page; got != 2 {
		t.Errorf("page = %d after echo, want 2", got)
	}
}

func TestComponentCancelAndReplaceDisplaysLatest(t *testing.T) {
	s, engine := newTestSnipper(t, 3, nil)
	loadTestDocument(t, s)
	waitForRaster(t, s, 1)

	engine.renderGate = make(chan struct{})
	engine.gatePage = 2
	s.SetPage(2)
	s.SetPage(3)
	close(engine.renderGate)

	raster := waitForRaster(t, s, 3)
	if pageOf(raster.Image) != 3 {
		t.Errorf("displayed raster marker = %d, want 3", pageOf(raster.Image))
	}
}

func TestComponentRotateClearsSelection(t *testing.T) {
	s, _ := newTestSnipper(t, 2, nil)
	loadTestDocument(t, s)
	raster := waitForRaster(t, s, 1)

	metrics := DisplayMetrics{
		DisplayWidth:  float64(raster.Width),
		DisplayHeight: float64(raster.Height),
		RasterWidth:   raster.Width,
		RasterHeight:  raster.Height,
	}
	s.PointerDown(0, 0, metrics)
	s.PointerUp(20, 20, metrics)

	s.Rotate()
	if _, ok := s.Selection(); ok {
		t.Error("selection must be cleared by rotation")
	}
	if s.Rotation() != 90 {
		t.Errorf("rotation = %d, want 90", s.Rotation())
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if r := s.Raster(); r != nil && r.Rotation == 90 {
			if r.Width != 140 || r.Height != 100 {
				t.Errorf("rotated raster = %dx%d, want 140x100", r.Width, r.Height)
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("no re-render after rotation")
}

func TestComponentCloseIsIdempotent(t *testing.T) {
	s, _ := newTestSnipper(t, 2, nil)
	loadTestDocument(t, s)
	waitForRaster(t, s, 1)

	s.Close()
	s.Close()

	// Operations after close are harmless no-ops
	if err := s.SetSource(context.Background(), BytesSource("x.pdf", "application/pdf", []byte("x"))); err != nil {
		t.Errorf("SetSource after close returned %v", err)
	}
}
