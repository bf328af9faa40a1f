package snip

import (
	"context"
	"errors"
	"image"
	"sync"

	"github.com/oklog/ulid/v2"
)

// JobState is the lifecycle of one raster job
type JobState int

const (
	// JobPending means the render has not finished yet
	JobPending JobState = iota
	// JobRendered means the raster is the one on display
	JobRendered
	// JobCancelled means a newer job superseded this one
	JobCancelled
	// JobFailed means rendering failed for a reason other than cancellation
	JobFailed
)

func (s JobState) String() string {
	switch s {
	case JobPending:
		return "pending"
	case JobRendered:
		return "rendered"
	case JobCancelled:
		return "cancelled"
	case JobFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Raster is one rendered page bitmap plus the geometry the selection
// tracker needs to map pointer coordinates.
type Raster struct {
	Image    image.Image
	Width    int
	Height   int
	Page     int
	Scale    float64
	Rotation int
}

// RasterJob is one outstanding render request. At most one job is alive
// per pipeline; starting a new one cancels the previous one and its
// eventual completion is discarded.
type RasterJob struct {
	ID       ulid.ULID
	Page     int
	Scale    float64
	Rotation int

	generation uint64
	cancel     context.CancelFunc
	done       chan struct{}

	mu    sync.Mutex
	state JobState
	err   error
}

// Done is closed once the job has reached a terminal state
func (j *RasterJob) Done() <-chan struct{} {
	return j.done
}

// State returns the job's current lifecycle state
func (j *RasterJob) State() JobState {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// Err returns the render failure, nil for rendered or cancelled jobs
func (j *RasterJob) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

// Cancel asks the job to stop. Safe to call repeatedly and after completion.
func (j *RasterJob) Cancel() {
	j.cancel()
}

func (j *RasterJob) finish(state JobState, err error) {
	j.mu.Lock()
	j.state = state
	j.err = err
	j.mu.Unlock()
	close(j.done)
}

// Pipeline renders pages one job at a time. A new Render call
// supersedes the in-flight job; stale completions are detected by
// generation number and never reach the displayed raster.
type Pipeline struct {
	mu         sync.Mutex
	generation uint64
	current    *RasterJob
	raster     *Raster

	// onRaster is called with each newly displayed raster, onFailure
	// with render failures. Cancellations report to neither.
	onRaster  func(*Raster)
	onFailure func(error)
}

// NewPipeline creates an idle pipeline. Both callbacks may be nil.
func NewPipeline(onRaster func(*Raster), onFailure func(error)) *Pipeline {
	return &Pipeline{onRaster: onRaster, onFailure: onFailure}
}

// Render starts rasterizing the given page of the document, cancelling
// any job still in flight. pageNumber is one-based.
func (p *Pipeline) Render(handle *DocumentHandle, pageNumber int, scale float64, rotation int) *RasterJob {
	ctx, cancel := context.WithCancel(context.Background())

	p.mu.Lock()
	if p.current != nil {
		p.current.Cancel()
	}
	p.generation++
	job := &RasterJob{
		ID:         ulid.Make(),
		Page:       pageNumber,
		Scale:      scale,
		Rotation:   rotation,
		generation: p.generation,
		cancel:     cancel,
		done:       make(chan struct{}),
		state:      JobPending,
	}
	p.current = job
	p.mu.Unlock()

	Logger.Debug("Render job started", "jobID", job.ID, "page", pageNumber, "scale", scale, "rotation", rotation)
	go p.run(ctx, job, handle)
	return job
}

func (p *Pipeline) run(ctx context.Context, job *RasterJob, handle *DocumentHandle) {
	page, err := handle.page(job.Page)
	if err != nil {
		p.fail(job, newError(ErrRenderFailure, "page unavailable", err))
		return
	}
	defer page.Release()

	img, err := page.Render(ctx, job.Scale, job.Rotation)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			job.finish(JobCancelled, nil)
			Logger.Debug("Render job cancelled", "jobID", job.ID)
			return
		}
		p.fail(job, newError(ErrRenderFailure, "page failed to render", err))
		return
	}

	bounds := img.Bounds()
	raster := &Raster{
		Image:    img,
		Width:    bounds.Dx(),
		Height:   bounds.Dy(),
		Page:     job.Page,
		Scale:    job.Scale,
		Rotation: job.Rotation,
	}

	p.mu.Lock()
	if job.generation != p.generation {
		// A newer job took over while this one was rendering
		p.mu.Unlock()
		job.finish(JobCancelled, nil)
		Logger.Debug("Render job superseded, result dropped", "jobID", job.ID)
		return
	}
	p.raster = raster
	p.mu.Unlock()

	job.finish(JobRendered, nil)
	Logger.Debug("Render job completed", "jobID", job.ID, "width", raster.Width, "height", raster.Height)
	if p.onRaster != nil {
		p.onRaster(raster)
	}
}

func (p *Pipeline) fail(job *RasterJob, err error) {
	// Cancellation may race the failure; a superseded job stays silent
	p.mu.Lock()
	stale := job.generation != p.generation
	p.mu.Unlock()
	if stale {
		job.finish(JobCancelled, nil)
		return
	}

	job.finish(JobFailed, err)
	Logger.Error("Render job failed", "jobID", job.ID, "page", job.Page, "error", err)
	if p.onFailure != nil {
		p.onFailure(err)
	}
}

// Raster returns the bitmap currently on display, nil before the first
// successful render
func (p *Pipeline) Raster() *Raster {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.raster
}

// CancelAndWait cancels the in-flight job, if any, and blocks until it
// reaches a terminal state. Used before releasing the document the job
// may still be reading.
func (p *Pipeline) CancelAndWait() {
	p.mu.Lock()
	job := p.current
	p.mu.Unlock()
	if job == nil {
		return
	}
	job.Cancel()
	<-job.Done()
}

// Reset drops the displayed raster, invalidating any job still in flight
func (p *Pipeline) Reset() {
	p.mu.Lock()
	if p.current != nil {
		p.current.Cancel()
	}
	p.generation++
	p.raster = nil
	p.mu.Unlock()
}
