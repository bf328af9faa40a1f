package snip

import (
	"sync"
	"time"
)

// ViewState is the authoritative (page, scale) pair for one component
// session. Page is one-based.
type ViewState struct {
	Page  int     `json:"page"`
	Scale float64 `json:"scale"`
}

// reconcilerPhase is the loop-suppression state: idle, or holding an
// internally-driven value whose echo from the host should be ignored.
type reconcilerPhase int

const (
	phaseIdle reconcilerPhase = iota
	phaseAwaitingEcho
)

// Reconciler owns the view state and arbitrates between host-driven
// and user-driven updates without feeding either back into the other.
//
// User updates mutate immediately and notify the host, then hold an
// awaiting-echo phase for a grace window so the host re-supplying the
// same value is recognized as self-caused. Host updates are debounced
// and applied silently; applying one never emits a notification.
type Reconciler struct {
	mu sync.Mutex

	state     ViewState
	pageCount int

	minScale     float64
	maxScale     float64
	echoGrace    time.Duration
	hostDebounce time.Duration

	phase       reconcilerPhase
	awaiting    ViewState
	echoTimer   *time.Timer
	hostTimer   *time.Timer
	pendingHost ViewState

	lastNotified ViewState
	notified     bool

	// onNotify reports a user-driven change to the host.
	// onApply fires for every effective change, host- or user-driven,
	// so the owner can clear selections and re-render.
	onNotify func(ViewState)
	onApply  func(ViewState)

	stopped bool
}

// ReconcilerOptions configures the clamp window and the two timing windows
type ReconcilerOptions struct {
	MinScale     float64
	MaxScale     float64
	EchoGrace    time.Duration
	HostDebounce time.Duration
}

// NewReconciler starts at the given state. Both callbacks may be nil.
func NewReconciler(initial ViewState, opts ReconcilerOptions, onNotify, onApply func(ViewState)) *Reconciler {
	r := &Reconciler{
		minScale:     opts.MinScale,
		maxScale:     opts.MaxScale,
		echoGrace:    opts.EchoGrace,
		hostDebounce: opts.HostDebounce,
		onNotify:     onNotify,
		onApply:      onApply,
	}
	r.state = r.clamp(initial)
	return r
}

// State returns the current view state
func (r *Reconciler) State() ViewState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// PageCount returns the page count the reconciler is clamping against
func (r *Reconciler) PageCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pageCount
}

// clamp bounds scale to the configured window and page to
// [1, pageCount]. While the count is unknown the requested page is
// preserved rather than forced to 1.
func (r *Reconciler) clamp(v ViewState) ViewState {
	if v.Page < 1 {
		v.Page = 1
	}
	if r.pageCount > 0 && v.Page > r.pageCount {
		v.Page = r.pageCount
	}
	if v.Scale < r.minScale {
		v.Scale = r.minScale
	}
	if v.Scale > r.maxScale {
		v.Scale = r.maxScale
	}
	return v
}

// SetPageCount records the page count discovered by a load and
// re-clamps the pending page. A page pulled back into range counts as
// a user-visible change and is notified to the host.
func (r *Reconciler) SetPageCount(pageCount int) {
	r.mu.Lock()
	r.pageCount = pageCount
	clamped := r.clamp(r.state)
	if clamped == r.state {
		r.mu.Unlock()
		return
	}
	r.state = clamped
	notify := r.prepareNotifyLocked(clamped)
	r.mu.Unlock()

	r.fire(clamped, notify)
}

// SetFromUser applies a navigation or zoom made inside the component,
// then notifies the host unless the value matches the last notification.
func (r *Reconciler) SetFromUser(v ViewState) {
	r.mu.Lock()
	clamped := r.clamp(v)
	if clamped == r.state {
		r.mu.Unlock()
		return
	}
	r.state = clamped
	notify := r.prepareNotifyLocked(clamped)
	r.mu.Unlock()

	r.fire(clamped, notify)
}

// prepareNotifyLocked enters the awaiting-echo phase for the value about
// to be emitted and reports whether emission is needed at all.
func (r *Reconciler) prepareNotifyLocked(v ViewState) bool {
	if r.notified && v == r.lastNotified {
		return false
	}
	r.lastNotified = v
	r.notified = true

	r.awaiting = v
	r.phase = phaseAwaitingEcho
	if r.echoTimer != nil {
		r.echoTimer.Stop()
	}
	r.echoTimer = time.AfterFunc(r.echoGrace, func() {
		r.mu.Lock()
		if r.phase == phaseAwaitingEcho && r.awaiting == v {
			r.phase = phaseIdle
		}
		r.mu.Unlock()
	})
	return true
}

func (r *Reconciler) fire(v ViewState, notify bool) {
	if r.onApply != nil {
		r.onApply(v)
	}
	if notify && r.onNotify != nil {
		r.onNotify(v)
	}
}

// SetFromHost accepts (page, scale) supplied as external props.
// Unchanged values are ignored; the echo of a value this reconciler
// just emitted acknowledges the emission and is dropped; anything else
// is debounced, latest wins, then applied without re-notifying.
func (r *Reconciler) SetFromHost(v ViewState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}

	if v == r.state {
		if r.phase == phaseAwaitingEcho && v == r.awaiting {
			// Host acknowledged our own update
			r.phase = phaseIdle
			if r.echoTimer != nil {
				r.echoTimer.Stop()
			}
		}
		return
	}

	if r.phase == phaseAwaitingEcho {
		// An internal update is in flight; the host's value is stale
		Logger.Debug("Host view state ignored during internal update",
			"hostPage", v.Page, "hostScale", v.Scale)
		return
	}

	r.pendingHost = v
	if r.hostTimer != nil {
		r.hostTimer.Stop()
	}
	r.hostTimer = time.AfterFunc(r.hostDebounce, r.applyPendingHost)
}

func (r *Reconciler) applyPendingHost() {
	r.mu.Lock()
	if r.stopped || r.phase != phaseIdle {
		r.mu.Unlock()
		return
	}
	clamped := r.clamp(r.pendingHost)
	if clamped == r.state {
		r.mu.Unlock()
		return
	}
	r.state = clamped
	r.mu.Unlock()

	// Host-driven application never emits a host notification; that is
	// the feedback cycle this type exists to break.
	if r.onApply != nil {
		r.onApply(clamped)
	}
}

// Stop cancels pending timers. Further host updates are ignored.
func (r *Reconciler) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped = true
	if r.echoTimer != nil {
		r.echoTimer.Stop()
	}
	if r.hostTimer != nil {
		r.hostTimer.Stop()
	}
}
