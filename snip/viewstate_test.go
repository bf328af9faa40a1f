package snip

import (
	"sync"
	"testing"
	"time"
)

func testReconcilerOptions() ReconcilerOptions {
	return ReconcilerOptions{
		MinScale:     0.5,
		MaxScale:     3.0,
		EchoGrace:    60 * time.Millisecond,
		HostDebounce: 20 * time.Millisecond,
	}
}

// notifyRecorder collects host notifications thread-safely
type notifyRecorder struct {
	mu     sync.Mutex
	states []ViewState
}

func (n *notifyRecorder) record(v ViewState) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.states = append(n.states, v)
}

func (n *notifyRecorder) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.states)
}

func TestClampedPageInvariant(t *testing.T) {
	cases := []struct {
		pageCount int
		requested int
		want      int
	}{
		{5, 1, 1},
		{5, 5, 5},
		{5, 9, 5},
		{5, 0, 1},
		{5, -3, 1},
		{1, 7, 1},
	}
	for _, c := range cases {
		r := NewReconciler(ViewState{Page: 1, Scale: 1}, testReconcilerOptions(), nil, nil)
		r.SetPageCount(c.pageCount)
		r.SetFromUser(ViewState{Page: c.requested, Scale: 1})
		if got := r.State().Page; got != c.want {
			t.Errorf("pageCount=%d requested=%d: page=%d, want %d", c.pageCount, c.requested, got, c.want)
		}
	}
}

func TestPagePreservedWhileCountUnknown(t *testing.T) {
	r := NewReconciler(ViewState{Page: 1, Scale: 1}, testReconcilerOptions(), nil, nil)

	// Document not loaded yet: the request must not be forced to 1
	r.SetFromUser(ViewState{Page: 7, Scale: 1})
	if got := r.State().Page; got != 7 {
		t.Fatalf("page = %d while count unknown, want 7 preserved", got)
	}

	r.SetPageCount(3)
	if got := r.State().Page; got != 3 {
		t.Errorf("page = %d after count discovered, want clamped to 3", got)
	}
}

func TestScaleClampedToWindow(t *testing.T) {
	r := NewReconciler(ViewState{Page: 1, Scale: 1}, testReconcilerOptions(), nil, nil)

	r.SetFromUser(ViewState{Page: 1, Scale: 10})
	if got := r.State().Scale; got != 3.0 {
		t.Errorf("scale = %v, want clamped to 3.0", got)
	}
	r.SetFromUser(ViewState{Page: 1, Scale: 0.01})
	if got := r.State().Scale; got != 0.5 {
		t.Errorf("scale = %v, want clamped to 0.5", got)
	}
}

func TestUserChangeNotifiesHostOnce(t *testing.T) {
	var rec notifyRecorder
	r := NewReconciler(ViewState{Page: 1, Scale: 1}, testReconcilerOptions(), rec.record, nil)
	r.SetPageCount(10)

	r.SetFromUser(ViewState{Page: 2, Scale: 1})
	if rec.count() != 1 {
		t.Fatalf("notifications = %d, want 1", rec.count())
	}

	// Same value again: no mutation, no second emission
	r.SetFromUser(ViewState{Page: 2, Scale: 1})
	if rec.count() != 1 {
		t.Errorf("notifications = %d after no-op change, want still 1", rec.count())
	}
}

func TestHostEchoIsIgnored(t *testing.T) {
	var rec notifyRecorder
	var applied int
	r := NewReconciler(ViewState{Page: 1, Scale: 1}, testReconcilerOptions(), rec.record,
		func(ViewState) { applied++ })
	r.SetPageCount(10)

	r.SetFromUser(ViewState{Page: 3, Scale: 1})
	appliedBefore := applied

	// The host echoes the value we just emitted, as props
	r.SetFromHost(ViewState{Page: 3, Scale: 1})
	time.Sleep(50 * time.Millisecond)

	if rec.count() != 1 {
		t.Errorf("notifications = %d after echo, want 1", rec.count())
	}
	if applied != appliedBefore {
		t.Errorf("echo caused %d extra internal mutations", applied-appliedBefore)
	}
	if got := r.State(); got.Page != 3 {
		t.Errorf("state corrupted by echo: %+v", got)
	}
}

func TestHostUpdateDebouncedAndApplied(t *testing.T) {
	var rec notifyRecorder
	r := NewReconciler(ViewState{Page: 1, Scale: 1}, testReconcilerOptions(), rec.record, nil)
	r.SetPageCount(10)

	r.SetFromHost(ViewState{Page: 4, Scale: 1})
	if got := r.State().Page; got != 1 {
		t.Errorf("host update applied synchronously: page=%d", got)
	}

	// Latest wins within the debounce window
	r.SetFromHost(ViewState{Page: 6, Scale: 1})
	time.Sleep(60 * time.Millisecond)

	if got := r.State().Page; got != 6 {
		t.Errorf("page = %d after debounce, want 6", got)
	}
	if rec.count() != 0 {
		t.Errorf("applying a host update emitted %d notifications, want 0", rec.count())
	}
}

func TestHostUpdateClampedOnApply(t *testing.T) {
	r := NewReconciler(ViewState{Page: 1, Scale: 1}, testReconcilerOptions(), nil, nil)
	r.SetPageCount(5)

	r.SetFromHost(ViewState{Page: 99, Scale: 1})
	time.Sleep(60 * time.Millisecond)

	if got := r.State().Page; got != 5 {
		t.Errorf("page = %d, want clamped to 5", got)
	}
}

func TestHostUpdateIgnoredDuringInternalFlight(t *testing.T) {
	r := NewReconciler(ViewState{Page: 1, Scale: 1}, testReconcilerOptions(), nil, nil)
	r.SetPageCount(10)

	r.SetFromUser(ViewState{Page: 2, Scale: 1})
	// Within the grace window a conflicting host value is stale
	r.SetFromHost(ViewState{Page: 8, Scale: 1})
	time.Sleep(40 * time.Millisecond)

	if got := r.State().Page; got != 2 {
		t.Errorf("page = %d, stale host value applied during internal flight", got)
	}
}

func TestEchoGraceExpires(t *testing.T) {
	r := NewReconciler(ViewState{Page: 1, Scale: 1}, testReconcilerOptions(), nil, nil)
	r.SetPageCount(10)

	r.SetFromUser(ViewState{Page: 2, Scale: 1})
	time.Sleep(80 * time.Millisecond)

	// Grace expired: genuinely new host values flow again
	r.SetFromHost(ViewState{Page: 5, Scale: 1})
	time.Sleep(40 * time.Millisecond)

	if got := r.State().Page; got != 5 {
		t.Errorf("page = %d, want 5 applied after grace expiry", got)
	}
}
