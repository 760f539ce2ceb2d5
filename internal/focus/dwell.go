package focus

import (
	"sync"
	"time"

	"inputkit/internal/geom"
	"inputkit/internal/timing"
)

// DefaultDwellTime is how long a pointer must rest on a region before it
// takes focus.
const DefaultDwellTime = 800 * time.Millisecond

// DwellTracker focuses the region under a hovering pointer or gaze point
// once it has stayed there for the dwell time. Moving onto another region
// restarts the wait; leaving all regions cancels it.
type DwellTracker struct {
	nav   *Navigator
	scope *timing.Scope

	mu        sync.Mutex
	dwell     time.Duration
	candidate string
	pending   timing.Timer
	gen       uint64
}

// NewDwellTracker creates a tracker driving nav. A zero dwell uses
// DefaultDwellTime; a nil clock uses the system clock.
func NewDwellTracker(nav *Navigator, dwell time.Duration, clock timing.Clock) *DwellTracker {
	if dwell <= 0 {
		dwell = DefaultDwellTime
	}
	return &DwellTracker{
		nav:   nav,
		scope: timing.NewScope(clock),
		dwell: dwell,
	}
}

// SetDwell changes the dwell time for waits started afterwards.
func (d *DwellTracker) SetDwell(dwell time.Duration) {
	if dwell <= 0 {
		dwell = DefaultDwellTime
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dwell = dwell
}

// Hover reports the pointer position.
func (d *DwellTracker) Hover(p geom.Point) {
	r, ok := d.nav.reg.At(p)

	d.mu.Lock()
	defer d.mu.Unlock()
	if ok && r.ID == d.candidate {
		return
	}
	d.stopLocked()
	if !ok {
		return
	}
	d.candidate = r.ID
	gen := d.gen
	id := r.ID
	d.pending = d.scope.AfterFunc(d.dwell, func() { d.elapsed(gen, id) })
}

// Leave cancels any pending dwell.
func (d *DwellTracker) Leave() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()
}

// Pending returns the region waiting to take focus, if any.
func (d *DwellTracker) Pending() (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.candidate, d.pending != nil
}

func (d *DwellTracker) stopLocked() {
	if d.pending != nil {
		d.pending.Stop()
		d.pending = nil
	}
	d.candidate = ""
	d.gen++
}

func (d *DwellTracker) elapsed(gen uint64, id string) {
	d.mu.Lock()
	if gen != d.gen {
		d.mu.Unlock()
		return
	}
	d.pending = nil
	d.mu.Unlock()

	if r, ok := d.nav.reg.Lookup(id); ok {
		d.nav.focus(r, CauseDwell)
	}
}

// Dispose stops the pending timer.
func (d *DwellTracker) Dispose() {
	d.mu.Lock()
	d.stopLocked()
	d.mu.Unlock()
	d.scope.Close()
}
