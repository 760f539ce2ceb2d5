package timing

import (
	"sync"
	"time"
)

// Scope owns a set of timers created on a Clock. Close stops every timer
// that has not fired yet and makes later AfterFunc calls inert, so nothing
// scheduled through the scope can run after its owner is gone.
type Scope struct {
	clock Clock

	mu     sync.Mutex
	timers map[*scopedTimer]struct{}
	closed bool
}

type scopedTimer struct {
	scope *Scope
	inner Timer
}

// NewScope returns a Scope scheduling on clock. A nil clock means System.
func NewScope(clock Clock) *Scope {
	if clock == nil {
		clock = System
	}
	return &Scope{
		clock:  clock,
		timers: make(map[*scopedTimer]struct{}),
	}
}

// Clock returns the clock the scope schedules on.
func (s *Scope) Clock() Clock {
	return s.clock
}

// Now is shorthand for s.Clock().Now().
func (s *Scope) Now() time.Time {
	return s.clock.Now()
}

// AfterFunc schedules f after d. If the scope is closed the returned timer
// is already stopped and f never runs.
func (s *Scope) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := &scopedTimer{scope: s}
	if s.closed {
		return st
	}
	s.timers[st] = struct{}{}
	st.inner = s.clock.AfterFunc(d, func() {
		if s.release(st) {
			f()
		}
	})
	return st
}

// release removes st from the live set and reports whether it was still
// live, which is the condition for its callback to run.
func (s *Scope) release(st *scopedTimer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.timers[st]; !ok {
		return false
	}
	delete(s.timers, st)
	return true
}

// Len returns the number of live timers.
func (s *Scope) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Closed reports whether Close has been called.
func (s *Scope) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close stops all live timers. It is safe to call more than once.
func (s *Scope) Close() {
	s.mu.Lock()
	timers := s.timers
	s.timers = make(map[*scopedTimer]struct{})
	s.closed = true
	s.mu.Unlock()

	for st := range timers {
		if st.inner != nil {
			st.inner.Stop()
		}
	}
}

func (st *scopedTimer) Stop() bool {
	if !st.scope.release(st) {
		return false
	}
	if st.inner != nil {
		st.inner.Stop()
	}
	return true
}

// Debouncer runs a callback once a burst of triggers has been quiet for the
// configured delay.
type Debouncer struct {
	scope *Scope
	delay time.Duration

	mu      sync.Mutex
	pending Timer
}

// NewDebouncer returns a Debouncer scheduling on scope.
func NewDebouncer(scope *Scope, delay time.Duration) *Debouncer {
	return &Debouncer{scope: scope, delay: delay}
}

// Trigger (re)starts the quiet period; f runs when it elapses.
func (d *Debouncer) Trigger(f func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pending != nil {
		d.pending.Stop()
	}
	d.pending = d.scope.AfterFunc(d.delay, f)
}

// Stop cancels a pending callback.
func (d *Debouncer) Stop() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pending == nil {
		return false
	}
	stopped := d.pending.Stop()
	d.pending = nil
	return stopped
}
