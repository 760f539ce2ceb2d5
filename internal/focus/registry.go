// Package focus moves keyboard focus between on-screen regions.
//
// A Registry holds the focusable elements and a lazily rebuilt snapshot of
// their bounds. A Navigator walks that snapshot: arrow keys pick the
// nearest region in the pressed direction, Tab and Shift+Tab step through
// registration order, and Enter activates the focused element. A
// DwellTracker moves focus to the region a pointer or gaze rests on.
package focus

import (
	"errors"
	"sync"

	"inputkit/internal/geom"
)

// ErrRegistryClosed is returned when registering on a disposed registry.
var ErrRegistryClosed = errors.New("focus registry is closed")

// Element is something that can hold focus.
type Element interface {
	ID() string
	// Bounds is the element's current screen rectangle. Elements with
	// empty bounds are not rendered and are skipped.
	Bounds() geom.Rect
	// Activate performs the element's primary action.
	Activate() error
}

// Region is a snapshot of one focusable element.
type Region struct {
	ID      string
	Bounds  geom.Rect
	Index   int
	element Element
}

// Center returns the center of the region bounds.
func (r Region) Center() geom.Point {
	return r.Bounds.Center()
}

// slot is one registration. Unregister funcs match on the slot so
// elements need not be comparable.
type slot struct {
	element Element
}

// Registry is the ordered set of focusable elements. Bounds are read once
// per snapshot; call Invalidate after layout changes.
type Registry struct {
	mu       sync.Mutex
	elements []*slot
	snapshot []Region
	stale    bool
	closed   bool
	rebuilds int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{stale: true}
}

// Register adds e at the end of the traversal order. Registering an ID
// that is already present replaces that element in place. The returned
// function unregisters e.
func (r *Registry) Register(e Element) (func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrRegistryClosed
	}

	id := e.ID()
	s := &slot{element: e}
	replaced := false
	for i, existing := range r.elements {
		if existing.element.ID() == id {
			r.elements[i] = s
			replaced = true
			break
		}
	}
	if !replaced {
		r.elements = append(r.elements, s)
	}
	r.stale = true

	var once sync.Once
	return func() {
		once.Do(func() { r.remove(s) })
	}, nil
}

func (r *Registry) remove(s *slot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.elements {
		if existing == s {
			r.elements = append(r.elements[:i], r.elements[i+1:]...)
			r.stale = true
			return
		}
	}
}

// Unregister removes the element with the given ID.
func (r *Registry) Unregister(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.elements {
		if existing.element.ID() == id {
			r.elements = append(r.elements[:i], r.elements[i+1:]...)
			r.stale = true
			return true
		}
	}
	return false
}

// Invalidate marks the snapshot stale so the next read re-queries bounds.
func (r *Registry) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stale = true
}

// Regions returns the current snapshot in registration order.
func (r *Registry) Regions() []Region {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Region(nil), r.regionsLocked()...)
}

func (r *Registry) regionsLocked() []Region {
	if !r.stale {
		return r.snapshot
	}
	r.snapshot = r.snapshot[:0]
	for _, s := range r.elements {
		e := s.element
		b := e.Bounds()
		if b.Empty() {
			continue
		}
		r.snapshot = append(r.snapshot, Region{
			ID:      e.ID(),
			Bounds:  b,
			Index:   len(r.snapshot),
			element: e,
		})
	}
	r.stale = false
	r.rebuilds++
	return r.snapshot
}

// Lookup finds a region in the snapshot by ID.
func (r *Registry) Lookup(id string) (Region, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, reg := range r.regionsLocked() {
		if reg.ID == id {
			return reg, true
		}
	}
	return Region{}, false
}

// At returns the first region in order whose bounds contain p.
func (r *Registry) At(p geom.Point) (Region, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, reg := range r.regionsLocked() {
		if reg.Bounds.Contains(p) {
			return reg, true
		}
	}
	return Region{}, false
}

// Len returns the number of registered elements, rendered or not.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.elements)
}

// Dispose drops every element. Further Register calls fail.
func (r *Registry) Dispose() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.elements = nil
	r.snapshot = nil
	r.stale = true
}
