package gesture

import (
	"math"
	"sync"

	"github.com/google/uuid"

	"inputkit/internal/geom"
)

// PinchConfig bounds the emitted scale.
type PinchConfig struct {
	MinScale float64
	MaxScale float64
}

// DefaultPinchConfig returns the default clamp bounds.
func DefaultPinchConfig() PinchConfig {
	return PinchConfig{MinScale: 0.5, MaxScale: 3}
}

func (c PinchConfig) normalized() PinchConfig {
	d := DefaultPinchConfig()
	if c.MinScale <= 0 {
		c.MinScale = d.MinScale
	}
	if c.MaxScale <= 0 {
		c.MaxScale = d.MaxScale
	}
	if c.MinScale > c.MaxScale {
		c.MinScale, c.MaxScale = c.MaxScale, c.MinScale
	}
	return c
}

// Clamp limits scale to the configured bounds.
func (c PinchConfig) Clamp(scale float64) float64 {
	return math.Max(c.MinScale, math.Min(c.MaxScale, scale))
}

// PinchTracker emits continuous scale and center updates while exactly two
// pointers are down.
type PinchTracker struct {
	opts options

	mu              sync.Mutex
	cfg             PinchConfig
	active          bool
	sessionID       string
	initialDistance float64
	initialScale    float64
	scale           float64
}

// NewPinchTracker creates an idle tracker.
func NewPinchTracker(cfg PinchConfig, opts ...Option) *PinchTracker {
	return &PinchTracker{
		opts:  buildOptions(opts),
		cfg:   cfg.normalized(),
		scale: 1,
	}
}

// UpdateConfig replaces the clamp bounds.
func (t *PinchTracker) UpdateConfig(cfg PinchConfig) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cfg = cfg.normalized()
}

// Begin starts tracking two pointers at a and b. currentScale is the scale
// the content is displayed at right now.
func (t *PinchTracker) Begin(a, b geom.Point, currentScale float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active = true
	t.sessionID = uuid.NewString()
	t.initialDistance = geom.Distance(a, b)
	t.initialScale = currentScale
	t.scale = currentScale
}

// Move computes the scale for the new pointer positions. It reports false
// when no pinch is active.
func (t *PinchTracker) Move(a, b geom.Point) (Event, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.active {
		return Event{}, false
	}

	center := geom.Midpoint(a, b)
	if t.initialDistance > 0 {
		t.scale = t.cfg.Clamp(t.initialScale * geom.Distance(a, b) / t.initialDistance)
	}
	// With coincident starting points there is no ratio; the previous
	// scale is re-emitted with the new center.

	t.opts.metrics.PinchUpdate()
	return Event{
		Kind:      KindPinch,
		SessionID: t.sessionID,
		Position:  center,
		Time:      t.opts.clock.Now(),
		Scale:     t.scale,
		Center:    center,
	}, true
}

// End stops emitting and returns the last scale.
func (t *PinchTracker) End() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active = false
	t.initialDistance = 0
	return t.scale
}

// Active reports whether a pinch is being tracked.
func (t *PinchTracker) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

// Scale returns the most recently emitted scale.
func (t *PinchTracker) Scale() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.scale
}
