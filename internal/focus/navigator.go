package focus

import (
	"context"
	"math"
	"sync"

	"inputkit/internal/feedback"
	"inputkit/internal/gesture"
	"inputkit/internal/logging"
	"inputkit/internal/metrics"
)

// Cause records what moved focus.
type Cause string

const (
	CauseDirection Cause = "direction"
	CauseTab       Cause = "tab"
	CauseDwell     Cause = "dwell"
	CauseExplicit  Cause = "explicit"
)

// Change describes a focus move. From is empty when nothing was focused.
type Change struct {
	From  string
	To    string
	Cause Cause
}

type options struct {
	pulser  *feedback.Pulser
	logger  *logging.Logger
	metrics *metrics.Metrics
}

// Option configures a Navigator.
type Option func(*options)

// WithPulser sets the pulser for focus, activation and error feedback.
func WithPulser(p *feedback.Pulser) Option {
	return func(o *options) { o.pulser = p }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// Navigator holds the focus cursor over a Registry. It does not own the
// registry.
type Navigator struct {
	reg  *Registry
	opts options

	mu        sync.Mutex
	current   string
	listeners map[int]func(Change)
	nextID    int
}

// NewNavigator creates a navigator with nothing focused.
func NewNavigator(reg *Registry, opts ...Option) *Navigator {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = o.logger.Or("focus")
	return &Navigator{
		reg:       reg,
		opts:      o,
		listeners: make(map[int]func(Change)),
	}
}

// OnFocus registers fn for every focus change and returns a function that
// removes it.
func (n *Navigator) OnFocus(fn func(Change)) func() {
	n.mu.Lock()
	defer n.mu.Unlock()
	id := n.nextID
	n.nextID++
	n.listeners[id] = fn
	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.listeners, id)
	}
}

// Current returns the focused region. It reports false when nothing is
// focused or the focused element is no longer rendered.
func (n *Navigator) Current() (Region, bool) {
	n.mu.Lock()
	id := n.current
	n.mu.Unlock()
	if id == "" {
		return Region{}, false
	}
	return n.reg.Lookup(id)
}

// Move focuses the nearest region strictly on the dir side of the focused
// region's center, scoring candidates by |perpendicular| + |primary|
// offset. Equal scores keep the earlier registered region. With nothing
// focused the first region is taken. It reports whether focus changed.
func (n *Navigator) Move(dir gesture.Direction) bool {
	regions := n.reg.Regions()
	if len(regions) == 0 {
		return false
	}
	cur, ok := n.Current()
	if !ok {
		return n.focus(regions[0], CauseDirection)
	}
	next, ok := nearest(cur, regions, dir)
	if !ok {
		return false
	}
	return n.focus(next, CauseDirection)
}

func nearest(cur Region, regions []Region, dir gesture.Direction) (Region, bool) {
	c := cur.Center()
	best, bestScore := -1, math.Inf(1)
	for i, r := range regions {
		if r.ID == cur.ID {
			continue
		}
		p := r.Center()
		dx, dy := p.X-c.X, p.Y-c.Y

		var primary, perp float64
		switch dir {
		case gesture.DirectionUp:
			if dy >= 0 {
				continue
			}
			primary, perp = dy, dx
		case gesture.DirectionDown:
			if dy <= 0 {
				continue
			}
			primary, perp = dy, dx
		case gesture.DirectionLeft:
			if dx >= 0 {
				continue
			}
			primary, perp = dx, dy
		case gesture.DirectionRight:
			if dx <= 0 {
				continue
			}
			primary, perp = dx, dy
		default:
			return Region{}, false
		}

		score := math.Abs(perp) + math.Abs(primary)
		if score < bestScore {
			best, bestScore = i, score
		}
	}
	if best < 0 {
		return Region{}, false
	}
	return regions[best], true
}

// Next focuses the following region in registration order, stopping at
// the last one.
func (n *Navigator) Next() bool {
	return n.step(1)
}

// Prev focuses the preceding region, stopping at the first one.
func (n *Navigator) Prev() bool {
	return n.step(-1)
}

func (n *Navigator) step(delta int) bool {
	regions := n.reg.Regions()
	if len(regions) == 0 {
		return false
	}
	idx := 0
	if cur, ok := n.Current(); ok {
		idx = cur.Index + delta
	}
	idx = max(0, min(idx, len(regions)-1))
	return n.focus(regions[idx], CauseTab)
}

// Focus focuses the region with the given ID.
func (n *Navigator) Focus(id string) bool {
	r, ok := n.reg.Lookup(id)
	if !ok {
		return false
	}
	return n.focus(r, CauseExplicit)
}

// Blur clears focus without feedback.
func (n *Navigator) Blur() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.current = ""
}

func (n *Navigator) focus(r Region, cause Cause) bool {
	n.mu.Lock()
	if n.current == r.ID {
		n.mu.Unlock()
		return false
	}
	change := Change{From: n.current, To: r.ID, Cause: cause}
	n.current = r.ID
	listeners := make([]func(Change), 0, len(n.listeners))
	for id := 0; id < n.nextID; id++ {
		if fn, ok := n.listeners[id]; ok {
			listeners = append(listeners, fn)
		}
	}
	n.mu.Unlock()

	n.opts.metrics.FocusChange(string(cause))
	n.opts.logger.Debug("focus changed", "from", change.From, "to", change.To, "cause", string(cause))
	n.opts.pulser.Pulse(context.Background(), feedback.KindFocus)

	for _, fn := range listeners {
		if err := logging.GuardFunc(func() { fn(change) }); err != nil {
			n.fail("focus listener", err, r.ID)
		}
	}
	return true
}

// Activate runs the focused element's primary action. A failing action
// produces an error pulse instead of an error return. It reports whether
// anything was focused.
func (n *Navigator) Activate() bool {
	cur, ok := n.Current()
	if !ok {
		return false
	}
	n.opts.pulser.Pulse(context.Background(), feedback.KindActivation)
	if err := logging.Guard(cur.element.Activate); err != nil {
		n.fail("activate", err, cur.ID)
	}
	return true
}

func (n *Navigator) fail(what string, err error, id string) {
	n.opts.logger.CallbackFailed(what, err, "element", id)
	n.opts.metrics.CallbackFailure("focus")
	n.opts.pulser.Pulse(context.Background(), feedback.KindError)
}

// HandleKey applies a navigation key and reports whether it was consumed.
func (n *Navigator) HandleKey(ev KeyEvent) bool {
	if dir, ok := ev.Key.Direction(); ok {
		return n.Move(dir)
	}
	switch ev.Key {
	case KeyTab:
		if ev.Modifiers.Shift {
			return n.Prev()
		}
		return n.Next()
	case KeyEnter:
		return n.Activate()
	case KeyEscape:
		if _, ok := n.Current(); !ok {
			return false
		}
		n.Blur()
		return true
	default:
		return false
	}
}
