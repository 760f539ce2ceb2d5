// Package dragdrop tracks an item carried across pointer movement and
// reports where it was dropped.
package dragdrop

import (
	"context"
	"sync"
	"time"

	"inputkit/internal/feedback"
	"inputkit/internal/geom"
	"inputkit/internal/gesture"
	"inputkit/internal/logging"
	"inputkit/internal/metrics"
)

// DropFunc receives the carried item and its final position.
type DropFunc[T any] func(item T, pos geom.Point)

type options struct {
	pulser  *feedback.Pulser
	logger  *logging.Logger
	metrics *metrics.Metrics
}

// Option configures a Coordinator.
type Option func(*options)

// WithPulser sets the feedback pulser. Start pulses "activation", a drop
// pulses "success", a failing drop callback pulses "error".
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

// Coordinator carries at most one item at a time. Start and End are
// idempotent: a second Start without an End is refused, and End without a
// drag in progress does nothing.
type Coordinator[T any] struct {
	onDrop DropFunc[T]
	opts   options

	mu     sync.Mutex
	item   T
	start  geom.Point
	last   geom.Point
	active bool
}

// NewCoordinator creates an idle coordinator.
func NewCoordinator[T any](onDrop DropFunc[T], opts ...Option) *Coordinator[T] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = o.logger.Or("dragdrop")
	return &Coordinator[T]{onDrop: onDrop, opts: o}
}

// Start picks up item at pos. It reports false if a drag is already in
// progress.
func (c *Coordinator[T]) Start(item T, pos geom.Point) bool {
	c.mu.Lock()
	if c.active {
		c.mu.Unlock()
		c.opts.logger.Debug("drag already in progress")
		return false
	}
	c.item = item
	c.start = pos
	c.last = pos
	c.active = true
	c.mu.Unlock()

	c.opts.pulser.Pulse(context.Background(), feedback.KindActivation)
	return true
}

// Move tracks the carried item. It reports false when nothing is carried.
func (c *Coordinator[T]) Move(pos geom.Point) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active {
		return false
	}
	c.last = pos
	return true
}

// End drops the item at pos and invokes the drop callback once.
func (c *Coordinator[T]) End(pos geom.Point) bool {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return false
	}
	item := c.takeLocked()
	c.mu.Unlock()

	c.opts.metrics.DragDrop()
	if c.onDrop == nil {
		c.opts.pulser.Pulse(context.Background(), feedback.KindSuccess)
		return true
	}
	err := logging.GuardFunc(func() { c.onDrop(item, pos) })
	if err != nil {
		c.opts.logger.CallbackFailed("drop", err, "position", pos.String())
		c.opts.metrics.CallbackFailure("dragdrop")
		c.opts.pulser.Pulse(context.Background(), feedback.KindError)
		return true
	}
	c.opts.pulser.Pulse(context.Background(), feedback.KindSuccess)
	return true
}

// Cancel abandons the drag without a drop.
func (c *Coordinator[T]) Cancel() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active {
		return false
	}
	c.takeLocked()
	return true
}

func (c *Coordinator[T]) takeLocked() T {
	item := c.item
	var zero T
	c.item = zero
	c.active = false
	return item
}

// Active reports whether an item is being carried.
func (c *Coordinator[T]) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Item returns the carried item.
func (c *Coordinator[T]) Item() (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.item, c.active
}

// Position returns the last tracked position and the distance travelled
// from the pick-up point.
func (c *Coordinator[T]) Position() (geom.Point, float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last, geom.Distance(c.start, c.last)
}

// DropEvent describes a completed drop as a gesture event.
func DropEvent(item any, pos geom.Point, t time.Time) gesture.Event {
	return gesture.Event{
		Kind:     gesture.KindDragDrop,
		Position: pos,
		Time:     t,
		Payload:  item,
	}
}
