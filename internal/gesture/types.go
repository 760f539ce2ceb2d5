// Package gesture classifies pointer and touch sequences into discrete
// intents: tap, double-tap, long-press, swipe and pinch.
//
// Each Surface owns one Classifier and one PinchTracker and routes raw
// pointer events to them by the number of pointers down: one pointer feeds
// the Classifier, two feed the PinchTracker, three or more feed neither.
// A Classifier models every touch-down-to-touch-up cycle as a Session with
// an explicit phase machine; the tap and long-press timers it arms belong
// to a timing.Scope and are stopped on Dispose.
package gesture

import (
	"fmt"
	"strings"
	"time"

	"inputkit/internal/feedback"
	"inputkit/internal/geom"
	"inputkit/internal/logging"
	"inputkit/internal/metrics"
	"inputkit/internal/timing"
)

// Kind is the classified intent carried by an Event.
type Kind int

const (
	KindNone Kind = iota
	KindTap
	KindDoubleTap
	KindLongPress
	KindSwipe
	KindPinch
	KindDragDrop
)

var kindNames = [...]string{"none", "tap", "double_tap", "long_press", "swipe", "pinch", "drag_drop"}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Direction of a swipe or of focus movement.
type Direction int

const (
	DirectionNone Direction = iota
	DirectionUp
	DirectionDown
	DirectionLeft
	DirectionRight
)

var directionNames = [...]string{"none", "up", "down", "left", "right"}

func (d Direction) String() string {
	if d < 0 || int(d) >= len(directionNames) {
		return fmt.Sprintf("direction(%d)", int(d))
	}
	return directionNames[d]
}

// MarshalText implements encoding.TextMarshaler.
func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// ParseDirection parses "up", "down", "left" or "right".
func ParseDirection(s string) (Direction, error) {
	for i, name := range directionNames[1:] {
		if strings.EqualFold(s, name) {
			return Direction(i + 1), nil
		}
	}
	return DirectionNone, fmt.Errorf("unknown direction: %q", s)
}

// DirectionFilter restricts which swipes are reported: "any" or a single
// direction name.
type DirectionFilter string

// FilterAny reports swipes in every direction.
const FilterAny DirectionFilter = "any"

// ParseDirectionFilter validates s. The empty string means FilterAny.
func ParseDirectionFilter(s string) (DirectionFilter, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == string(FilterAny) {
		return FilterAny, nil
	}
	if _, err := ParseDirection(s); err != nil {
		return "", fmt.Errorf("invalid direction filter: %w", err)
	}
	return DirectionFilter(s), nil
}

// Allows reports whether a swipe in d passes the filter.
func (f DirectionFilter) Allows(d Direction) bool {
	if f == "" || f == FilterAny {
		return true
	}
	return string(f) == d.String()
}

// Sample is one raw pointer position.
type Sample struct {
	X, Y float64
	Time time.Time
}

// At builds a Sample.
func At(x, y float64, t time.Time) Sample {
	return Sample{X: x, Y: y, Time: t}
}

// Point returns the sample position.
func (s Sample) Point() geom.Point {
	return geom.Pt(s.X, s.Y)
}

// Event is a classified intent. Which fields are meaningful depends on
// Kind: Swipe sets Direction, Delta and Velocity (px/ms); Pinch sets Scale
// and Center; DragDrop sets Payload.
type Event struct {
	Kind      Kind
	SessionID string
	Position  geom.Point
	Time      time.Time

	Direction Direction
	Delta     geom.Point
	Velocity  float64

	Scale  float64
	Center geom.Point

	Payload any
}

func (e Event) String() string {
	switch e.Kind {
	case KindSwipe:
		return fmt.Sprintf("swipe %s delta=%s velocity=%.3f", e.Direction, e.Delta, e.Velocity)
	case KindPinch:
		return fmt.Sprintf("pinch scale=%.3f center=%s", e.Scale, e.Center)
	case KindDragDrop:
		return fmt.Sprintf("drag_drop %v at %s", e.Payload, e.Position)
	default:
		return fmt.Sprintf("%s at %s", e.Kind, e.Position)
	}
}

// Handler receives classified events. It runs on the goroutine that fed
// the triggering event, or on a timer goroutine for Tap and LongPress.
type Handler func(Event)

type options struct {
	clock   timing.Clock
	pulser  *feedback.Pulser
	logger  *logging.Logger
	metrics *metrics.Metrics
}

// Option configures a Classifier, PinchTracker or Surface.
type Option func(*options)

// WithClock sets the clock used for timers.
func WithClock(c timing.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithPulser sets the feedback pulser notified of handler failures.
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

func buildOptions(opts []Option) options {
	o := options{clock: timing.System}
	for _, opt := range opts {
		opt(&o)
	}
	if o.clock == nil {
		o.clock = timing.System
	}
	o.logger = o.logger.Or("gesture")
	return o
}
