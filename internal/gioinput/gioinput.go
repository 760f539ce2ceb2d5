// Package gioinput feeds Gio window events into an input hub. A widget
// registers a tag with event.Op over its clip area and calls Adapter.Drain
// with the same tag each frame.
package gioinput

import (
	"time"

	"gioui.org/f32"
	"gioui.org/io/event"
	"gioui.org/io/key"
	"gioui.org/io/pointer"
	"gioui.org/layout"

	"inputkit/internal/focus"
	"inputkit/internal/geom"
	"inputkit/internal/gesture"
)

// Sink receives translated events. *input.Hub implements it.
type Sink interface {
	HandlePointer(surface string, ev gesture.PointerEvent) bool
	HandleHover(p geom.Point)
	HandleLeave()
	HandleKey(ev focus.KeyEvent) bool
}

// navigationKeys are the keys the focus navigator understands.
var navigationKeys = map[key.Name]focus.Key{
	key.NameUpArrow:    focus.KeyUp,
	key.NameDownArrow:  focus.KeyDown,
	key.NameLeftArrow:  focus.KeyLeft,
	key.NameRightArrow: focus.KeyRight,
	key.NameTab:        focus.KeyTab,
	key.NameReturn:     focus.KeyEnter,
	key.NameEnter:      focus.KeyEnter,
	key.NameEscape:     focus.KeyEscape,
}

// Point converts a Gio position.
func Point(p f32.Point) geom.Point {
	return geom.Pt(float64(p.X), float64(p.Y))
}

// PointerEvent translates a Gio pointer event into a surface pointer event.
// Gio timestamps are offsets from an arbitrary origin; base anchors them.
// Hover, enter, leave and scroll events have no surface equivalent and
// report false.
func PointerEvent(ev pointer.Event, base time.Time) (gesture.PointerEvent, bool) {
	var kind gesture.PointerKind
	switch ev.Kind {
	case pointer.Press:
		kind = gesture.PointerPress
	case pointer.Drag:
		kind = gesture.PointerMove
	case pointer.Release:
		kind = gesture.PointerRelease
	case pointer.Cancel:
		kind = gesture.PointerCancel
	default:
		return gesture.PointerEvent{}, false
	}
	return gesture.PointerEvent{
		ID:       gesture.PointerID(ev.PointerID),
		Kind:     kind,
		Position: Point(ev.Position),
		Time:     base.Add(ev.Time),
	}, true
}

// KeyEvent translates a key press into a navigation key event. Releases
// and keys the navigator does not use report false.
func KeyEvent(ev key.Event) (focus.KeyEvent, bool) {
	if ev.State != key.Press {
		return focus.KeyEvent{}, false
	}
	k, ok := navigationKeys[ev.Name]
	if !ok {
		return focus.KeyEvent{}, false
	}
	return focus.KeyEvent{
		Key: k,
		Modifiers: focus.Modifiers{
			Shift:   ev.Modifiers.Contain(key.ModShift),
			Control: ev.Modifiers.Contain(key.ModCtrl),
			Alt:     ev.Modifiers.Contain(key.ModAlt),
			Command: ev.Modifiers.Contain(key.ModCommand),
		},
	}, true
}

// Adapter forwards the events of one Gio widget to a Sink.
type Adapter struct {
	sink    Sink
	surface string
	base    time.Time
}

// New returns an adapter routing pointer events to the named surface.
// Gio event times are anchored at the moment New is called.
func New(sink Sink, surface string) *Adapter {
	return &Adapter{sink: sink, surface: surface, base: time.Now()}
}

// Filters returns the event filters the adapter reads for tag.
func Filters(tag event.Tag) []event.Filter {
	filters := []event.Filter{
		pointer.Filter{
			Target: tag,
			Kinds:  pointer.Press | pointer.Drag | pointer.Release | pointer.Cancel | pointer.Move | pointer.Enter | pointer.Leave,
		},
	}
	for name := range navigationKeys {
		filters = append(filters, key.Filter{Focus: tag, Name: name, Optional: key.ModShift})
	}
	return filters
}

// Drain reads every pending event for tag and dispatches it.
func (a *Adapter) Drain(gtx layout.Context, tag event.Tag) {
	filters := Filters(tag)
	for {
		ev, ok := gtx.Event(filters...)
		if !ok {
			return
		}
		a.Dispatch(ev)
	}
}

// Dispatch forwards one event and reports whether the sink consumed it.
func (a *Adapter) Dispatch(ev event.Event) bool {
	switch e := ev.(type) {
	case pointer.Event:
		return a.dispatchPointer(e)
	case key.Event:
		if ke, ok := KeyEvent(e); ok {
			return a.sink.HandleKey(ke)
		}
	}
	return false
}

func (a *Adapter) dispatchPointer(e pointer.Event) bool {
	switch e.Kind {
	case pointer.Move, pointer.Enter:
		a.sink.HandleHover(Point(e.Position))
		return true
	case pointer.Leave:
		a.sink.HandleLeave()
		return true
	}
	pe, ok := PointerEvent(e, a.base)
	if !ok {
		return false
	}
	return a.sink.HandlePointer(a.surface, pe)
}
