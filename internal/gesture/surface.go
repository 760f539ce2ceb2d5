package gesture

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"inputkit/internal/geom"
)

// PointerID identifies one finger or mouse pointer.
type PointerID int64

// PointerKind is the phase of a raw pointer event.
type PointerKind int

const (
	PointerPress PointerKind = iota
	PointerMove
	PointerRelease
	PointerCancel
)

var pointerKindNames = [...]string{"press", "move", "release", "cancel"}

func (k PointerKind) String() string {
	if k < 0 || int(k) >= len(pointerKindNames) {
		return fmt.Sprintf("pointer(%d)", int(k))
	}
	return pointerKindNames[k]
}

// ParsePointerKind parses a name produced by String.
func ParsePointerKind(s string) (PointerKind, error) {
	for i, name := range pointerKindNames {
		if s == name {
			return PointerKind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown pointer event kind: %q", s)
}

// PointerEvent is a raw event from the host toolkit.
type PointerEvent struct {
	ID       PointerID
	Kind     PointerKind
	Position geom.Point
	Time     time.Time
}

func (e PointerEvent) sample() Sample {
	return Sample{X: e.Position.X, Y: e.Position.Y, Time: e.Time}
}

type pointerState struct {
	pos   geom.Point
	order uint64
}

// Surface is one interaction area. It keeps the set of pressed pointers
// and routes events by how many are down: one pointer to the Classifier,
// two to the PinchTracker, more than two to neither. Handle must be called
// from a single goroutine, in arrival order.
type Surface struct {
	name       string
	handler    Handler
	opts       options
	classifier *Classifier
	pinch      *PinchTracker

	mu       sync.Mutex
	pointers map[PointerID]pointerState
	seq      uint64
	scale    float64
}

// NewSurface creates a surface with its own classifier and pinch tracker.
func NewSurface(name string, cfg Config, pcfg PinchConfig, handler Handler, opts ...Option) *Surface {
	o := buildOptions(opts)
	o.logger = o.logger.With("surface", name)
	opts = append(opts[:len(opts):len(opts)], WithLogger(o.logger))
	return &Surface{
		name:       name,
		handler:    handler,
		opts:       o,
		classifier: NewClassifier(cfg, handler, opts...),
		pinch:      NewPinchTracker(pcfg, opts...),
		pointers:   make(map[PointerID]pointerState),
		scale:      1,
	}
}

// Name returns the surface name.
func (s *Surface) Name() string { return s.name }

// Classifier exposes the single-pointer classifier.
func (s *Surface) Classifier() *Classifier { return s.classifier }

// Pinch exposes the two-pointer tracker.
func (s *Surface) Pinch() *PinchTracker { return s.pinch }

// SetScale sets the scale the next pinch starts from.
func (s *Surface) SetScale(scale float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scale = scale
}

// Scale returns the scale the next pinch starts from.
func (s *Surface) Scale() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scale
}

// Pointers returns the number of pointers currently down.
func (s *Surface) Pointers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pointers)
}

// UpdateConfig reconfigures the classifier and the pinch tracker.
func (s *Surface) UpdateConfig(cfg Config, pcfg PinchConfig) {
	s.classifier.UpdateConfig(cfg)
	s.pinch.UpdateConfig(pcfg)
}

// Handle routes one raw pointer event.
func (s *Surface) Handle(ev PointerEvent) {
	switch ev.Kind {
	case PointerPress:
		s.press(ev)
	case PointerMove:
		s.move(ev)
	case PointerRelease:
		s.release(ev)
	case PointerCancel:
		s.cancel()
	default:
		s.opts.logger.Warn("ignoring pointer event", "kind", ev.Kind.String())
	}
}

func (s *Surface) press(ev PointerEvent) {
	s.mu.Lock()
	if _, down := s.pointers[ev.ID]; down {
		s.mu.Unlock()
		s.move(ev)
		return
	}
	s.seq++
	s.pointers[ev.ID] = pointerState{pos: ev.Position, order: s.seq}
	n := len(s.pointers)
	pair, scale := s.firstTwoLocked(), s.scale
	s.mu.Unlock()

	switch {
	case n == 1:
		s.classifier.Start(ev.sample())
	case n == 2:
		s.classifier.Cancel()
		s.pinch.Begin(pair[0], pair[1], scale)
	default:
		s.endPinch()
	}
}

func (s *Surface) move(ev PointerEvent) {
	s.mu.Lock()
	st, down := s.pointers[ev.ID]
	if !down {
		s.mu.Unlock()
		return
	}
	st.pos = ev.Position
	s.pointers[ev.ID] = st
	n := len(s.pointers)
	pair := s.firstTwoLocked()
	s.mu.Unlock()

	switch n {
	case 1:
		s.classifier.Move(ev.sample())
	case 2:
		if pe, ok := s.pinch.Move(pair[0], pair[1]); ok {
			s.mu.Lock()
			s.scale = pe.Scale
			s.mu.Unlock()
			deliverEvent(s.handler, pe, s.opts)
		}
	}
}

func (s *Surface) release(ev PointerEvent) {
	s.mu.Lock()
	if _, down := s.pointers[ev.ID]; !down {
		s.mu.Unlock()
		return
	}
	before := len(s.pointers)
	delete(s.pointers, ev.ID)
	pair, scale := s.firstTwoLocked(), s.scale
	s.mu.Unlock()

	switch before {
	case 1:
		s.classifier.End(ev.sample())
	case 2:
		s.endPinch()
	case 3:
		s.pinch.Begin(pair[0], pair[1], scale)
	}
}

func (s *Surface) cancel() {
	s.mu.Lock()
	clear(s.pointers)
	s.mu.Unlock()
	s.classifier.Cancel()
	s.endPinch()
}

func (s *Surface) endPinch() {
	if !s.pinch.Active() {
		return
	}
	scale := s.pinch.End()
	s.mu.Lock()
	s.scale = scale
	s.mu.Unlock()
}

// firstTwoLocked returns the positions of the two earliest pressed
// pointers still down.
func (s *Surface) firstTwoLocked() [2]geom.Point {
	states := make([]pointerState, 0, len(s.pointers))
	for _, st := range s.pointers {
		states = append(states, st)
	}
	sort.Slice(states, func(i, j int) bool { return states[i].order < states[j].order })
	var pair [2]geom.Point
	for i := 0; i < len(states) && i < 2; i++ {
		pair[i] = states[i].pos
	}
	return pair
}

// Dispose stops every timer owned by the surface.
func (s *Surface) Dispose() {
	s.classifier.Dispose()
	s.pinch.End()
	s.mu.Lock()
	clear(s.pointers)
	s.mu.Unlock()
}
