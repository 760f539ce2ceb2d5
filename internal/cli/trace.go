package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"inputkit/internal/focus"
	"inputkit/internal/geom"
	"inputkit/internal/gesture"
	"inputkit/internal/voice"
)

// defaultSettle is how long the clock runs after the last step so pending
// taps, long presses and dwells resolve.
const defaultSettle = time.Second

// Trace is a recorded input session. Step offsets are measured from Start.
type Trace struct {
	Name     string              `yaml:"name"`
	Start    time.Time           `yaml:"start"`
	Surfaces []string            `yaml:"surfaces"`
	Regions  []TraceRegion       `yaml:"regions"`
	Commands []voice.Declaration `yaml:"commands"`
	Steps    []Step              `yaml:"steps"`
	Settle   time.Duration       `yaml:"settle"`
}

// TraceRegion is a focusable element. Activating a region with Fail set
// returns an error.
type TraceRegion struct {
	ID     string    `yaml:"id"`
	Bounds geom.Rect `yaml:"bounds"`
	Fail   bool      `yaml:"fail"`
}

// Step is one input at offset At. A step with no input only advances the
// clock.
type Step struct {
	At      time.Duration   `yaml:"at"`
	Pointer *PointerStep    `yaml:"pointer"`
	Key     *focus.KeyEvent `yaml:"key"`
	Hover   *geom.Point     `yaml:"hover"`
	Leave   bool            `yaml:"leave"`
	Say     *voice.Segment  `yaml:"say"`
	Drag    *DragStep       `yaml:"drag"`
}

// PointerStep is a raw pointer event on a named surface.
type PointerStep struct {
	Surface string  `yaml:"surface"`
	ID      int64   `yaml:"id"`
	Kind    string  `yaml:"kind"`
	X       float64 `yaml:"x"`
	Y       float64 `yaml:"y"`
}

// DragStep drives the drag coordinator. Phase is start, move, end or
// cancel; Item is only read on start.
type DragStep struct {
	Phase string  `yaml:"phase"`
	Item  string  `yaml:"item"`
	X     float64 `yaml:"x"`
	Y     float64 `yaml:"y"`
}

func (s Step) inputs() int {
	n := 0
	for _, set := range []bool{s.Pointer != nil, s.Key != nil, s.Hover != nil, s.Leave, s.Say != nil, s.Drag != nil} {
		if set {
			n++
		}
	}
	return n
}

// LoadTrace reads and checks a YAML trace file.
func LoadTrace(path string) (*Trace, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read trace: %w", err)
	}
	return ParseTrace(data)
}

// ParseTrace decodes a YAML trace and checks it.
func ParseTrace(data []byte) (*Trace, error) {
	var t Trace
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decode trace: %w", err)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if t.Start.IsZero() {
		t.Start = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	if t.Settle <= 0 {
		t.Settle = defaultSettle
	}
	return &t, nil
}

// Validate reports every problem in the trace.
func (t *Trace) Validate() error {
	var errs []error
	surfaces := make(map[string]bool, len(t.Surfaces))
	for _, s := range t.Surfaces {
		if s == "" {
			errs = append(errs, errors.New("surfaces: empty name"))
		}
		surfaces[s] = true
	}
	seen := make(map[string]bool, len(t.Regions))
	for i, r := range t.Regions {
		switch {
		case r.ID == "":
			errs = append(errs, fmt.Errorf("regions[%d]: id is required", i))
		case seen[r.ID]:
			errs = append(errs, fmt.Errorf("regions[%d]: duplicate id %q", i, r.ID))
		}
		seen[r.ID] = true
	}

	var last time.Duration
	for i, s := range t.Steps {
		if s.At < last {
			errs = append(errs, fmt.Errorf("steps[%d]: at %s is before the previous step", i, s.At))
		}
		last = max(last, s.At)
		if s.inputs() > 1 {
			errs = append(errs, fmt.Errorf("steps[%d]: more than one input", i))
		}
		if p := s.Pointer; p != nil {
			if !surfaces[p.Surface] {
				errs = append(errs, fmt.Errorf("steps[%d]: unknown surface %q", i, p.Surface))
			}
			if _, err := gesture.ParsePointerKind(p.Kind); err != nil {
				errs = append(errs, fmt.Errorf("steps[%d]: %w", i, err))
			}
		}
		if d := s.Drag; d != nil {
			switch d.Phase {
			case "start", "move", "end", "cancel":
			default:
				errs = append(errs, fmt.Errorf("steps[%d]: unknown drag phase %q", i, d.Phase))
			}
		}
	}
	return errors.Join(errs...)
}
