package focus

import "inputkit/internal/geom"

// Static is an Element with fixed bounds, for hosts that describe their
// layout as data.
type Static struct {
	Name       string
	Rect       geom.Rect
	OnActivate func() error
}

func (s *Static) ID() string        { return s.Name }
func (s *Static) Bounds() geom.Rect { return s.Rect }

// Activate runs OnActivate if set.
func (s *Static) Activate() error {
	if s.OnActivate == nil {
		return nil
	}
	return s.OnActivate()
}
