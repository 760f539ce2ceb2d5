package focus

import "inputkit/internal/gesture"

// Key names a navigation key.
type Key string

const (
	KeyUp     Key = "ArrowUp"
	KeyDown   Key = "ArrowDown"
	KeyLeft   Key = "ArrowLeft"
	KeyRight  Key = "ArrowRight"
	KeyTab    Key = "Tab"
	KeyEnter  Key = "Enter"
	KeyEscape Key = "Escape"
)

// Modifiers tracks active modifier keys.
type Modifiers struct {
	Shift   bool `json:"shift,omitempty" yaml:"shift,omitempty"`
	Control bool `json:"control,omitempty" yaml:"control,omitempty"`
	Alt     bool `json:"alt,omitempty" yaml:"alt,omitempty"`
	Command bool `json:"command,omitempty" yaml:"command,omitempty"`
}

// KeyEvent is a key press from the host.
type KeyEvent struct {
	Key       Key       `json:"key" yaml:"key"`
	Modifiers Modifiers `json:"modifiers,omitempty" yaml:"modifiers,omitempty"`
}

// Direction maps an arrow key to a direction.
func (k Key) Direction() (gesture.Direction, bool) {
	switch k {
	case KeyUp:
		return gesture.DirectionUp, true
	case KeyDown:
		return gesture.DirectionDown, true
	case KeyLeft:
		return gesture.DirectionLeft, true
	case KeyRight:
		return gesture.DirectionRight, true
	default:
		return gesture.DirectionNone, false
	}
}
