package input

import "time"

// Method identifies how an interaction was performed.
type Method int

const (
	MethodUnknown Method = iota
	MethodPointer
	MethodKeyboard
	MethodVoice
)

func (m Method) String() string {
	switch m {
	case MethodPointer:
		return "pointer"
	case MethodKeyboard:
		return "keyboard"
	case MethodVoice:
		return "voice"
	default:
		return "unknown"
	}
}

// Stats counts the interactions a hub has interpreted.
type Stats struct {
	// Per-method counts
	Pointer  uint64 `json:"pointer"`
	Keyboard uint64 `json:"keyboard"`
	Voice    uint64 `json:"voice"`

	// Derived metrics
	Total          uint64    `json:"total"`
	PointerPercent float64   `json:"pointer_percent"`
	MethodSwitches int       `json:"method_switches"` // Times the user changed input method
	LastMethod     string    `json:"last_method"`
	LastAt         time.Time `json:"last_at"`
}

// record counts one interpreted interaction.
func (h *Hub) record(m Method) {
	now := h.clock.Now()

	h.mu.Lock()
	defer h.mu.Unlock()

	switch m {
	case MethodPointer:
		h.stats.Pointer++
	case MethodKeyboard:
		h.stats.Keyboard++
	case MethodVoice:
		h.stats.Voice++
	}
	if h.lastMethod != MethodUnknown && h.lastMethod != m {
		h.stats.MethodSwitches++
	}
	h.lastMethod = m
	h.stats.LastAt = now
}

// Stats returns the current interaction statistics.
func (h *Hub) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()

	s := h.stats
	s.Total = s.Pointer + s.Keyboard + s.Voice
	if s.Total > 0 {
		s.PointerPercent = float64(s.Pointer) * 100 / float64(s.Total)
	}
	s.LastMethod = h.lastMethod.String()
	return s
}
