package gesture

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrIllegalTransition is returned when a session is asked to move to a
// phase its current phase cannot reach.
var ErrIllegalTransition = errors.New("illegal session transition")

// Phase is the state of an interaction session.
type Phase int

const (
	// PhaseIdle is a session that has not seen a touch-start.
	PhaseIdle Phase = iota
	// PhasePending is a touch in progress.
	PhasePending
	// PhaseArmed is a tap candidate waiting out the double-tap window.
	PhaseArmed
	// PhaseResolved is a session that produced its one event.
	PhaseResolved
	// PhaseCancelled is a session that ended without an event.
	PhaseCancelled
)

var phaseNames = [...]string{"idle", "pending", "armed", "resolved", "cancelled"}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return fmt.Sprintf("phase(%d)", int(p))
	}
	return phaseNames[p]
}

// transitions lists every legal phase change.
var transitions = map[Phase][]Phase{
	PhaseIdle:    {PhasePending},
	PhasePending: {PhaseArmed, PhaseResolved, PhaseCancelled},
	PhaseArmed:   {PhaseResolved, PhaseCancelled},
}

// CanTransition reports whether from -> to is legal.
func CanTransition(from, to Phase) bool {
	for _, p := range transitions[from] {
		if p == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (p Phase) Terminal() bool {
	return len(transitions[p]) == 0
}

// Session is one touch-down-to-touch-up cycle on a surface.
type Session struct {
	ID      string
	Start   Sample
	Last    Sample
	Phase   Phase
	Outcome Kind
}

func newSession(start Sample) *Session {
	s := &Session{ID: uuid.NewString(), Phase: PhaseIdle}
	s.Start = start
	s.Last = start
	return s
}

// Live reports whether the session may still produce an event.
func (s *Session) Live() bool {
	return s.Phase == PhasePending || s.Phase == PhaseArmed
}

// Duration is the time between the first and the latest sample.
func (s *Session) Duration() time.Duration {
	return s.Last.Time.Sub(s.Start.Time)
}

func (s *Session) transition(to Phase) error {
	if !CanTransition(s.Phase, to) {
		return fmt.Errorf("%w: %s -> %s (session %s)", ErrIllegalTransition, s.Phase, to, s.ID)
	}
	s.Phase = to
	return nil
}

func (s *Session) resolve(outcome Kind) error {
	if err := s.transition(PhaseResolved); err != nil {
		return err
	}
	s.Outcome = outcome
	return nil
}
