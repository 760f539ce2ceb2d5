package voice

import (
	"context"
	"sync"
)

// Recognizer is a speech-to-text backend.
type Recognizer interface {
	// Start begins recognition.
	Start(ctx context.Context) error

	// Stop ends recognition and closes the segment channel.
	Stop() error

	// Segments returns the channel of transcript updates.
	Segments() <-chan Segment

	// Available reports whether recognition works on this host. The
	// string describes why not when it does not.
	Available() (bool, string)
}

type unsupported struct {
	reason string
}

// Unsupported returns a Recognizer for hosts without speech recognition.
func Unsupported(reason string) Recognizer {
	if reason == "" {
		reason = "no speech recognition backend"
	}
	return unsupported{reason: reason}
}

func (u unsupported) Start(context.Context) error { return ErrNotSupported }
func (u unsupported) Stop() error                 { return nil }
func (u unsupported) Segments() <-chan Segment    { return nil }
func (u unsupported) Available() (bool, string)   { return false, u.reason }

// ScriptedRecognizer replays a fixed list of segments, standing in for a
// speech engine in tests and offline runs.
type ScriptedRecognizer struct {
	segments []Segment

	mu      sync.Mutex
	ch      chan Segment
	started bool
}

// NewScriptedRecognizer returns a recognizer that emits segs on Start.
func NewScriptedRecognizer(segs ...Segment) *ScriptedRecognizer {
	return &ScriptedRecognizer{segments: segs}
}

func (s *ScriptedRecognizer) Start(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	s.started = true
	s.ch = make(chan Segment, len(s.segments))
	for _, seg := range s.segments {
		s.ch <- seg
	}
	close(s.ch)
	return nil
}

func (s *ScriptedRecognizer) Stop() error { return nil }

func (s *ScriptedRecognizer) Segments() <-chan Segment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ch
}

func (s *ScriptedRecognizer) Available() (bool, string) { return true, "scripted" }
