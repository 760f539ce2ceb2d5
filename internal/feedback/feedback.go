// Package feedback turns recognized input events into short audio tones and
// vibration patterns. Pulses are fire-and-forget: emitter failures are
// logged and counted but never reach the code that asked for the pulse.
package feedback

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Kind identifies why a pulse was requested.
type Kind int

const (
	KindSuccess Kind = iota
	KindError
	KindFocus
	KindActivation
	KindListening
)

var kindNames = [...]string{"success", "error", "focus", "activation", "listening"}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// ParseKind parses a kind name as produced by String.
func ParseKind(s string) (Kind, error) {
	for i, name := range kindNames {
		if strings.EqualFold(s, name) {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown feedback kind: %q", s)
}

// Modality is the output channel of a pulse.
type Modality int

const (
	ModalityAudio Modality = iota
	ModalityHaptic
)

func (m Modality) String() string {
	switch m {
	case ModalityAudio:
		return "audio"
	case ModalityHaptic:
		return "haptic"
	default:
		return fmt.Sprintf("modality(%d)", int(m))
	}
}

// Tone is a single sine tone.
type Tone struct {
	Frequency float64 // Hz
	Duration  time.Duration
}

// Request is one resolved pulse for one modality. Audio requests carry a
// Tone, haptic requests a vibration Pattern of alternating on/off spans.
type Request struct {
	Kind     Kind
	Modality Modality
	Tone     Tone
	Pattern  []time.Duration
}

var tones = map[Kind]Tone{
	KindSuccess:    {Frequency: 880, Duration: 100 * time.Millisecond},
	KindError:      {Frequency: 220, Duration: 250 * time.Millisecond},
	KindFocus:      {Frequency: 660, Duration: 40 * time.Millisecond},
	KindActivation: {Frequency: 990, Duration: 70 * time.Millisecond},
	KindListening:  {Frequency: 440, Duration: 150 * time.Millisecond},
}

var patterns = map[Kind][]time.Duration{
	KindSuccess:    {50 * time.Millisecond},
	KindError:      {100 * time.Millisecond, 50 * time.Millisecond, 100 * time.Millisecond},
	KindFocus:      {10 * time.Millisecond},
	KindActivation: {30 * time.Millisecond},
	KindListening:  {20 * time.Millisecond, 20 * time.Millisecond, 20 * time.Millisecond},
}

// ToneFor returns the tone played for kind.
func ToneFor(kind Kind) Tone {
	return tones[kind]
}

// PatternFor returns a copy of the vibration pattern for kind.
func PatternFor(kind Kind) []time.Duration {
	return append([]time.Duration(nil), patterns[kind]...)
}

// NewRequest resolves kind for the given modality.
func NewRequest(kind Kind, modality Modality) Request {
	r := Request{Kind: kind, Modality: modality}
	switch modality {
	case ModalityAudio:
		r.Tone = ToneFor(kind)
	case ModalityHaptic:
		r.Pattern = PatternFor(kind)
	}
	return r
}

// Emitter drives an output device.
type Emitter interface {
	Emit(ctx context.Context, req Request) error
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(ctx context.Context, req Request) error

// Emit calls f.
func (f EmitterFunc) Emit(ctx context.Context, req Request) error {
	return f(ctx, req)
}
