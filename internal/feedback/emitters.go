package feedback

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"inputkit/internal/logging"
)

// LogEmitter writes each request to a logger. It is the default sink on
// hosts without an audio or vibration device.
type LogEmitter struct {
	logger *logging.Logger
}

// NewLogEmitter returns a LogEmitter. A nil logger uses the default one.
func NewLogEmitter(l *logging.Logger) *LogEmitter {
	return &LogEmitter{logger: l.Or("feedback")}
}

func (e *LogEmitter) Emit(ctx context.Context, req Request) error {
	switch req.Modality {
	case ModalityAudio:
		e.logger.DebugContext(ctx, "tone",
			"kind", req.Kind.String(),
			"frequency_hz", req.Tone.Frequency,
			"duration", req.Tone.Duration)
	default:
		e.logger.DebugContext(ctx, "vibrate",
			"kind", req.Kind.String(),
			"pattern", req.Pattern)
	}
	return nil
}

// Recorder collects requests in memory.
type Recorder struct {
	mu       sync.Mutex
	requests []Request
}

func (r *Recorder) Emit(_ context.Context, req Request) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, req)
	return nil
}

// Requests returns a copy of everything recorded so far.
func (r *Recorder) Requests() []Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Request(nil), r.requests...)
}

// Kinds returns the kind of every recorded request, in order.
func (r *Recorder) Kinds() []Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]Kind, len(r.requests))
	for i, req := range r.requests {
		kinds[i] = req.Kind
	}
	return kinds
}

// Reset drops all recorded requests.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = nil
}

// Sink names a built-in emitter set.
type Sink string

const (
	SinkLog  Sink = "log"
	SinkDBus Sink = "dbus"
	SinkNone Sink = "none"
)

// ParseSink validates a sink name.
func ParseSink(s string) (Sink, error) {
	switch sink := Sink(strings.ToLower(s)); sink {
	case SinkLog, SinkDBus, SinkNone:
		return sink, nil
	case "":
		return SinkLog, nil
	default:
		return "", fmt.Errorf("unknown feedback sink: %q", s)
	}
}

// Emitters is an opened sink.
type Emitters struct {
	Audio  Emitter
	Haptic Emitter
	close  func() error
}

// Options returns Pulser options registering the opened emitters.
func (e *Emitters) Options() []Option {
	var opts []Option
	if e.Audio != nil {
		opts = append(opts, WithEmitter(ModalityAudio, e.Audio))
	}
	if e.Haptic != nil {
		opts = append(opts, WithEmitter(ModalityHaptic, e.Haptic))
	}
	return opts
}

// Close releases the sink's connections.
func (e *Emitters) Close() error {
	if e.close == nil {
		return nil
	}
	return e.close()
}

// OpenSink builds the emitters for sink. The D-Bus sink plays tones through
// the desktop notification server; desktops have no vibration device, so
// haptic requests are logged there.
func OpenSink(sink Sink, l *logging.Logger) (*Emitters, error) {
	switch sink {
	case SinkNone:
		return &Emitters{}, nil
	case SinkDBus:
		n, err := DialNotifyEmitter()
		if err != nil {
			return nil, fmt.Errorf("open dbus sink: %w", err)
		}
		return &Emitters{Audio: n, Haptic: NewLogEmitter(l), close: n.Close}, nil
	default:
		le := NewLogEmitter(l)
		return &Emitters{Audio: le, Haptic: le}, nil
	}
}
