package voice

import (
	"context"
	"fmt"
	"sync"

	"inputkit/internal/feedback"
	"inputkit/internal/logging"
	"inputkit/internal/metrics"
)

// Segment is one transcript update from a recognizer. Interim segments are
// revised by later ones; a final segment ends the utterance.
type Segment struct {
	Text  string `json:"text" yaml:"text"`
	Final bool   `json:"final" yaml:"final"`
}

// Config controls dispatch.
type Config struct {
	Enabled bool
	// DispatchInterim also matches interim segments. Each phrase then fires
	// at most once per utterance.
	DispatchInterim bool
}

// DefaultConfig returns the default dispatcher configuration.
func DefaultConfig() Config {
	return Config{Enabled: true}
}

type options struct {
	pulser  *feedback.Pulser
	logger  *logging.Logger
	metrics *metrics.Metrics
}

// Option configures a Dispatcher.
type Option func(*options)

// WithPulser sets the pulser for listening and error feedback.
func WithPulser(p *feedback.Pulser) Option {
	return func(o *options) { o.pulser = p }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// Dispatcher matches transcripts against a Registry.
type Dispatcher struct {
	reg  *Registry
	opts options

	mu    sync.Mutex
	cfg   Config
	fired map[string]bool
}

// NewDispatcher creates a dispatcher over reg.
func NewDispatcher(reg *Registry, cfg Config, opts ...Option) *Dispatcher {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = o.logger.Or("voice")
	return &Dispatcher{
		reg:   reg,
		opts:  o,
		cfg:   cfg,
		fired: make(map[string]bool),
	}
}

// SetConfig replaces the configuration.
func (d *Dispatcher) SetConfig(cfg Config) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cfg = cfg
}

// Config returns the current configuration.
func (d *Dispatcher) Config() Config {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cfg
}

// Dispatch matches one transcript update and invokes at most one action.
// It returns the matched phrase.
func (d *Dispatcher) Dispatch(transcript string) (string, bool) {
	if !d.Config().Enabled {
		return "", false
	}
	cmd, ok := d.reg.Match(transcript)
	if !ok {
		return "", false
	}
	d.invoke(cmd)
	return cmd.Phrase, true
}

// HandleSegment dispatches a recognizer segment. Only final segments
// dispatch unless DispatchInterim is set; in that mode a phrase already
// fired by an interim segment is not fired again by later segments of the
// same utterance.
func (d *Dispatcher) HandleSegment(seg Segment) (string, bool) {
	d.mu.Lock()
	cfg := d.cfg
	d.mu.Unlock()
	if !cfg.Enabled {
		return "", false
	}
	if !cfg.DispatchInterim {
		if !seg.Final {
			return "", false
		}
		return d.Dispatch(seg.Text)
	}

	cmd, ok := d.reg.Match(seg.Text)
	d.mu.Lock()
	key := Normalize(cmd.Phrase)
	if ok && d.fired[key] {
		ok = false
	} else if ok {
		d.fired[key] = true
	}
	if seg.Final {
		clear(d.fired)
	}
	d.mu.Unlock()

	if !ok {
		return "", false
	}
	d.invoke(cmd)
	return cmd.Phrase, true
}

func (d *Dispatcher) invoke(cmd Command) {
	d.opts.metrics.VoiceMatch(cmd.Category)
	d.opts.logger.Info("voice command matched", "phrase", cmd.Phrase, "category", cmd.Category)
	if cmd.Action == nil {
		return
	}
	if err := logging.Guard(cmd.Action); err != nil {
		d.opts.logger.CallbackFailed("voice action", err, "phrase", cmd.Phrase)
		d.opts.metrics.CallbackFailure("voice")
		d.opts.pulser.Pulse(context.Background(), feedback.KindError)
	}
}

// Supported reports whether rec can deliver transcripts.
func Supported(rec Recognizer) bool {
	if rec == nil {
		return false
	}
	ok, _ := rec.Available()
	return ok
}

// Listen feeds rec's segments to the dispatcher until ctx is done or the
// recognizer closes its channel. Without a usable recognizer it logs and
// returns nil immediately.
func (d *Dispatcher) Listen(ctx context.Context, rec Recognizer) error {
	if rec == nil {
		d.opts.logger.Info("voice input unavailable", "reason", "no recognizer")
		return nil
	}
	if ok, reason := rec.Available(); !ok {
		d.opts.logger.Info("voice input unavailable", "reason", reason)
		return nil
	}
	if err := rec.Start(ctx); err != nil {
		return fmt.Errorf("start recognizer: %w", err)
	}
	defer rec.Stop()

	d.opts.pulser.Pulse(ctx, feedback.KindListening)
	segments := rec.Segments()
	for {
		select {
		case <-ctx.Done():
			return nil
		case seg, ok := <-segments:
			if !ok {
				return nil
			}
			d.HandleSegment(seg)
		}
	}
}
