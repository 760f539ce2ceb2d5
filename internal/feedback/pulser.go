package feedback

import (
	"context"
	"math"
	"sync"

	"golang.org/x/time/rate"

	"inputkit/internal/logging"
	"inputkit/internal/metrics"
	"inputkit/internal/timing"
)

// Config controls which modalities fire and how often.
type Config struct {
	Audio  bool
	Haptic bool

	// MaxPulsesPerSecond limits the sustained rate of non-error pulses.
	// Zero or less disables the limit. Error pulses are never limited.
	MaxPulsesPerSecond float64
	Burst              int
}

// DefaultConfig returns the default feedback configuration.
func DefaultConfig() Config {
	return Config{
		Audio:              true,
		Haptic:             true,
		MaxPulsesPerSecond: 0,
		Burst:              5,
	}
}

func (c Config) limit() rate.Limit {
	if c.MaxPulsesPerSecond <= 0 || math.IsInf(c.MaxPulsesPerSecond, 1) {
		return rate.Inf
	}
	return rate.Limit(c.MaxPulsesPerSecond)
}

func (c Config) burst() int {
	if c.Burst < 1 {
		return 1
	}
	return c.Burst
}

// Pulser fans pulse requests out to the emitter registered for each enabled
// modality. A nil *Pulser ignores every call, so components can be built
// without feedback.
type Pulser struct {
	logger  *logging.Logger
	metrics *metrics.Metrics
	clock   timing.Clock

	mu       sync.RWMutex
	cfg      Config
	emitters map[Modality]Emitter
	limiter  *rate.Limiter
}

// Option configures a Pulser.
type Option func(*Pulser)

// WithEmitter registers e for modality, replacing any previous emitter.
func WithEmitter(m Modality, e Emitter) Option {
	return func(p *Pulser) { p.emitters[m] = e }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(p *Pulser) { p.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pulser) { p.metrics = m }
}

// WithClock sets the clock consulted by the rate limiter.
func WithClock(c timing.Clock) Option {
	return func(p *Pulser) { p.clock = c }
}

// NewPulser creates a Pulser.
func NewPulser(cfg Config, opts ...Option) *Pulser {
	p := &Pulser{
		cfg:      cfg,
		emitters: make(map[Modality]Emitter),
		clock:    timing.System,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.Or("feedback")
	p.limiter = rate.NewLimiter(cfg.limit(), cfg.burst())
	return p
}

// SetConfig swaps the configuration. The limiter keeps its token state.
func (p *Pulser) SetConfig(cfg Config) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.clock.Now()
	p.cfg = cfg
	p.limiter.SetLimitAt(now, cfg.limit())
	p.limiter.SetBurstAt(now, cfg.burst())
}

// Config returns the current configuration.
func (p *Pulser) Config() Config {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cfg
}

// SetEmitter registers e for modality. A nil emitter removes it.
func (p *Pulser) SetEmitter(m Modality, e Emitter) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if e == nil {
		delete(p.emitters, m)
		return
	}
	p.emitters[m] = e
}

// Pulse requests feedback of the given kind on every enabled modality.
// It never fails. When a limit is configured, a non-error pulse over the
// limit is dropped entirely.
func (p *Pulser) Pulse(ctx context.Context, kind Kind) {
	if p == nil {
		return
	}

	p.mu.RLock()
	cfg := p.cfg
	targets := make([]Modality, 0, 2)
	emitters := make([]Emitter, 0, 2)
	if cfg.Audio && p.emitters[ModalityAudio] != nil {
		targets = append(targets, ModalityAudio)
		emitters = append(emitters, p.emitters[ModalityAudio])
	}
	if cfg.Haptic && p.emitters[ModalityHaptic] != nil {
		targets = append(targets, ModalityHaptic)
		emitters = append(emitters, p.emitters[ModalityHaptic])
	}
	p.mu.RUnlock()

	if len(targets) == 0 {
		return
	}
	if kind != KindError && !p.limiter.AllowN(p.clock.Now(), 1) {
		p.metrics.FeedbackDropped()
		p.logger.Debug("feedback pulse dropped", "kind", kind.String())
		return
	}

	for i, m := range targets {
		req := NewRequest(kind, m)
		e := emitters[i]
		err := logging.Guard(func() error { return e.Emit(ctx, req) })
		if err != nil {
			p.metrics.CallbackFailure("feedback")
			p.logger.Warn("feedback emitter failed",
				"kind", kind.String(), "modality", m.String(), "error", err)
			continue
		}
		p.metrics.FeedbackPulse(kind.String(), m.String())
	}
}
