// Package input ties the interpreters together. A Hub owns the clock,
// feedback, metrics and logging shared by every interaction surface, the
// focus navigator and the voice dispatcher, and applies configuration to
// all of them at once.
package input

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"inputkit/internal/config"
	"inputkit/internal/dragdrop"
	"inputkit/internal/feedback"
	"inputkit/internal/focus"
	"inputkit/internal/geom"
	"inputkit/internal/gesture"
	"inputkit/internal/logging"
	"inputkit/internal/metrics"
	"inputkit/internal/timing"
	"inputkit/internal/voice"
)

// ErrDisposed is returned by operations on a disposed Hub.
var ErrDisposed = errors.New("input hub is disposed")

type options struct {
	clock    timing.Clock
	logger   *logging.Logger
	metrics  *metrics.Metrics
	emitters map[feedback.Modality]feedback.Emitter
	actions  map[string]voice.Action
}

// Option configures a Hub.
type Option func(*options)

// WithClock sets the clock every timer in the hub is scheduled on.
func WithClock(c timing.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithLogger sets the base logger. Components derive their own from it.
func WithLogger(l *logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics sets the metrics sink, overriding the metrics section of the
// configuration.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithEmitter installs e for modality instead of the configured sink.
func WithEmitter(m feedback.Modality, e feedback.Emitter) Option {
	return func(o *options) {
		if o.emitters == nil {
			o.emitters = make(map[feedback.Modality]feedback.Emitter)
		}
		o.emitters[m] = e
	}
}

// WithActions supplies the actions configured voice commands bind to by
// name.
func WithActions(actions map[string]voice.Action) Option {
	return func(o *options) { o.actions = actions }
}

// Hub is the single owner of the input interpreters.
type Hub struct {
	clock   timing.Clock
	base    *logging.Logger
	logger  *logging.Logger
	metrics *metrics.Metrics
	pulser  *feedback.Pulser
	actions map[string]voice.Action

	regions    *focus.Registry
	navigator  *focus.Navigator
	dwell      *focus.DwellTracker
	commands   *voice.Registry
	dispatcher *voice.Dispatcher

	mu         sync.Mutex
	cfg        *config.Config
	sink       *feedback.Emitters
	sinkName   feedback.Sink
	surfaces   map[string]*gesture.Surface
	unbind     func()
	stats      Stats
	lastMethod Method
	disposed   bool
}

// NewHub builds a hub from cfg. A nil cfg means config.DefaultConfig().
// Configured voice commands whose action is not supplied by WithActions
// are skipped with a warning.
func NewHub(cfg *config.Config, opts ...Option) (*Hub, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("input hub: %w", err)
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.clock == nil {
		o.clock = timing.System
	}
	base := o.logger
	if base == nil {
		base = logging.Default()
	}
	if o.metrics == nil && cfg.Metrics.Enabled {
		o.metrics = metrics.New(cfg.Metrics.Namespace, nil)
	}

	h := &Hub{
		clock:    o.clock,
		base:     base,
		logger:   base.WithComponent("hub"),
		metrics:  o.metrics,
		actions:  o.actions,
		cfg:      cfg.Clone(),
		surfaces: make(map[string]*gesture.Surface),
	}

	pulserOpts := []feedback.Option{
		feedback.WithLogger(base.WithComponent("feedback")),
		feedback.WithMetrics(o.metrics),
		feedback.WithClock(o.clock),
	}
	if len(o.emitters) > 0 {
		for m, e := range o.emitters {
			pulserOpts = append(pulserOpts, feedback.WithEmitter(m, e))
		}
	} else {
		sink, name := h.openSink(cfg.Feedback.Sink, base)
		h.sink, h.sinkName = sink, name
		pulserOpts = append(pulserOpts, sink.Options()...)
	}
	h.pulser = feedback.NewPulser(cfg.FeedbackConfig(), pulserOpts...)

	h.regions = focus.NewRegistry()
	h.navigator = focus.NewNavigator(h.regions,
		focus.WithPulser(h.pulser),
		focus.WithLogger(base.WithComponent("focus")),
		focus.WithMetrics(o.metrics),
	)
	h.dwell = focus.NewDwellTracker(h.navigator, cfg.DwellTime(), o.clock)

	h.commands = voice.NewRegistry()
	h.dispatcher = voice.NewDispatcher(h.commands, cfg.VoiceConfig(),
		voice.WithPulser(h.pulser),
		voice.WithLogger(base.WithComponent("voice")),
		voice.WithMetrics(o.metrics),
	)
	h.bindCommands(cfg.Voice.Commands)

	return h, nil
}

// openSink opens the configured feedback sink. A sink that cannot be
// opened, such as D-Bus without a session bus, falls back to the log sink.
func (h *Hub) openSink(name string, base *logging.Logger) (*feedback.Emitters, feedback.Sink) {
	l := base.WithComponent("feedback")
	sink, err := feedback.ParseSink(name)
	if err != nil {
		sink = feedback.SinkLog
	}
	emitters, err := feedback.OpenSink(sink, l)
	if err != nil {
		h.logger.Warn("feedback sink unavailable, logging instead",
			"sink", string(sink), "error", err)
		sink = feedback.SinkLog
		emitters, _ = feedback.OpenSink(sink, l)
	}
	return emitters, sink
}

// bindCommands replaces the commands bound from configuration. Commands
// registered directly on Commands() are left alone.
func (h *Hub) bindCommands(decls []voice.Declaration) {
	if h.unbind != nil {
		h.unbind()
		h.unbind = nil
	}
	if len(decls) == 0 {
		return
	}
	unbind, err := h.commands.Bind(decls, h.actions)
	if err != nil {
		h.logger.Warn("some voice commands were not bound", "error", err)
	}
	h.unbind = unbind
}

// Surface creates the interaction surface called name. Events classified
// on it are passed to handler. Creating a surface under an existing name
// disposes the old one.
func (h *Hub) Surface(name string, handler gesture.Handler) (*gesture.Surface, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.disposed {
		return nil, ErrDisposed
	}

	wrapped := func(ev gesture.Event) {
		h.record(MethodPointer)
		if handler != nil {
			handler(ev)
		}
	}
	s := gesture.NewSurface(name, h.cfg.GestureConfig(), h.cfg.PinchConfig(), wrapped,
		gesture.WithClock(h.clock),
		gesture.WithPulser(h.pulser),
		gesture.WithLogger(h.base.WithComponent("gesture")),
		gesture.WithMetrics(h.metrics),
	)
	if old, ok := h.surfaces[name]; ok {
		old.Dispose()
	}
	h.surfaces[name] = s
	return s, nil
}

// Surfaces returns the names of the live surfaces.
func (h *Hub) Surfaces() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	names := make([]string, 0, len(h.surfaces))
	for name := range h.surfaces {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HandlePointer routes ev to the named surface. It reports false if no such
// surface exists.
func (h *Hub) HandlePointer(surface string, ev gesture.PointerEvent) bool {
	h.mu.Lock()
	s, ok := h.surfaces[surface]
	disposed := h.disposed
	h.mu.Unlock()
	if !ok || disposed {
		h.logger.Debug("pointer event for unknown surface", "surface", surface)
		return false
	}
	s.Handle(ev)
	return true
}

// HandleHover feeds a hover position to the dwell tracker.
func (h *Hub) HandleHover(p geom.Point) {
	if h.isDisposed() {
		return
	}
	h.dwell.Hover(p)
}

// HandleLeave reports that the pointer left every region.
func (h *Hub) HandleLeave() {
	h.dwell.Leave()
}

// HandleKey applies a navigation key and reports whether it was consumed.
func (h *Hub) HandleKey(ev focus.KeyEvent) bool {
	if h.isDisposed() {
		return false
	}
	consumed := h.navigator.HandleKey(ev)
	if consumed {
		h.record(MethodKeyboard)
	}
	return consumed
}

// HandleTranscript dispatches a recognized speech segment. It returns the
// phrase of the command that ran.
func (h *Hub) HandleTranscript(seg voice.Segment) (string, bool) {
	if h.isDisposed() {
		return "", false
	}
	phrase, ok := h.dispatcher.HandleSegment(seg)
	if ok {
		h.record(MethodVoice)
	}
	return phrase, ok
}

// Listen streams segments from rec into the dispatcher until ctx is done
// or the recognizer stops.
func (h *Hub) Listen(ctx context.Context, rec voice.Recognizer) error {
	if h.isDisposed() {
		return ErrDisposed
	}
	return h.dispatcher.Listen(ctx, rec)
}

// Apply reconfigures every component from cfg. An invalid cfg is rejected
// and the current configuration stays in effect.
func (h *Hub) Apply(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("apply config: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.disposed {
		return ErrDisposed
	}

	h.cfg = cfg.Clone()
	for _, s := range h.surfaces {
		s.UpdateConfig(cfg.GestureConfig(), cfg.PinchConfig())
	}
	h.pulser.SetConfig(cfg.FeedbackConfig())
	h.dispatcher.SetConfig(cfg.VoiceConfig())
	h.dwell.SetDwell(cfg.DwellTime())
	h.bindCommands(cfg.Voice.Commands)
	h.swapSinkLocked(cfg.Feedback.Sink)

	h.logger.Info("configuration applied", "surfaces", len(h.surfaces))
	return nil
}

// swapSinkLocked reopens the feedback sink when its name changed. Hubs
// built WithEmitter keep their emitters.
func (h *Hub) swapSinkLocked(name string) {
	if h.sink == nil {
		return
	}
	want, err := feedback.ParseSink(name)
	if err != nil || want == h.sinkName {
		return
	}
	next, got := h.openSink(name, h.base)
	h.pulser.SetEmitter(feedback.ModalityAudio, next.Audio)
	h.pulser.SetEmitter(feedback.ModalityHaptic, next.Haptic)
	if err := h.sink.Close(); err != nil {
		h.logger.Warn("close feedback sink", "error", err)
	}
	h.sink, h.sinkName = next, got
}

// Watch applies every configuration the loader reloads.
func (h *Hub) Watch(l *config.Loader) {
	l.OnChange(func(cfg *config.Config) {
		if err := h.Apply(cfg); err != nil {
			h.logger.Warn("reloaded configuration rejected", "error", err)
		}
	})
}

// Config returns a copy of the configuration in effect.
func (h *Hub) Config() *config.Config {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cfg.Clone()
}

// Regions returns the focus registry elements register with.
func (h *Hub) Regions() *focus.Registry { return h.regions }

// Navigator returns the focus navigator.
func (h *Hub) Navigator() *focus.Navigator { return h.navigator }

// Commands returns the voice command registry.
func (h *Hub) Commands() *voice.Registry { return h.commands }

// Pulser returns the feedback pulser.
func (h *Hub) Pulser() *feedback.Pulser { return h.pulser }

// Metrics returns the metrics sink, which may be nil.
func (h *Hub) Metrics() *metrics.Metrics { return h.metrics }

// NewDrag returns a drag coordinator sharing the hub's feedback, logging
// and metrics.
func NewDrag[T any](h *Hub, onDrop dragdrop.DropFunc[T]) *dragdrop.Coordinator[T] {
	return dragdrop.NewCoordinator(onDrop,
		dragdrop.WithPulser(h.pulser),
		dragdrop.WithLogger(h.base.WithComponent("dragdrop")),
		dragdrop.WithMetrics(h.metrics),
	)
}

// Dispose tears down every surface, timer and registry and closes the
// feedback sink. No callback scheduled by the hub runs afterwards. It is
// safe to call more than once.
func (h *Hub) Dispose() {
	h.mu.Lock()
	if h.disposed {
		h.mu.Unlock()
		return
	}
	h.disposed = true
	surfaces := h.surfaces
	h.surfaces = make(map[string]*gesture.Surface)
	sink := h.sink
	h.mu.Unlock()

	for _, s := range surfaces {
		s.Dispose()
	}
	h.dwell.Dispose()
	h.regions.Dispose()
	h.commands.Dispose()
	if sink != nil {
		if err := sink.Close(); err != nil {
			h.logger.Warn("close feedback sink", "error", err)
		}
	}
	h.logger.Debug("hub disposed")
}

func (h *Hub) isDisposed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.disposed
}
