// Package metrics provides Prometheus metrics for the input subsystem.
//
// Features:
//   - Counters for classified gestures, cancelled sessions, focus changes,
//     voice matches and feedback pulses
//   - Histogram of interaction session durations
//   - Gauge of live interaction sessions
//   - Optional HTTP handler for scraping
//
// A nil *Metrics is valid and records nothing, so components can be built
// without instrumentation.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "inputkit"

// SessionBuckets are histogram buckets for touch-down-to-resolution times
// in seconds.
var SessionBuckets = []float64{
	0.05, 0.1, 0.2, 0.3, 0.5, 0.75, 1, 2, 5,
}

// Metrics holds all input subsystem collectors.
type Metrics struct {
	registry prometheus.Gatherer

	GesturesTotal          *prometheus.CounterVec
	SessionsCancelledTotal prometheus.Counter
	SessionsActive         prometheus.Gauge
	SessionDuration        prometheus.Histogram
	PinchUpdatesTotal      prometheus.Counter
	DragDropsTotal         prometheus.Counter
	FocusChangesTotal      *prometheus.CounterVec
	VoiceMatchesTotal      *prometheus.CounterVec
	CallbackFailuresTotal  *prometheus.CounterVec
	FeedbackPulsesTotal    *prometheus.CounterVec
	FeedbackDroppedTotal   prometheus.Counter
}

// New creates the collectors and registers them on reg. A nil reg creates a
// private registry, which keeps tests and multiple hubs independent.
func New(namespace string, reg *prometheus.Registry) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		GesturesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gestures_total",
			Help:      "Classified gestures by kind.",
		}, []string{"kind"}),
		SessionsCancelledTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_cancelled_total",
			Help:      "Interaction sessions that ended without a classified gesture.",
		}),
		SessionsActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Interaction sessions currently pending resolution.",
		}),
		SessionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Time from touch-down to gesture resolution.",
			Buckets:   SessionBuckets,
		}),
		PinchUpdatesTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pinch_updates_total",
			Help:      "Pinch scale updates emitted.",
		}),
		DragDropsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "drag_drops_total",
			Help:      "Completed drag-and-drop interactions.",
		}),
		FocusChangesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "focus_changes_total",
			Help:      "Focus changes by cause (direction, tab, dwell, explicit).",
		}, []string{"cause"}),
		VoiceMatchesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "voice_matches_total",
			Help:      "Voice commands dispatched by category.",
		}, []string{"category"}),
		CallbackFailuresTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "callback_failures_total",
			Help:      "Consumer callbacks that failed or panicked, by component.",
		}, []string{"component"}),
		FeedbackPulsesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feedback_pulses_total",
			Help:      "Feedback pulses delivered by kind and modality.",
		}, []string{"kind", "modality"}),
		FeedbackDroppedTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feedback_dropped_total",
			Help:      "Feedback pulses dropped by the rate limiter or a failing emitter.",
		}),
	}
}

// Gatherer returns the registry the collectors are registered on.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	if m == nil {
		return prometheus.NewRegistry()
	}
	return m.registry
}

// Handler returns an HTTP handler serving the collectors in the Prometheus
// text exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Gatherer(), promhttp.HandlerOpts{})
}

// Gesture records one classified gesture.
func (m *Metrics) Gesture(kind string) {
	if m == nil {
		return
	}
	m.GesturesTotal.WithLabelValues(kind).Inc()
}

// SessionStarted marks a session as live.
func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.SessionsActive.Inc()
}

// SessionFinished marks a session as no longer live and observes its
// duration. cancelled is true when no gesture was classified.
func (m *Metrics) SessionFinished(d time.Duration, cancelled bool) {
	if m == nil {
		return
	}
	m.SessionsActive.Dec()
	if cancelled {
		m.SessionsCancelledTotal.Inc()
		return
	}
	m.SessionDuration.Observe(d.Seconds())
}

// PinchUpdate records one pinch update.
func (m *Metrics) PinchUpdate() {
	if m == nil {
		return
	}
	m.PinchUpdatesTotal.Inc()
}

// DragDrop records one completed drop.
func (m *Metrics) DragDrop() {
	if m == nil {
		return
	}
	m.DragDropsTotal.Inc()
}

// FocusChange records one focus change.
func (m *Metrics) FocusChange(cause string) {
	if m == nil {
		return
	}
	m.FocusChangesTotal.WithLabelValues(cause).Inc()
}

// VoiceMatch records one dispatched voice command.
func (m *Metrics) VoiceMatch(category string) {
	if m == nil {
		return
	}
	if category == "" {
		category = "uncategorized"
	}
	m.VoiceMatchesTotal.WithLabelValues(category).Inc()
}

// CallbackFailure records a failed consumer callback.
func (m *Metrics) CallbackFailure(component string) {
	if m == nil {
		return
	}
	m.CallbackFailuresTotal.WithLabelValues(component).Inc()
}

// FeedbackPulse records one delivered pulse.
func (m *Metrics) FeedbackPulse(kind, modality string) {
	if m == nil {
		return
	}
	m.FeedbackPulsesTotal.WithLabelValues(kind, modality).Inc()
}

// FeedbackDropped records one pulse that was not delivered.
func (m *Metrics) FeedbackDropped() {
	if m == nil {
		return
	}
	m.FeedbackDroppedTotal.Inc()
}
