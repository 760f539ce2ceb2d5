package feedback

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inputkit/internal/logging"
	"inputkit/internal/metrics"
	"inputkit/internal/timing"
)

var epoch = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func TestToneAndPatternTables(t *testing.T) {
	assert.Equal(t, Tone{Frequency: 880, Duration: 100 * time.Millisecond}, ToneFor(KindSuccess))
	assert.Equal(t, Tone{Frequency: 220, Duration: 250 * time.Millisecond}, ToneFor(KindError))
	assert.Equal(t, Tone{Frequency: 660, Duration: 40 * time.Millisecond}, ToneFor(KindFocus))
	assert.Equal(t, Tone{Frequency: 990, Duration: 70 * time.Millisecond}, ToneFor(KindActivation))
	assert.Equal(t, Tone{Frequency: 440, Duration: 150 * time.Millisecond}, ToneFor(KindListening))

	ms := time.Millisecond
	assert.Equal(t, []time.Duration{100 * ms, 50 * ms, 100 * ms}, PatternFor(KindError))
	assert.Equal(t, []time.Duration{20 * ms, 20 * ms, 20 * ms}, PatternFor(KindListening))

	p := PatternFor(KindSuccess)
	p[0] = time.Hour
	assert.Equal(t, 50*ms, PatternFor(KindSuccess)[0], "PatternFor must return a copy")
}

func TestParseKind(t *testing.T) {
	for _, k := range []Kind{KindSuccess, KindError, KindFocus, KindActivation, KindListening} {
		got, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	_, err := ParseKind("applause")
	assert.Error(t, err)
}

func TestPulseFansOutPerModality(t *testing.T) {
	audio, haptic := &Recorder{}, &Recorder{}
	p := NewPulser(DefaultConfig(),
		WithEmitter(ModalityAudio, audio),
		WithEmitter(ModalityHaptic, haptic),
		WithLogger(logging.Discard()))

	p.Pulse(context.Background(), KindFocus)

	require.Len(t, audio.Requests(), 1)
	require.Len(t, haptic.Requests(), 1)
	assert.Equal(t, ModalityAudio, audio.Requests()[0].Modality)
	assert.Equal(t, 660.0, audio.Requests()[0].Tone.Frequency)
	assert.Equal(t, []time.Duration{10 * time.Millisecond}, haptic.Requests()[0].Pattern)
}

func TestPulseRespectsDisabledModality(t *testing.T) {
	audio, haptic := &Recorder{}, &Recorder{}
	cfg := DefaultConfig()
	cfg.Audio = false
	p := NewPulser(cfg, WithEmitter(ModalityAudio, audio), WithEmitter(ModalityHaptic, haptic))

	p.Pulse(context.Background(), KindSuccess)
	assert.Empty(t, audio.Requests())
	assert.Equal(t, []Kind{KindSuccess}, haptic.Kinds())

	cfg.Audio = true
	cfg.Haptic = false
	p.SetConfig(cfg)
	p.Pulse(context.Background(), KindError)
	assert.Equal(t, []Kind{KindError}, audio.Kinds())
	assert.Len(t, haptic.Requests(), 1)
}

func TestPulseRateLimit(t *testing.T) {
	clock := timing.NewManualClock(epoch)
	rec := &Recorder{}
	m := metrics.New("test", prometheus.NewRegistry())
	p := NewPulser(Config{Haptic: true, MaxPulsesPerSecond: 2, Burst: 2},
		WithEmitter(ModalityHaptic, rec),
		WithClock(clock),
		WithMetrics(m),
		WithLogger(logging.Discard()))

	for i := 0; i < 5; i++ {
		p.Pulse(context.Background(), KindFocus)
	}
	assert.Len(t, rec.Requests(), 2)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.FeedbackDroppedTotal))

	clock.Advance(time.Second)
	p.Pulse(context.Background(), KindFocus)
	assert.Len(t, rec.Requests(), 3)
}

func TestPulseRateLimitSparesErrors(t *testing.T) {
	clock := timing.NewManualClock(epoch)
	rec := &Recorder{}
	p := NewPulser(Config{Haptic: true, MaxPulsesPerSecond: 1, Burst: 1},
		WithEmitter(ModalityHaptic, rec),
		WithClock(clock),
		WithLogger(logging.Discard()))

	p.Pulse(context.Background(), KindFocus)
	p.Pulse(context.Background(), KindFocus)
	p.Pulse(context.Background(), KindError)
	p.Pulse(context.Background(), KindError)
	assert.Equal(t, []Kind{KindFocus, KindError, KindError}, rec.Kinds())
}

func TestDefaultConfigIsUnlimited(t *testing.T) {
	rec := &Recorder{}
	p := NewPulser(DefaultConfig(), WithEmitter(ModalityHaptic, rec), WithLogger(logging.Discard()))
	for i := 0; i < 50; i++ {
		p.Pulse(context.Background(), KindFocus)
	}
	assert.Len(t, rec.Requests(), 50)
}

func TestPulseSwallowsEmitterFailures(t *testing.T) {
	m := metrics.New("test", prometheus.NewRegistry())
	rec := &Recorder{}
	p := NewPulser(DefaultConfig(),
		WithEmitter(ModalityAudio, EmitterFunc(func(context.Context, Request) error {
			panic("speaker on fire")
		})),
		WithEmitter(ModalityHaptic, rec),
		WithMetrics(m),
		WithLogger(logging.Discard()))

	assert.NotPanics(t, func() { p.Pulse(context.Background(), KindActivation) })
	assert.Equal(t, []Kind{KindActivation}, rec.Kinds())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CallbackFailuresTotal.WithLabelValues("feedback")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FeedbackPulsesTotal.WithLabelValues("activation", "haptic")))
}

func TestNilPulserIsNoop(t *testing.T) {
	var p *Pulser
	assert.NotPanics(t, func() {
		p.Pulse(context.Background(), KindSuccess)
		p.SetConfig(DefaultConfig())
	})
}

func TestRecorderReset(t *testing.T) {
	r := &Recorder{}
	require.NoError(t, r.Emit(context.Background(), NewRequest(KindError, ModalityAudio)))
	r.Reset()
	assert.Empty(t, r.Kinds())
}

func TestParseSink(t *testing.T) {
	s, err := ParseSink("DBUS")
	require.NoError(t, err)
	assert.Equal(t, SinkDBus, s)

	s, err = ParseSink("")
	require.NoError(t, err)
	assert.Equal(t, SinkLog, s)

	_, err = ParseSink("speaker")
	assert.Error(t, err)
}

func TestOpenSinkLogAndNone(t *testing.T) {
	e, err := OpenSink(SinkLog, logging.Discard())
	require.NoError(t, err)
	assert.Len(t, e.Options(), 2)
	assert.NoError(t, e.Close())

	e, err = OpenSink(SinkNone, nil)
	require.NoError(t, err)
	assert.Empty(t, e.Options())
}

// fakeNotifications records Notify calls in place of a bus object.
type fakeNotifications struct {
	dbus.BusObject
	method string
	args   []interface{}
	err    error
}

func (f *fakeNotifications) CallWithContext(_ context.Context, method string, _ dbus.Flags, args ...interface{}) *dbus.Call {
	f.method = method
	f.args = args
	return &dbus.Call{Method: method, Args: args, Err: f.err}
}

func TestNotifyEmitterSendsSoundHint(t *testing.T) {
	bus := &fakeNotifications{}
	e := NewNotifyEmitter(bus)

	require.NoError(t, e.Emit(context.Background(), NewRequest(KindError, ModalityAudio)))
	assert.Equal(t, "org.freedesktop.Notifications.Notify", bus.method)
	require.Len(t, bus.args, 8)
	assert.Equal(t, "error", bus.args[3])

	hints, ok := bus.args[6].(map[string]dbus.Variant)
	require.True(t, ok)
	assert.Equal(t, "dialog-error", hints["sound-name"].Value())
	assert.Equal(t, int32(250), bus.args[7])
}

func TestNotifyEmitterIgnoresHaptic(t *testing.T) {
	bus := &fakeNotifications{}
	e := NewNotifyEmitter(bus)
	require.NoError(t, e.Emit(context.Background(), NewRequest(KindSuccess, ModalityHaptic)))
	assert.Empty(t, bus.method)
}

func TestNotifyEmitterWrapsBusError(t *testing.T) {
	busErr := errors.New("no notification daemon")
	e := NewNotifyEmitter(&fakeNotifications{err: busErr})
	err := e.Emit(context.Background(), NewRequest(KindFocus, ModalityAudio))
	assert.ErrorIs(t, err, busErr)
	assert.NoError(t, e.Close())
}
