package input

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"inputkit/internal/config"
	"inputkit/internal/feedback"
	"inputkit/internal/focus"
	"inputkit/internal/geom"
	"inputkit/internal/gesture"
	"inputkit/internal/logging"
	"inputkit/internal/metrics"
	"inputkit/internal/timing"
	"inputkit/internal/voice"
)

var epoch = time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)

const ms = time.Millisecond

type hubHarness struct {
	hub    *Hub
	clock  *timing.ManualClock
	pulses *feedback.Recorder
	events []gesture.Event
}

func newHubHarness(t *testing.T, cfg *config.Config, opts ...Option) *hubHarness {
	t.Helper()
	h := &hubHarness{
		clock:  timing.NewManualClock(epoch),
		pulses: &feedback.Recorder{},
	}
	opts = append([]Option{
		WithClock(h.clock),
		WithLogger(logging.Discard()),
		WithEmitter(feedback.ModalityAudio, h.pulses),
	}, opts...)

	hub, err := NewHub(cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(hub.Dispose)
	h.hub = hub

	_, err = hub.Surface("canvas", func(ev gesture.Event) { h.events = append(h.events, ev) })
	require.NoError(t, err)
	return h
}

func (h *hubHarness) pointer(kind gesture.PointerKind, id gesture.PointerID, x, y float64) {
	h.hub.HandlePointer("canvas", gesture.PointerEvent{
		ID:       id,
		Kind:     kind,
		Position: geom.Pt(x, y),
		Time:     h.clock.Now(),
	})
}

func (h *hubHarness) kinds() []gesture.Kind {
	var out []gesture.Kind
	for _, ev := range h.events {
		out = append(out, ev.Kind)
	}
	return out
}

// =============================================================================
// Construction
// =============================================================================

func TestNewHubRejectsInvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Pinch.MinScale = 0

	_, err := NewHub(cfg, WithLogger(logging.Discard()))
	require.Error(t, err)
	assert.True(t, errors.Is(err, config.ErrInvalidConfig))
}

func TestNewHubDefaults(t *testing.T) {
	hub, err := NewHub(nil, WithLogger(logging.Discard()))
	require.NoError(t, err)
	defer hub.Dispose()

	assert.NotNil(t, hub.Metrics())
	assert.Equal(t, config.DefaultConfig(), hub.Config())
}

func TestNewHubMetricsDisabled(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Metrics.Enabled = false

	hub, err := NewHub(cfg, WithLogger(logging.Discard()))
	require.NoError(t, err)
	defer hub.Dispose()
	assert.Nil(t, hub.Metrics())
}

func TestNewHubFallsBackToLogSink(t *testing.T) {
	t.Setenv("DBUS_SESSION_BUS_ADDRESS", "unix:path=/nonexistent/inputkit-test-bus")

	cfg := config.DefaultConfig()
	cfg.Feedback.Sink = "dbus"
	hub, err := NewHub(cfg, WithLogger(logging.Discard()))
	require.NoError(t, err)
	defer hub.Dispose()

	assert.Equal(t, feedback.SinkLog, hub.sinkName)
}

// =============================================================================
// Routing
// =============================================================================

func TestHubRoutesPointerToSurface(t *testing.T) {
	h := newHubHarness(t, nil)

	h.pointer(gesture.PointerPress, 1, 40, 40)
	h.clock.Advance(60 * ms)
	h.pointer(gesture.PointerRelease, 1, 41, 40)
	h.clock.Advance(time.Second)

	assert.Equal(t, []gesture.Kind{gesture.KindTap}, h.kinds())
	assert.Equal(t, uint64(1), h.hub.Stats().Pointer)
	assert.Equal(t, epoch.Add(60*ms), h.events[0].Time)
}

func TestHubUnknownSurface(t *testing.T) {
	h := newHubHarness(t, nil)
	assert.False(t, h.hub.HandlePointer("missing", gesture.PointerEvent{Kind: gesture.PointerPress}))
	assert.Equal(t, []string{"canvas"}, h.hub.Surfaces())
}

func TestHubSurfaceReplacement(t *testing.T) {
	h := newHubHarness(t, nil)

	h.pointer(gesture.PointerPress, 1, 0, 0)

	var replaced []gesture.Event
	_, err := h.hub.Surface("canvas", func(ev gesture.Event) { replaced = append(replaced, ev) })
	require.NoError(t, err)

	// the old surface's long-press timer was stopped with it
	h.clock.Advance(time.Second)
	assert.Empty(t, h.events)
	assert.Empty(t, replaced)
	assert.Equal(t, 0, h.clock.Pending())
}

func TestHubPinchAcrossTwoPointers(t *testing.T) {
	h := newHubHarness(t, nil)

	h.pointer(gesture.PointerPress, 1, 100, 100)
	h.pointer(gesture.PointerPress, 2, 200, 100)
	h.pointer(gesture.PointerMove, 2, 300, 100)
	h.pointer(gesture.PointerRelease, 2, 300, 100)
	h.pointer(gesture.PointerRelease, 1, 100, 100)
	h.clock.Advance(time.Second)

	require.Equal(t, []gesture.Kind{gesture.KindPinch}, h.kinds())
	assert.InDelta(t, 2.0, h.events[0].Scale, 1e-9)
}

func TestHubKeyboardFocus(t *testing.T) {
	h := newHubHarness(t, nil)
	activated := 0
	for _, el := range []*focus.Static{
		{Name: "a", Rect: geom.RectAround(geom.Pt(50, 50), 20, 20)},
		{Name: "b", Rect: geom.RectAround(geom.Pt(150, 50), 20, 20), OnActivate: func() error {
			activated++
			return nil
		}},
	} {
		_, err := h.hub.Regions().Register(el)
		require.NoError(t, err)
	}

	assert.True(t, h.hub.HandleKey(focus.KeyEvent{Key: focus.KeyTab}))
	assert.True(t, h.hub.HandleKey(focus.KeyEvent{Key: focus.KeyRight}))
	cur, ok := h.hub.Navigator().Current()
	require.True(t, ok)
	assert.Equal(t, "b", cur.ID)

	assert.True(t, h.hub.HandleKey(focus.KeyEvent{Key: focus.KeyEnter}))
	assert.Equal(t, 1, activated)
	assert.Equal(t, []feedback.Kind{
		feedback.KindFocus, feedback.KindFocus, feedback.KindActivation,
	}, h.pulses.Kinds())

	assert.False(t, h.hub.HandleKey(focus.KeyEvent{Key: "F5"}))
	assert.Equal(t, uint64(3), h.hub.Stats().Keyboard)
}

func TestHubDefaultConfigDeliversEveryPulse(t *testing.T) {
	h := newHubHarness(t, config.DefaultConfig())
	for i := 0; i < 8; i++ {
		_, err := h.hub.Regions().Register(&focus.Static{
			Name: fmt.Sprintf("r%d", i),
			Rect: geom.RectAround(geom.Pt(float64(50+100*i), 50), 20, 20),
		})
		require.NoError(t, err)
	}
	h.hub.Commands().MustRegister(voice.Command{Phrase: "explode", Action: func() error {
		return errors.New("boom")
	}})

	for i := 0; i < 7; i++ {
		require.True(t, h.hub.HandleKey(focus.KeyEvent{Key: focus.KeyTab}))
	}
	h.hub.HandleTranscript(voice.Segment{Text: "explode", Final: true})

	counts := map[feedback.Kind]int{}
	for _, k := range h.pulses.Kinds() {
		counts[k]++
	}
	assert.Equal(t, 7, counts[feedback.KindFocus])
	assert.Equal(t, 1, counts[feedback.KindError])
}

func TestHubDwellFocus(t *testing.T) {
	h := newHubHarness(t, nil)
	_, err := h.hub.Regions().Register(&focus.Static{Name: "help", Rect: geom.Rect{X: 0, Y: 0, Width: 40, Height: 40}})
	require.NoError(t, err)

	h.hub.HandleHover(geom.Pt(10, 10))
	h.clock.Advance(799 * ms)
	_, ok := h.hub.Navigator().Current()
	assert.False(t, ok)

	h.clock.Advance(ms)
	cur, ok := h.hub.Navigator().Current()
	require.True(t, ok)
	assert.Equal(t, "help", cur.ID)

	h.hub.HandleHover(geom.Pt(500, 500))
	h.hub.HandleLeave()
	assert.Equal(t, 0, h.clock.Pending())
}

func TestHubVoiceCommandsFromConfig(t *testing.T) {
	created := 0
	cfg := config.DefaultConfig()
	cfg.Voice.Commands = []voice.Declaration{
		{Phrase: "create new case", Category: "cases", Action: "case.create"},
		{Phrase: "launch rockets", Action: "rockets"},
	}
	h := newHubHarness(t, cfg, WithActions(map[string]voice.Action{
		"case.create": func() error { created++; return nil },
	}))

	assert.Equal(t, 1, h.hub.Commands().Len())

	phrase, ok := h.hub.HandleTranscript(voice.Segment{Text: "please Create New Case now", Final: true})
	require.True(t, ok)
	assert.Equal(t, "create new case", phrase)
	assert.Equal(t, 1, created)

	_, ok = h.hub.HandleTranscript(voice.Segment{Text: "launch rockets", Final: true})
	assert.False(t, ok)
	assert.Equal(t, uint64(1), h.hub.Stats().Voice)
}

func TestHubListen(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	h := newHubHarness(t, nil)
	heard := 0
	h.hub.Commands().MustRegister(voice.Command{Phrase: "next page", Action: func() error {
		heard++
		return nil
	}})

	rec := voice.NewScriptedRecognizer(
		voice.Segment{Text: "next", Final: false},
		voice.Segment{Text: "next page", Final: true},
	)
	require.NoError(t, h.hub.Listen(context.Background(), rec))
	assert.Equal(t, 1, heard)
	assert.Contains(t, h.pulses.Kinds(), feedback.KindListening)
}

// =============================================================================
// Statistics
// =============================================================================

func TestHubStatsCountMethodSwitches(t *testing.T) {
	h := newHubHarness(t, nil)
	h.hub.Commands().MustRegister(voice.Command{Phrase: "help", Action: func() error { return nil }})
	_, err := h.hub.Regions().Register(&focus.Static{Name: "a", Rect: geom.Rect{Width: 10, Height: 10}})
	require.NoError(t, err)

	h.pointer(gesture.PointerPress, 1, 0, 0)
	h.pointer(gesture.PointerRelease, 1, 0, 0)
	h.clock.Advance(time.Second)
	h.hub.HandleKey(focus.KeyEvent{Key: focus.KeyTab})
	h.hub.HandleTranscript(voice.Segment{Text: "help", Final: true})
	h.hub.HandleTranscript(voice.Segment{Text: "help", Final: true})

	s := h.hub.Stats()
	assert.Equal(t, uint64(4), s.Total)
	assert.Equal(t, 2, s.MethodSwitches)
	assert.Equal(t, "voice", s.LastMethod)
	assert.InDelta(t, 25.0, s.PointerPercent, 1e-9)
}

// =============================================================================
// Reconfiguration
// =============================================================================

func TestHubApply(t *testing.T) {
	h := newHubHarness(t, nil)

	cfg := config.DefaultConfig()
	cfg.Gesture.DirectionFilter = "left"
	cfg.Voice.Enabled = false
	cfg.Focus.DwellTimeMs = 200
	require.NoError(t, h.hub.Apply(cfg))

	// a rightward swipe is now filtered out
	h.pointer(gesture.PointerPress, 1, 0, 0)
	h.clock.Advance(100 * ms)
	h.pointer(gesture.PointerMove, 1, 120, 0)
	h.pointer(gesture.PointerRelease, 1, 120, 0)
	h.clock.Advance(time.Second)
	assert.Empty(t, h.events)

	h.pointer(gesture.PointerPress, 1, 120, 0)
	h.clock.Advance(100 * ms)
	h.pointer(gesture.PointerMove, 1, 0, 0)
	h.pointer(gesture.PointerRelease, 1, 0, 0)
	require.Equal(t, []gesture.Kind{gesture.KindSwipe}, h.kinds())
	assert.Equal(t, gesture.DirectionLeft, h.events[0].Direction)

	h.hub.Commands().MustRegister(voice.Command{Phrase: "help", Action: func() error { return nil }})
	_, ok := h.hub.HandleTranscript(voice.Segment{Text: "help", Final: true})
	assert.False(t, ok)

	assert.Equal(t, "left", h.hub.Config().Gesture.DirectionFilter)
}

func TestHubApplyRejectsInvalid(t *testing.T) {
	h := newHubHarness(t, nil)
	bad := config.DefaultConfig()
	bad.Gesture.TapThresholdPx = -1

	assert.Error(t, h.hub.Apply(bad))
	assert.Equal(t, config.DefaultConfig(), h.hub.Config())
}

func TestHubApplyRebindsCommands(t *testing.T) {
	actions := map[string]voice.Action{
		"home": func() error { return nil },
		"back": func() error { return nil },
	}
	cfg := config.DefaultConfig()
	cfg.Voice.Commands = []voice.Declaration{{Phrase: "go home", Action: "home"}}
	h := newHubHarness(t, cfg, WithActions(actions))
	h.hub.Commands().MustRegister(voice.Command{Phrase: "help", Action: func() error { return nil }})

	next := config.DefaultConfig()
	next.Voice.Commands = []voice.Declaration{{Phrase: "go back", Action: "back"}}
	require.NoError(t, h.hub.Apply(next))

	var phrases []string
	for _, c := range h.hub.Commands().Commands() {
		phrases = append(phrases, c.Phrase)
	}
	assert.ElementsMatch(t, []string{"help", "go back"}, phrases)
}

func TestHubApplySwapsSink(t *testing.T) {
	hub, err := NewHub(nil, WithLogger(logging.Discard()), WithClock(timing.NewManualClock(epoch)))
	require.NoError(t, err)
	defer hub.Dispose()
	require.Equal(t, feedback.SinkLog, hub.sinkName)

	cfg := config.DefaultConfig()
	cfg.Feedback.Sink = "none"
	require.NoError(t, hub.Apply(cfg))
	assert.Equal(t, feedback.SinkNone, hub.sinkName)
}

func TestHubWatchAppliesReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, config.SaveConfig(config.DefaultConfig(), path))

	loader := config.NewLoader(path, nil)
	defer loader.Close()
	_, err := loader.Load()
	require.NoError(t, err)

	h := newHubHarness(t, nil)
	h.hub.Watch(loader)

	applied := make(chan struct{}, 1)
	loader.OnChange(func(*config.Config) { applied <- struct{}{} })
	require.NoError(t, loader.Watch())

	cfg := config.DefaultConfig()
	cfg.Gesture.SwipeThresholdPx = 90
	require.NoError(t, config.SaveConfig(cfg, path))

	select {
	case <-applied:
	case <-time.After(5 * time.Second):
		t.Fatal("reload not observed")
	}
	assert.Equal(t, 90.0, h.hub.Config().Gesture.SwipeThresholdPx)
}

// =============================================================================
// Teardown
// =============================================================================

func TestHubDispose(t *testing.T) {
	h := newHubHarness(t, nil)
	_, err := h.hub.Regions().Register(&focus.Static{Name: "a", Rect: geom.Rect{Width: 10, Height: 10}})
	require.NoError(t, err)

	h.pointer(gesture.PointerPress, 1, 5, 5)
	h.hub.HandleHover(geom.Pt(5, 5))
	require.Positive(t, h.clock.Pending())

	h.hub.Dispose()
	h.hub.Dispose()

	assert.Equal(t, 0, h.clock.Pending())
	h.clock.Advance(time.Hour)
	assert.Empty(t, h.events)

	assert.False(t, h.hub.HandlePointer("canvas", gesture.PointerEvent{Kind: gesture.PointerPress}))
	assert.False(t, h.hub.HandleKey(focus.KeyEvent{Key: focus.KeyTab}))
	_, err = h.hub.Surface("other", nil)
	assert.ErrorIs(t, err, ErrDisposed)
	assert.ErrorIs(t, h.hub.Apply(config.DefaultConfig()), ErrDisposed)
	assert.ErrorIs(t, h.hub.Listen(context.Background(), nil), ErrDisposed)
}

func TestHubDisposeWithSystemClockLeavesNoGoroutines(t *testing.T) {
	defer goleak.VerifyNone(t)

	hub, err := NewHub(nil, WithLogger(logging.Discard()))
	require.NoError(t, err)
	_, err = hub.Surface("canvas", nil)
	require.NoError(t, err)
	_, err = hub.Regions().Register(&focus.Static{Name: "a", Rect: geom.Rect{Width: 10, Height: 10}})
	require.NoError(t, err)

	hub.HandlePointer("canvas", gesture.PointerEvent{ID: 1, Kind: gesture.PointerPress, Time: time.Now()})
	hub.HandleHover(geom.Pt(5, 5))
	hub.Dispose()
}

func TestHubMetrics(t *testing.T) {
	m := metrics.New("hubtest", nil)
	h := newHubHarness(t, nil, WithMetrics(m))

	h.pointer(gesture.PointerPress, 1, 0, 0)
	h.pointer(gesture.PointerRelease, 1, 0, 0)
	h.clock.Advance(time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.GesturesTotal.WithLabelValues("tap")))
	assert.Same(t, m, h.hub.Metrics())
}
