package gesture

import (
	"context"
	"math"
	"sync"
	"time"

	"inputkit/internal/feedback"
	"inputkit/internal/geom"
	"inputkit/internal/logging"
	"inputkit/internal/timing"
)

// Config tunes the classifier.
type Config struct {
	// TapThreshold is the movement tolerance for a tap, in pixels.
	TapThreshold float64
	// LongPressTimeout is how long a stationary touch must be held.
	LongPressTimeout time.Duration
	// DoubleTapWindow is the maximum gap between two taps.
	DoubleTapWindow time.Duration
	// TapMaxDuration is the maximum contact time for a tap.
	TapMaxDuration time.Duration
	// SwipeThreshold is the minimum travel for a swipe, in pixels.
	SwipeThreshold float64
	// DirectionFilter restricts reported swipes.
	DirectionFilter DirectionFilter
	// LongPressMoveTolerance is how far a touch may wander before the
	// long-press timer is cancelled. Zero means any move cancels it.
	LongPressMoveTolerance float64
}

// DefaultConfig returns the default classifier configuration.
func DefaultConfig() Config {
	return Config{
		TapThreshold:     10,
		LongPressTimeout: 500 * time.Millisecond,
		DoubleTapWindow:  300 * time.Millisecond,
		TapMaxDuration:   300 * time.Millisecond,
		SwipeThreshold:   50,
		DirectionFilter:  FilterAny,
	}
}

// normalized fills unset fields with defaults. LongPressMoveTolerance is
// left as given.
func (c Config) normalized() Config {
	d := DefaultConfig()
	if c.TapThreshold <= 0 {
		c.TapThreshold = d.TapThreshold
	}
	if c.LongPressTimeout <= 0 {
		c.LongPressTimeout = d.LongPressTimeout
	}
	if c.DoubleTapWindow <= 0 {
		c.DoubleTapWindow = d.DoubleTapWindow
	}
	if c.TapMaxDuration <= 0 {
		c.TapMaxDuration = d.TapMaxDuration
	}
	if c.SwipeThreshold <= 0 {
		c.SwipeThreshold = d.SwipeThreshold
	}
	if c.DirectionFilter == "" {
		c.DirectionFilter = FilterAny
	}
	if c.LongPressMoveTolerance < 0 {
		c.LongPressMoveTolerance = 0
	}
	return c
}

// Classifier turns the touch-start/move/end stream of a single pointer into
// at most one event per session. Timer callbacks take the same lock as the
// event methods and only act on the session that armed them, so a later
// event always wins over an earlier timer.
type Classifier struct {
	handler Handler
	opts    options
	scope   *timing.Scope

	mu          sync.Mutex
	cfg         Config
	session     *Session
	longPress   timing.Timer
	tapWindow   timing.Timer
	lastTapTime time.Time
	disposed    bool

	// superseded is an armed tap replaced by the session that followed it.
	// It is finished along with that session: merged into a double-tap,
	// cancelled otherwise.
	superseded *Session
}

// NewClassifier creates a Classifier delivering events to handler.
func NewClassifier(cfg Config, handler Handler, opts ...Option) *Classifier {
	o := buildOptions(opts)
	return &Classifier{
		handler: handler,
		opts:    o,
		scope:   timing.NewScope(o.clock),
		cfg:     cfg.normalized(),
	}
}

// Config returns the active configuration.
func (c *Classifier) Config() Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg
}

// UpdateConfig replaces the configuration. Timers already armed keep their
// original deadlines.
func (c *Classifier) UpdateConfig(cfg Config) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg = cfg.normalized()
}

// Session returns a snapshot of the current or most recent session.
func (c *Classifier) Session() (Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return Session{}, false
	}
	return *c.session, true
}

// Start begins a session. A live session, including a tap waiting out the
// double-tap window, ends without emitting.
func (c *Classifier) Start(s Sample) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return
	}
	if prev := c.session; prev != nil && prev.Live() {
		if prev.Phase == PhaseArmed {
			c.supersedeLocked(prev, s.Time)
		} else {
			c.cancelLocked(prev)
		}
	}

	sess := newSession(s)
	if !c.transitionLocked(sess, PhasePending) {
		return
	}
	c.session = sess
	c.opts.metrics.SessionStarted()
	c.longPress = c.scope.AfterFunc(c.cfg.LongPressTimeout, func() {
		c.longPressElapsed(sess)
	})
}

// Move records a new position. It disarms the long-press timer on any
// movement, or on movement beyond LongPressMoveTolerance when that is set.
func (c *Classifier) Move(s Sample) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sess := c.session
	if c.disposed || sess == nil || sess.Phase != PhasePending {
		return
	}
	sess.Last = s
	if c.longPress == nil {
		return
	}
	tol := c.cfg.LongPressMoveTolerance
	if tol <= 0 || geom.Distance(sess.Start.Point(), s.Point()) > tol {
		c.longPress.Stop()
		c.longPress = nil
	}
}

// End finishes the session and classifies it.
func (c *Classifier) End(s Sample) {
	c.mu.Lock()
	ev, ok := c.endLocked(s)
	c.mu.Unlock()
	if ok {
		c.deliver(ev)
	}
}

func (c *Classifier) endLocked(s Sample) (Event, bool) {
	sess := c.session
	if c.disposed || sess == nil || sess.Phase != PhasePending {
		// Resolved by the long-press timer, cancelled, or never started.
		return Event{}, false
	}
	sess.Last = s
	c.stopLongPressLocked()

	start, end := sess.Start.Point(), s.Point()
	dist := geom.Distance(start, end)
	dur := s.Time.Sub(sess.Start.Time)
	if dur < 0 {
		dur = 0
	}

	switch {
	case dist < c.cfg.TapThreshold && dur < c.cfg.TapMaxDuration:
		if !c.lastTapTime.IsZero() && s.Time.Sub(c.lastTapTime) < c.cfg.DoubleTapWindow {
			c.lastTapTime = time.Time{}
			return c.resolveLocked(sess, Event{Kind: KindDoubleTap, Position: end, Time: s.Time})
		}
		c.lastTapTime = s.Time
		if c.transitionLocked(sess, PhaseArmed) {
			c.tapWindow = c.scope.AfterFunc(c.cfg.DoubleTapWindow, func() {
				c.tapWindowElapsed(sess)
			})
		}
		return Event{}, false

	case dist > c.cfg.SwipeThreshold:
		delta := end.Sub(start)
		dir := swipeDirection(delta)
		if !c.cfg.DirectionFilter.Allows(dir) {
			c.cancelLocked(sess)
			return Event{}, false
		}
		ms := math.Max(float64(dur)/float64(time.Millisecond), 1)
		return c.resolveLocked(sess, Event{
			Kind:      KindSwipe,
			Position:  end,
			Time:      s.Time,
			Direction: dir,
			Delta:     delta,
			Velocity:  dist / ms,
		})

	default:
		c.cancelLocked(sess)
		return Event{}, false
	}
}

// swipeDirection picks the axis with the larger magnitude. Ties go to the
// vertical axis.
func swipeDirection(delta geom.Point) Direction {
	if math.Abs(delta.X) > math.Abs(delta.Y) {
		if delta.X > 0 {
			return DirectionRight
		}
		return DirectionLeft
	}
	if delta.Y > 0 {
		return DirectionDown
	}
	return DirectionUp
}

// Cancel abandons the live session without emitting. Used when a second
// pointer comes down or the host cancels the pointer.
func (c *Classifier) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil && c.session.Live() {
		c.cancelLocked(c.session)
	}
	c.lastTapTime = time.Time{}
}

// Dispose cancels every armed timer. Nothing is delivered afterwards.
func (c *Classifier) Dispose() {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	c.disposed = true
	if c.session != nil && c.session.Live() {
		c.cancelLocked(c.session)
	}
	c.settleSupersededLocked(false, c.opts.clock.Now())
	c.mu.Unlock()
	c.scope.Close()
}

func (c *Classifier) longPressElapsed(sess *Session) {
	c.mu.Lock()
	if c.disposed || c.session != sess || sess.Phase != PhasePending {
		c.mu.Unlock()
		return
	}
	c.longPress = nil
	ev, ok := c.resolveLocked(sess, Event{
		Kind:     KindLongPress,
		Position: sess.Last.Point(),
		Time:     sess.Start.Time.Add(c.cfg.LongPressTimeout),
	})
	c.mu.Unlock()
	if ok {
		c.deliver(ev)
	}
}

func (c *Classifier) tapWindowElapsed(sess *Session) {
	c.mu.Lock()
	if c.disposed || c.session != sess || sess.Phase != PhaseArmed {
		c.mu.Unlock()
		return
	}
	c.tapWindow = nil
	c.lastTapTime = time.Time{}
	ev, ok := c.resolveLocked(sess, Event{
		Kind:     KindTap,
		Position: sess.Last.Point(),
		Time:     sess.Last.Time,
	})
	c.mu.Unlock()
	if ok {
		c.deliver(ev)
	}
}

func (c *Classifier) stopLongPressLocked() {
	if c.longPress != nil {
		c.longPress.Stop()
		c.longPress = nil
	}
}

func (c *Classifier) cancelLocked(sess *Session) {
	c.stopLongPressLocked()
	if c.tapWindow != nil {
		c.tapWindow.Stop()
		c.tapWindow = nil
	}
	if c.transitionLocked(sess, PhaseCancelled) {
		c.opts.metrics.SessionFinished(sess.Duration(), true)
	}
	c.settleSupersededLocked(false, sess.Last.Time)
}

// supersedeLocked ends an armed tap without finishing it in metrics until
// the next session's outcome is known.
func (c *Classifier) supersedeLocked(sess *Session, now time.Time) {
	c.settleSupersededLocked(false, now)
	c.stopLongPressLocked()
	if c.tapWindow != nil {
		c.tapWindow.Stop()
		c.tapWindow = nil
	}
	if c.transitionLocked(sess, PhaseCancelled) {
		c.superseded = sess
	}
}

func (c *Classifier) settleSupersededLocked(merged bool, at time.Time) {
	sess := c.superseded
	if sess == nil {
		return
	}
	c.superseded = nil
	c.opts.metrics.SessionFinished(at.Sub(sess.Start.Time), !merged)
}

func (c *Classifier) resolveLocked(sess *Session, ev Event) (Event, bool) {
	if err := sess.resolve(ev.Kind); err != nil {
		c.opts.logger.Error("rejected session transition", "error", err)
		return Event{}, false
	}
	ev.SessionID = sess.ID
	c.opts.metrics.SessionFinished(ev.Time.Sub(sess.Start.Time), false)
	c.settleSupersededLocked(ev.Kind == KindDoubleTap, ev.Time)
	return ev, true
}

func (c *Classifier) transitionLocked(sess *Session, to Phase) bool {
	if err := sess.transition(to); err != nil {
		c.opts.logger.Error("rejected session transition", "error", err)
		return false
	}
	return true
}

func (c *Classifier) isDisposed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disposed
}

// deliver runs the handler outside the lock. A failing handler is logged,
// counted and turned into an error pulse.
func (c *Classifier) deliver(ev Event) {
	if c.isDisposed() {
		return
	}
	c.opts.metrics.Gesture(ev.Kind.String())
	c.opts.logger.Debug("gesture classified", "kind", ev.Kind.String(), "session_id", ev.SessionID)
	deliverEvent(c.handler, ev, c.opts)
}

func deliverEvent(h Handler, ev Event, o options) {
	if h == nil {
		return
	}
	if err := logging.GuardFunc(func() { h(ev) }); err != nil {
		o.logger.CallbackFailed("gesture handler", err, "kind", ev.Kind.String())
		o.metrics.CallbackFailure("gesture")
		o.pulser.Pulse(context.Background(), feedback.KindError)
	}
}
