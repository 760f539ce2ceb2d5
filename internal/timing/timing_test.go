package timing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

var epoch = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func TestManualClockFiresInDeadlineOrder(t *testing.T) {
	c := NewManualClock(epoch)
	var order []string
	c.AfterFunc(30*time.Millisecond, func() { order = append(order, "c") })
	c.AfterFunc(10*time.Millisecond, func() { order = append(order, "a") })
	c.AfterFunc(10*time.Millisecond, func() { order = append(order, "b") })

	c.Advance(20 * time.Millisecond)
	assert.Equal(t, []string{"a", "b"}, order)
	assert.Equal(t, epoch.Add(20*time.Millisecond), c.Now())

	c.Advance(10 * time.Millisecond)
	assert.Equal(t, []string{"a", "b", "c"}, order)
	assert.Equal(t, 0, c.Pending())
}

func TestManualClockNowInsideCallback(t *testing.T) {
	c := NewManualClock(epoch)
	var seen time.Time
	c.AfterFunc(50*time.Millisecond, func() { seen = c.Now() })
	c.Advance(200 * time.Millisecond)
	assert.Equal(t, epoch.Add(50*time.Millisecond), seen)
}

func TestManualClockNestedScheduling(t *testing.T) {
	c := NewManualClock(epoch)
	fired := 0
	c.AfterFunc(10*time.Millisecond, func() {
		fired++
		c.AfterFunc(10*time.Millisecond, func() { fired++ })
	})
	c.Advance(25 * time.Millisecond)
	assert.Equal(t, 2, fired)
}

func TestManualTimerStop(t *testing.T) {
	c := NewManualClock(epoch)
	fired := false
	tm := c.AfterFunc(10*time.Millisecond, func() { fired = true })
	assert.True(t, tm.Stop())
	assert.False(t, tm.Stop())
	c.Advance(time.Second)
	assert.False(t, fired)
}

func TestScopeCloseStopsTimers(t *testing.T) {
	c := NewManualClock(epoch)
	s := NewScope(c)
	fired := 0
	s.AfterFunc(10*time.Millisecond, func() { fired++ })
	s.AfterFunc(20*time.Millisecond, func() { fired++ })
	require.Equal(t, 2, s.Len())

	s.Close()
	assert.True(t, s.Closed())
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, 0, c.Pending())

	s.AfterFunc(time.Millisecond, func() { fired++ })
	c.Advance(time.Second)
	assert.Equal(t, 0, fired)
}

func TestScopeTimerReleasedAfterFiring(t *testing.T) {
	c := NewManualClock(epoch)
	s := NewScope(c)
	tm := s.AfterFunc(10*time.Millisecond, func() {})
	c.Advance(10 * time.Millisecond)
	assert.Equal(t, 0, s.Len())
	assert.False(t, tm.Stop())
}

func TestScopeWithSystemClockLeavesNoGoroutines(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := NewScope(nil)
	done := make(chan struct{})
	s.AfterFunc(time.Millisecond, func() { close(done) })
	s.AfterFunc(time.Hour, func() { t.Error("should have been stopped") })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timer never fired")
	}
	s.Close()
}

func TestDebouncer(t *testing.T) {
	c := NewManualClock(epoch)
	d := NewDebouncer(NewScope(c), 100*time.Millisecond)
	calls := 0

	d.Trigger(func() { calls++ })
	c.Advance(60 * time.Millisecond)
	d.Trigger(func() { calls++ })
	c.Advance(60 * time.Millisecond)
	assert.Equal(t, 0, calls)

	c.Advance(40 * time.Millisecond)
	assert.Equal(t, 1, calls)

	d.Trigger(func() { calls++ })
	assert.True(t, d.Stop())
	c.Advance(time.Second)
	assert.Equal(t, 1, calls)
}
