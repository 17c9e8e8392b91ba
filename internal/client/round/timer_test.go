package round

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeClock lets tests move the countdown's idea of "now" by hand.
type fakeClock struct {
	t time.Time
}

func (f *fakeClock) now() time.Time          { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func newTestCountdown(onExpire func()) (*Countdown, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	c := NewCountdown(onExpire)
	c.now = clock.now
	return c, clock
}

func TestCountdown_NilTarget(t *testing.T) {
	c, _ := newTestCountdown(nil)

	require.Equal(t, 0, c.Remaining())
	require.False(t, c.HasTarget())
	require.False(t, c.IsExpired())
	require.False(t, c.IsWarning())
	require.False(t, c.IsUrgent())
}

func TestCountdown_FlagThresholds(t *testing.T) {
	c, clock := newTestCountdown(nil)

	target := clock.t.Add(12 * time.Second)
	c.SetTarget(&target)

	require.Equal(t, 12, c.Remaining())
	require.False(t, c.IsWarning())
	require.False(t, c.IsUrgent())

	clock.advance(2 * time.Second) // 10s left
	require.Equal(t, 10, c.Remaining())
	require.True(t, c.IsWarning())
	require.False(t, c.IsUrgent())

	clock.advance(5 * time.Second) // 5s left
	require.True(t, c.IsWarning())
	require.True(t, c.IsUrgent())
	require.False(t, c.IsExpired())

	clock.advance(5 * time.Second) // 0s left
	require.Equal(t, 0, c.Remaining())
	require.True(t, c.IsExpired())
}

func TestCountdown_ExpiryCallbackFiresExactlyOnce(t *testing.T) {
	var fired atomic.Int32
	c, clock := newTestCountdown(func() { fired.Add(1) })

	target := clock.t.Add(2 * time.Second)
	c.SetTarget(&target)
	require.Equal(t, int32(0), fired.Load())

	clock.advance(2 * time.Second)
	// Several ticks land on/after zero; only the first may fire.
	c.tick()
	c.tick()
	clock.advance(time.Second)
	c.tick()

	require.Equal(t, int32(1), fired.Load())
}

func TestCountdown_NewTargetRearmsCallback(t *testing.T) {
	var fired atomic.Int32
	c, clock := newTestCountdown(func() { fired.Add(1) })

	target := clock.t.Add(time.Second)
	c.SetTarget(&target)
	clock.advance(time.Second)
	c.tick()
	require.Equal(t, int32(1), fired.Load())

	next := clock.t.Add(time.Second)
	c.SetTarget(&next)
	clock.advance(time.Second)
	c.tick()
	require.Equal(t, int32(2), fired.Load())
}

func TestCountdown_PastTargetFiresOnSet(t *testing.T) {
	var fired atomic.Int32
	c, clock := newTestCountdown(func() { fired.Add(1) })

	target := clock.t.Add(-time.Second)
	c.SetTarget(&target)

	require.Equal(t, int32(1), fired.Load())
	require.Equal(t, 0, c.Remaining())
	require.True(t, c.IsExpired())
}
