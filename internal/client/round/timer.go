package round

import (
	"context"
	"sync"
	"time"
)

// Flag thresholds in seconds.
const (
	warningThreshold = 10
	urgentThreshold  = 5
)

// Countdown derives remaining whole seconds from a target expiry at
// one-second resolution, independent of any network state. It fires the
// expiry callback exactly once per target, however many ticks land on or
// after zero.
//
// A nil target means "no active expiry": remaining is 0 but none of the
// flags report true, so callers must check HasTarget separately.
type Countdown struct {
	mu       sync.Mutex
	target   *time.Time
	fired    bool
	onExpire func()
	now      func() time.Time
	stop     chan struct{}
}

func NewCountdown(onExpire func()) *Countdown {
	if onExpire == nil {
		onExpire = func() {}
	}
	return &Countdown{onExpire: onExpire, now: time.Now}
}

// SetTarget changes the expiry target and recalculates immediately. The
// exactly-once guard resets so a new target can fire again.
func (c *Countdown) SetTarget(target *time.Time) {
	c.mu.Lock()
	c.target = target
	c.fired = false
	c.mu.Unlock()
	c.tick()
}

// Run ticks every second until ctx is canceled. It ticks once immediately
// so a target that is already past fires without waiting a second.
func (c *Countdown) Run(ctx context.Context) {
	c.tick()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.tick()
		}
	}
}

// Remaining returns max(0, floor((target − now) / 1s)), or 0 without a
// target.
func (c *Countdown) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remainingLocked()
}

// HasTarget reports whether an expiry target is set.
func (c *Countdown) HasTarget() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.target != nil
}

// IsExpired reports whether the target exists and has been reached.
func (c *Countdown) IsExpired() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.target != nil && c.remainingLocked() == 0
}

// IsWarning reports remaining ≤ 10s (with a target set).
func (c *Countdown) IsWarning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.target != nil && c.remainingLocked() <= warningThreshold
}

// IsUrgent reports remaining ≤ 5s (with a target set).
func (c *Countdown) IsUrgent() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.target != nil && c.remainingLocked() <= urgentThreshold
}

func (c *Countdown) remainingLocked() int {
	if c.target == nil {
		return 0
	}
	secs := int(c.target.Sub(c.now()) / time.Second)
	if secs < 0 {
		return 0
	}
	return secs
}

func (c *Countdown) tick() {
	c.mu.Lock()
	fire := c.target != nil && c.remainingLocked() == 0 && !c.fired
	if fire {
		c.fired = true
	}
	cb := c.onExpire
	c.mu.Unlock()

	if fire {
		cb()
	}
}
