package mocks

import (
	"sync"
	"time"

	"github.com/mcoot/gameroom-go/dependencies/clock"
)

// MockClock is a mock implementation of Clock for testing. Time only moves
// when the test calls Advance or Set, and timers scheduled with AfterFunc
// fire synchronously inside Advance once their deadline is reached.
type MockClock struct {
	mu      sync.Mutex
	current time.Time
	timers  []*MockTimer
}

// Ensure MockClock implements Clock
var _ clock.Clock = (*MockClock)(nil)

// NewMockClock creates a MockClock set to the given time
func NewMockClock(t time.Time) *MockClock {
	return &MockClock{current: t}
}

// Now returns the mocked current time
func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// AfterFunc registers f to fire when the clock is advanced past d from now
func (c *MockClock) AfterFunc(d time.Duration, f func()) clock.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &MockTimer{
		clock:    c,
		deadline: c.current.Add(d),
		fn:       f,
	}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves the clock forward by the given duration, firing every due
// timer in deadline order. Callbacks run on the caller's goroutine with the
// clock set to their deadline, so a callback that reads Now sees the moment
// it was scheduled for.
func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.current.Add(d)
	for {
		next := c.popDueLocked(target)
		if next == nil {
			break
		}
		if next.deadline.After(c.current) {
			c.current = next.deadline
		}
		fn := next.fn
		c.mu.Unlock()
		fn()
		c.mu.Lock()
	}
	c.current = target
	c.mu.Unlock()
}

// Set jumps the clock to the given time without firing any timers
func (c *MockClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = t
}

// TimerCount returns the number of pending timers
func (c *MockClock) TimerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

// popDueLocked removes and returns the earliest timer due at or before
// target, or nil if none is due
func (c *MockClock) popDueLocked(target time.Time) *MockTimer {
	idx := -1
	for i, t := range c.timers {
		if t.deadline.After(target) {
			continue
		}
		if idx == -1 || t.deadline.Before(c.timers[idx].deadline) {
			idx = i
		}
	}
	if idx == -1 {
		return nil
	}
	t := c.timers[idx]
	t.fired = true
	c.timers = append(c.timers[:idx], c.timers[idx+1:]...)
	return t
}

// MockTimer is a timer scheduled on a MockClock
type MockTimer struct {
	clock    *MockClock
	deadline time.Time
	fn       func()
	fired    bool
	stopped  bool
}

// Ensure MockTimer implements Timer
var _ clock.Timer = (*MockTimer)(nil)

// Stop cancels the timer, reporting false if it already fired or was stopped
func (t *MockTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	for i, pending := range t.clock.timers {
		if pending == t {
			t.clock.timers = append(t.clock.timers[:i], t.clock.timers[i+1:]...)
			break
		}
	}
	return true
}
