package clock

import "time"

// Clock provides time operations that can be mocked for testing
type Clock interface {
	// Now returns the current time
	Now() time.Time

	// AfterFunc schedules f to run in its own goroutine once d has
	// elapsed, and returns a handle for cancelling the call
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a handle to a pending AfterFunc call
type Timer interface {
	// Stop cancels the pending call. It returns false if the call has
	// already fired or been stopped.
	Stop() bool
}

// RealClock implements Clock using the system clock
type RealClock struct{}

// New creates a new RealClock
func New() *RealClock {
	return &RealClock{}
}

// Now returns the current time
func (c *RealClock) Now() time.Time {
	return time.Now()
}

// AfterFunc schedules f on a system timer
func (c *RealClock) AfterFunc(d time.Duration, f func()) Timer {
	return realTimer{timer: time.AfterFunc(d, f)}
}

type realTimer struct {
	timer *time.Timer
}

// Stop cancels the underlying system timer
func (t realTimer) Stop() bool {
	return t.timer.Stop()
}
