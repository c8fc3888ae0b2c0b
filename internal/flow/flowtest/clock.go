// Package flowtest provides a manual clock for driving flow simulators in
// tests one timer at a time.
package flowtest

import (
	"sync"
	"testing"
	"time"

	"triage/internal/flow"
)

// Clock hands every timer it creates to the test. Timers only fire when the
// test calls Fire.
type Clock struct {
	created chan *Timer
}

// NewClock returns a manual clock.
func NewClock() *Clock {
	return &Clock{created: make(chan *Timer, 128)}
}

// NewTimer implements flow.Clock.
func (c *Clock) NewTimer(d time.Duration) flow.Timer {
	t := &Timer{d: d, ch: make(chan time.Time, 1)}
	c.created <- t
	return t
}

// Next waits for the next timer the simulator creates.
func (c *Clock) Next(tb testing.TB) *Timer {
	tb.Helper()
	select {
	case t := <-c.created:
		return t
	case <-time.After(2 * time.Second):
		tb.Fatalf("flowtest: no timer created")
		return nil
	}
}

// Pending reports whether a created timer is waiting to be collected.
func (c *Clock) Pending() bool {
	return len(c.created) > 0
}

// Timer is a manually fired timer.
type Timer struct {
	d  time.Duration
	ch chan time.Time

	mu      sync.Mutex
	stopped bool
	fired   bool
}

// Duration returns the delay the timer was created with.
func (t *Timer) Duration() time.Duration { return t.d }

func (t *Timer) C() <-chan time.Time { return t.ch }

func (t *Timer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	wasActive := !t.stopped && !t.fired
	t.stopped = true
	return wasActive
}

// Stopped reports whether Stop was called.
func (t *Timer) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

// Fire delivers the tick unless the timer was stopped or already fired.
func (t *Timer) Fire() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.fired = true
	t.ch <- time.Now()
	return true
}
