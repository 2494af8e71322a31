// Package testutil provides deterministic time and id sources for tests and
// the scenario harness.
package testutil

import (
	"sync"
	"time"
)

// Epoch is the default starting instant for StepClock.
var Epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// StepClock is a deterministic clock for tests.
//
// Each call to Now advances the clock by Step and returns the new instant,
// so consecutive outbox entries and activity rows get strictly increasing
// timestamps. Set can pin the clock to an instant to force timestamp ties.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type StepClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

// NewStepClock creates a clock positioned at start that advances by step.
//
// A zero start uses Epoch. A zero step uses one millisecond. The first call
// to Now returns start+step.
func NewStepClock(start time.Time, step time.Duration) *StepClock {
	if start.IsZero() {
		start = Epoch
	}
	if step == 0 {
		step = time.Millisecond
	}
	return &StepClock{now: start.UTC(), step: step}
}

// Now advances the clock by one step and returns the new instant.
func (c *StepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(c.step)
	return c.now
}

// Current returns the last instant without advancing.
func (c *StepClock) Current() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to t. The next Now returns t+step.
func (c *StepClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t.UTC()
}

// Advance moves the clock forward by d without consuming a step.
func (c *StepClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// FrozenClock always returns the same instant.
type FrozenClock struct {
	At time.Time
}

// Now returns the frozen instant.
func (c FrozenClock) Now() time.Time {
	return c.At.UTC()
}
