// Package timeutil provides a testable abstraction over the clock used to
// time list builds.
package timeutil

import (
	"sync"
	"time"
)

// Clock provides the time operations build timing needs.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// Since returns the duration since t.
	Since(t time.Time) time.Duration
}

// RealClock implements Clock using the standard time package.
type RealClock struct{}

// Now returns the current time.
func (RealClock) Now() time.Time { return time.Now() }

// Since returns the time elapsed since t.
func (RealClock) Since(t time.Time) time.Duration { return time.Since(t) }

// MockClock is a manually driven Clock. Each call to Now advances it by
// Step, so code timing an operation sees a fixed, non-zero duration.
type MockClock struct {
	mu   sync.Mutex
	now  time.Time
	Step time.Duration
}

// NewMockClock returns a MockClock starting at t.
func NewMockClock(t time.Time, step time.Duration) *MockClock {
	return &MockClock{now: t, Step: step}
}

// Now returns the mock time and then advances it by Step.
func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.Step)
	return t
}

// Since returns the mock time elapsed since t without advancing.
func (c *MockClock) Since(t time.Time) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now.Sub(t)
}

// Advance moves the clock forward by d.
func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
