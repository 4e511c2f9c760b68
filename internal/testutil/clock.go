package testutil

import (
	"sync"
	"time"
)

// Epoch is the first instant handed out by a StepClock.
var Epoch = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

// StepClock returns strictly increasing times, one Step apart, so rows
// created in quick succession get distinct timestamps.
type StepClock struct {
	mu   sync.Mutex
	next time.Time
	Step time.Duration
}

// NewStepClock starts a clock at Epoch advancing one second per reading.
func NewStepClock() *StepClock {
	return &StepClock{next: Epoch, Step: time.Second}
}

// Now returns the next instant.
func (c *StepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.next
	c.next = c.next.Add(c.Step)
	return t
}

// Peek returns the instant the next Now call will return.
func (c *StepClock) Peek() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.next
}
