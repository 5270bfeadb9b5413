package host

import (
	"sync/atomic"
	"time"
)

// Clock yields monotonic milliseconds.
type Clock interface {
	Now() int64
}

// RealClock measures milliseconds since it was created.
type RealClock struct {
	start time.Time
}

// NewRealClock returns a clock anchored at the current instant.
func NewRealClock() *RealClock { return &RealClock{start: time.Now()} }

// Now returns the elapsed milliseconds; it uses the monotonic reading.
func (c *RealClock) Now() int64 { return time.Since(c.start).Milliseconds() }

// StepClock advances by Step every time it is read. It makes deadline
// behaviour deterministic: each reading is one "tick" later than the last.
type StepClock struct {
	Step int64
	now  atomic.Int64
}

// NewStepClock returns a clock starting at 0 that advances step per read.
func NewStepClock(step int64) *StepClock { return &StepClock{Step: step} }

func (c *StepClock) Now() int64 { return c.now.Add(c.Step) - c.Step }

// Set moves the clock to ms.
func (c *StepClock) Set(ms int64) { c.now.Store(ms) }
