// Package clock provides the time source shared by health thresholds,
// admission windows and session idle timeouts.
//
// Real clocks return time.Now, whose monotonic reading is used by Sub, Since
// and After, so wall-clock adjustments do not skew windows or timeouts.
package clock

import (
	"sync"
	"time"
)

// Clock returns the current time.
type Clock func() time.Time

// Real is the production clock.
func Real() Clock {
	return time.Now
}

// OrReal returns c, or the real clock when c is nil.
func OrReal(c Clock) Clock {
	if c == nil {
		return time.Now
	}
	return c
}

// Fake is a manually advanced clock for tests.
type Fake struct {
	mu  sync.Mutex
	now time.Time
}

// NewFake starts a fake clock at start.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

// Now returns the fake's current time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Advance moves the fake clock forward by d.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

// Clock adapts the fake to the Clock type.
func (f *Fake) Clock() Clock {
	return f.Now
}
