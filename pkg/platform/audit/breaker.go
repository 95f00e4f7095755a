package audit

import (
	"sync"
	"time"

	"verigate/pkg/platform/clock"
)

const (
	defaultBreakerThreshold = 5
	defaultBreakerCooldown  = 30 * time.Second
)

type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

// sinkBreaker stops the publisher from writing to a sink after consecutive
// failures. Once the cooldown passes, a single batch is let through as a
// trial: success closes the breaker, failure reopens it for another cooldown.
type sinkBreaker struct {
	mu        sync.Mutex
	clock     clock.Clock
	threshold int
	cooldown  time.Duration

	state     breakerState
	failures  int
	openUntil time.Time
}

func newSinkBreaker(threshold int, cooldown time.Duration, c clock.Clock) *sinkBreaker {
	if threshold <= 0 {
		threshold = defaultBreakerThreshold
	}
	if cooldown <= 0 {
		cooldown = defaultBreakerCooldown
	}
	return &sinkBreaker{threshold: threshold, cooldown: cooldown, clock: clock.OrReal(c)}
}

// allow reports whether the next batch may be written.
func (b *sinkBreaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case breakerOpen:
		if b.clock().Before(b.openUntil) {
			return false
		}
		b.state = breakerHalfOpen
		return true
	case breakerHalfOpen:
		// One trial is already in flight.
		return false
	default:
		return true
	}
}

func (b *sinkBreaker) success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = breakerClosed
	b.failures = 0
}

func (b *sinkBreaker) failure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	if b.state == breakerHalfOpen || b.failures >= b.threshold {
		b.state = breakerOpen
		b.openUntil = b.clock().Add(b.cooldown)
	}
}

func (b *sinkBreaker) open() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state != breakerClosed
}
