package health

import (
	"sync"
	"time"
)

// entry is the mutable health record for one provider. All fields are guarded
// by mu; entries for different providers never share a lock.
type entry struct {
	mu sync.Mutex

	id                   string
	state                State
	consecutiveSuccesses int
	consecutiveFailures  int
	lastProbeAt          time.Time
	lastTransitionAt     time.Time
	lastErrorKind        ErrorKind
}

// apply folds an outcome into the counters and reports the transition it
// caused, if any. Counters reset on every transition so each threshold is
// crossed exactly once per run. Must be called with mu held.
func (e *entry) apply(cfg Config, o Outcome, src Source, now time.Time) (Transition, bool) {
	if src == SourceProbe {
		e.lastProbeAt = now
	}

	from := e.state
	if o.Success {
		e.consecutiveFailures = 0
		e.consecutiveSuccesses++
		if e.state != Healthy && e.consecutiveSuccesses >= cfg.RecoveryThreshold {
			e.state--
		}
	} else {
		e.consecutiveSuccesses = 0
		e.consecutiveFailures++
		e.lastErrorKind = o.ErrorKind
		switch e.state {
		case Healthy:
			if e.consecutiveFailures >= cfg.healthyThreshold() {
				e.state = Degraded
			}
		case Degraded:
			if e.consecutiveFailures >= cfg.DegradedFailureThreshold {
				e.state = Unavailable
			}
		}
	}

	if e.state == from {
		return Transition{}, false
	}
	e.consecutiveFailures = 0
	e.consecutiveSuccesses = 0
	e.lastTransitionAt = now
	return Transition{
		ProviderID: e.id,
		From:       from,
		To:         e.state,
		At:         now,
		Source:     src,
		ErrorKind:  o.ErrorKind,
	}, true
}

// snapshot must be called with mu held.
func (e *entry) snapshot() Snapshot {
	return Snapshot{
		ProviderID:           e.id,
		State:                e.state,
		ConsecutiveSuccesses: e.consecutiveSuccesses,
		ConsecutiveFailures:  e.consecutiveFailures,
		LastProbeAt:          e.lastProbeAt,
		LastTransitionAt:     e.lastTransitionAt,
		LastErrorKind:        e.lastErrorKind,
	}
}
