package health

import (
	"fmt"
	"time"

	dErrors "verigate/pkg/domain-errors"
)

// State is a provider's health classification.
type State int

const (
	Healthy State = iota
	Degraded
	Unavailable
)

func (s State) String() string {
	switch s {
	case Healthy:
		return "healthy"
	case Degraded:
		return "degraded"
	case Unavailable:
		return "unavailable"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// MarshalText renders the state by name in JSON and logs.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name.
func (s *State) UnmarshalText(text []byte) error {
	switch string(text) {
	case "healthy":
		*s = Healthy
	case "degraded":
		*s = Degraded
	case "unavailable":
		*s = Unavailable
	default:
		return dErrors.Newf(dErrors.CodeValidation, "unknown health state %q", text)
	}
	return nil
}

// ErrorKind classifies a failed call. The zero value means no error.
type ErrorKind string

const (
	ErrorNone        ErrorKind = ""
	ErrorTimeout     ErrorKind = "timeout"
	ErrorServer      ErrorKind = "server_error"
	ErrorRateLimited ErrorKind = "rate_limited"
	ErrorTransport   ErrorKind = "transport"
	// ErrorExplicit is an error signalled by the provider in a successful
	// transport response.
	ErrorExplicit ErrorKind = "explicit"
)

// Outcome is the result of a real call or a synthetic probe.
type Outcome struct {
	Success   bool
	Latency   time.Duration
	ErrorKind ErrorKind
}

// Succeeded builds a successful outcome.
func Succeeded(latency time.Duration) Outcome {
	return Outcome{Success: true, Latency: latency}
}

// Failed builds a failed outcome.
func Failed(kind ErrorKind, latency time.Duration) Outcome {
	if kind == ErrorNone {
		kind = ErrorExplicit
	}
	return Outcome{Success: false, Latency: latency, ErrorKind: kind}
}

// Source tells whether an outcome came from live traffic or a probe.
type Source string

const (
	SourceTraffic Source = "traffic"
	SourceProbe   Source = "probe"
)

// Snapshot is a point-in-time copy of a provider's health.
type Snapshot struct {
	ProviderID           string    `json:"provider_id"`
	State                State     `json:"state"`
	ConsecutiveSuccesses int       `json:"consecutive_successes"`
	ConsecutiveFailures  int       `json:"consecutive_failures"`
	LastProbeAt          time.Time `json:"last_probe_at,omitzero"`
	LastTransitionAt     time.Time `json:"last_transition_at,omitzero"`
	LastErrorKind        ErrorKind `json:"last_error_kind,omitempty"`
}

// Transition describes a single state change.
type Transition struct {
	ProviderID string
	From       State
	To         State
	At         time.Time
	Source     Source
	ErrorKind  ErrorKind
}

// Listener observes transitions. Listeners run synchronously while the
// provider's entry is locked, so they must be quick and must not call back
// into the Monitor.
type Listener interface {
	OnTransition(Transition)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(Transition)

func (f ListenerFunc) OnTransition(t Transition) { f(t) }

// Config holds the state machine thresholds.
type Config struct {
	// FailureThreshold consecutive failures demote Healthy to Degraded.
	FailureThreshold int
	// DegradedFailureThreshold further consecutive failures while Degraded
	// demote to Unavailable.
	DegradedFailureThreshold int
	// RecoveryThreshold consecutive successes promote one step
	// (Unavailable to Degraded, Degraded to Healthy).
	RecoveryThreshold int
	// FastFailover demotes a Healthy provider on its first failure.
	FastFailover bool
	// ProbeInterval is how often non-Healthy providers are probed.
	ProbeInterval time.Duration
	// ProbeTimeout bounds a single probe call.
	ProbeTimeout time.Duration
	// ProbeConcurrency bounds how many probes run at once.
	ProbeConcurrency int
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		FailureThreshold:         3,
		DegradedFailureThreshold: 1,
		RecoveryThreshold:        2,
		ProbeInterval:            15 * time.Second,
		ProbeTimeout:             3 * time.Second,
		ProbeConcurrency:         8,
	}
}

// Validate rejects thresholds that would make the state machine stall.
func (c Config) Validate() error {
	if c.FailureThreshold < 1 {
		return dErrors.New(dErrors.CodeConfiguration, "failure threshold must be at least 1")
	}
	if c.DegradedFailureThreshold < 1 {
		return dErrors.New(dErrors.CodeConfiguration, "degraded failure threshold must be at least 1")
	}
	if c.RecoveryThreshold < 1 {
		return dErrors.New(dErrors.CodeConfiguration, "recovery threshold must be at least 1")
	}
	if c.ProbeInterval < 0 || c.ProbeTimeout < 0 {
		return dErrors.New(dErrors.CodeConfiguration, "probe interval and timeout cannot be negative")
	}
	return nil
}

func (c Config) healthyThreshold() int {
	if c.FastFailover {
		return 1
	}
	return c.FailureThreshold
}
