// Package admission decides whether a request may be dispatched to a provider
// right now. It enforces each provider's fixed-window rate limit and a global
// in-flight cap sized by the number of serving nodes.
package admission

import (
	"errors"
	"fmt"
	"time"

	dErrors "verigate/pkg/domain-errors"
)

// Reason labels why admission was refused. It is used as a metric label.
type Reason string

const (
	ReasonRateLimited Reason = "rate_limited"
	ReasonCapacity    Reason = "capacity"
	ReasonUnavailable Reason = "provider_unavailable"
)

// AdmissionRefused means the provider cannot take the request now. Callers
// advance to the next fallback candidate.
type AdmissionRefused struct {
	ProviderID string
	RetryAfter time.Duration
	Reason     Reason
}

func (e *AdmissionRefused) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("admission refused for provider %s (%s), retry after %s", e.ProviderID, e.Reason, e.RetryAfter)
	}
	return fmt.Sprintf("admission refused for provider %s (%s)", e.ProviderID, e.Reason)
}

// AsRefused unwraps err into an *AdmissionRefused.
func AsRefused(err error) (*AdmissionRefused, bool) {
	var refused *AdmissionRefused
	if errors.As(err, &refused) {
		return refused, true
	}
	return nil, false
}

// ErrUnknownProvider is returned when admission is asked about a provider that
// was never configured.
var ErrUnknownProvider = dErrors.New(dErrors.CodeNotFound, "provider has no admission limits configured")

// Config sizes the global in-flight cap.
type Config struct {
	MinNodes     int
	MaxNodes     int
	SlotsPerNode int
}

// DefaultConfig returns a single node with 64 slots that may scale to 4.
func DefaultConfig() Config {
	return Config{MinNodes: 1, MaxNodes: 4, SlotsPerNode: 64}
}

// Validate rejects inconsistent node bounds.
func (c Config) Validate() error {
	if c.MinNodes < 1 {
		return dErrors.New(dErrors.CodeConfiguration, "min nodes must be at least 1")
	}
	if c.MaxNodes < c.MinNodes {
		return dErrors.New(dErrors.CodeConfiguration, "max nodes must not be below min nodes")
	}
	if c.SlotsPerNode < 1 {
		return dErrors.New(dErrors.CodeConfiguration, "slots per node must be at least 1")
	}
	return nil
}

// ScaleRequest asks the platform for more serving nodes. It is emitted when
// the global cap refuses a request and nodes are still below MaxNodes.
type ScaleRequest struct {
	Current  int
	Desired  int
	InFlight int64
	At       time.Time
}

// ScaleListener receives scale-up requests. Implementations must not block.
type ScaleListener interface {
	OnScaleRequest(ScaleRequest)
}

// ScaleListenerFunc adapts a function to ScaleListener.
type ScaleListenerFunc func(ScaleRequest)

func (f ScaleListenerFunc) OnScaleRequest(r ScaleRequest) { f(r) }

// Usage is a point-in-time view of one provider's admission counters.
type Usage struct {
	ProviderID  string        `json:"provider_id"`
	Admitted    int           `json:"admitted_in_window"`
	Limit       int           `json:"limit,omitempty"`
	InFlight    int64         `json:"in_flight"`
	ResetsIn    time.Duration `json:"resets_in,omitempty"`
	Unavailable bool          `json:"unavailable,omitempty"`
}
